//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package ch32

import (
	"context"
	"testing"
	"time"

	"github.com/mongoose-os/ch32prog/cli/flash/rvswd/sim"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (fc *fakeClock) Sleep(d time.Duration) {
	fc.sleeps = append(fc.sleeps, d)
	fc.now = fc.now.Add(d)
}

func (fc *fakeClock) Now() time.Time {
	return fc.now
}

type progressCall struct {
	msg         string
	done, total int
}

type testEnv struct {
	chip     *sim.Chip
	clock    *fakeClock
	progress []progressCall
	tgt      *Target
}

func newTestEnv(mod func(opts *Options)) *testEnv {
	env := &testEnv{
		chip:  sim.New(0),
		clock: &fakeClock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	opts := DefaultOptions()
	opts.Sleep = env.clock.Sleep
	opts.Now = env.clock.Now
	opts.Progress = func(msg string, done, total int) {
		env.progress = append(env.progress, progressCall{msg, done, total})
	}
	if mod != nil {
		mod(&opts)
	}
	env.tgt = NewTarget(env.chip, opts)
	return env
}

func (env *testEnv) halt(t *testing.T) {
	t.Helper()
	if err := env.tgt.Halt(context.Background()); err != nil {
		t.Fatalf("halt: %s", err)
	}
}

func (env *testEnv) unlock(t *testing.T) {
	t.Helper()
	env.halt(t)
	if err := env.tgt.Unlock(context.Background()); err != nil {
		t.Fatalf("unlock: %s", err)
	}
}

func pattern(n int, seed byte) []byte {
	res := make([]byte, n)
	for i := range res {
		res[i] = byte(i) ^ seed
	}
	return res
}

func equalWords(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
