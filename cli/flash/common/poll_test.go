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
package common

import (
	"context"
	"testing"
	"time"

	"github.com/juju/errors"
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

// seq returns a condition that yields the given results in order.
func seq(results ...bool) (func(ctx context.Context) (bool, error), *int) {
	calls := 0
	return func(ctx context.Context) (bool, error) {
		r := results[calls]
		calls++
		return r, nil
	}, &calls
}

func TestPollBounded(t *testing.T) {
	cases := []struct {
		results []bool
		ok      bool
		calls   int
		sleeps  int
	}{
		{results: []bool{true}, ok: true, calls: 1, sleeps: 0},
		{results: []bool{false, false, true}, ok: true, calls: 3, sleeps: 2},
		{results: []bool{false, false, false, false, false, true}, ok: true, calls: 6, sleeps: 5},
		{results: []bool{false, false, false, false, false, false, true}, ok: false, calls: 6, sleeps: 5},
	}
	for i, c := range cases {
		fc := &fakeClock{}
		p := &Poller{Interval: 10 * time.Millisecond, Retries: 5, Sleep: fc.Sleep, Now: fc.Now}
		cond, calls := seq(c.results...)
		err := p.Poll(context.Background(), cond)
		if c.ok && err != nil {
			t.Errorf("%d: unexpected error: %s", i, err)
		}
		if !c.ok && !IsPollExhausted(err) {
			t.Errorf("%d: got: %v, want: exhausted", i, err)
		}
		if got, want := *calls, c.calls; got != want {
			t.Errorf("%d: calls got: %d, want: %d", i, got, want)
		}
		if got, want := len(fc.sleeps), c.sleeps; got != want {
			t.Errorf("%d: sleeps got: %d, want: %d", i, got, want)
		}
		for _, s := range fc.sleeps {
			if s != 10*time.Millisecond {
				t.Errorf("%d: unexpected sleep %s", i, s)
			}
		}
	}
}

func TestPollTimeout(t *testing.T) {
	fc := &fakeClock{}
	p := &Poller{Interval: time.Millisecond, Retries: -1, Timeout: 20 * time.Millisecond, Sleep: fc.Sleep, Now: fc.Now}
	calls := 0
	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	if !IsPollExhausted(err) {
		t.Fatalf("got: %v, want: exhausted", err)
	}
	if got, want := calls, 21; got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
}

func TestPollUnboundedNoInterval(t *testing.T) {
	fc := &fakeClock{}
	p := &Poller{Retries: -1, Sleep: fc.Sleep, Now: fc.Now}
	results := make([]bool, 1000)
	results[999] = true
	cond, calls := seq(results...)
	if err := p.Poll(context.Background(), cond); err != nil {
		t.Fatal(err)
	}
	if got, want := *calls, 1000; got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
	if len(fc.sleeps) != 0 {
		t.Errorf("slept %d times with zero interval", len(fc.sleeps))
	}
}

func TestPollConditionError(t *testing.T) {
	boom := errors.New("boom")
	p := &Poller{Retries: 5}
	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		return false, boom
	})
	if errors.Cause(err) != boom {
		t.Errorf("got: %v, want: %v", err, boom)
	}
}
