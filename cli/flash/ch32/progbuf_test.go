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
	"bytes"
	"context"
	"testing"

	"github.com/juju/errors"
)

func TestProgramBufferRejects(t *testing.T) {
	for i, c := range []struct {
		size int
		want error
	}{
		{33, ErrProgramTooLong},
		{34, ErrProgramTooLong},
		{64, ErrProgramTooLong},
		{1, ErrProgramMisaligned},
		{3, ErrProgramMisaligned},
		{31, ErrProgramMisaligned},
	} {
		env := newTestEnv(nil)
		err := env.tgt.ProgramBuffer().Run(context.Background(), make([]byte, c.size))
		if errors.Cause(err) != c.want {
			t.Errorf("%d: got: %v, want: %v", i, err, c.want)
		}
		if env.chip.Writes != 0 || env.chip.Reads != 0 {
			t.Errorf("%d: transport used: %d writes, %d reads", i, env.chip.Writes, env.chip.Reads)
		}
	}
}

func TestProgramBufferOverwritesAllSlots(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(nil)
	env.halt(t)
	// 16 x c.nop, runs off the end.
	nops := bytes.Repeat([]byte{0x01, 0x00}, 16)
	if err := env.tgt.ProgramBuffer().Run(ctx, nops); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	for i := 0; i < 8; i++ {
		if v, _ := env.chip.ReadDMI(ctx, uint8(DMProgBuf0)+uint8(i)); v != 0x00010001 {
			t.Errorf("PROGBUF%d: 0x%08x", i, v)
		}
	}
	w0 := env.chip.Writes
	if err := env.tgt.ProgramBuffer().Run(ctx, []byte{0x02, 0x90}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// 8 slots and a command.
	if got, want := env.chip.Writes-w0, 9; got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
	if v, _ := env.chip.ReadDMI(ctx, uint8(DMProgBuf0)); v != 0x00009002 {
		t.Errorf("PROGBUF0: 0x%08x", v)
	}
	for i := 1; i < 8; i++ {
		if v, _ := env.chip.ReadDMI(ctx, uint8(DMProgBuf0)+uint8(i)); v != 0 {
			t.Errorf("PROGBUF%d not cleared: 0x%08x", i, v)
		}
	}
	if got := env.chip.CmdErr(); got != 0 {
		t.Errorf("cmderr %d", got)
	}
}

func TestProgramBufferMaxSize(t *testing.T) {
	env := newTestEnv(nil)
	env.halt(t)
	code := append(bytes.Repeat([]byte{0x01, 0x00}, 15), 0x02, 0x90)
	if len(code) != ProgBufSize {
		t.Fatalf("bad test program size %d", len(code))
	}
	if err := env.tgt.ProgramBuffer().Run(context.Background(), code); err != nil {
		t.Errorf("unexpected error: %s", err)
	}
	if got := env.chip.CmdErr(); got != 0 {
		t.Errorf("cmderr %d", got)
	}
}
