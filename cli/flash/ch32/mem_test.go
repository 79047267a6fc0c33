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

	"github.com/mongoose-os/ch32prog/cli/flash/rvswd/sim"
)

func TestWordRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(nil)
	env.halt(t)
	for i, c := range []struct {
		addr, value uint32
	}{
		{sim.SRAMBase, 0x12345678},
		{sim.SRAMBase + 4, 0xffffffff},
		{sim.SRAMBase + 0x100, 0},
		{sim.SRAMBase + sim.SRAMSize - 4, 0xa5a55a5a},
		{flashADDR, 0x08000300},
	} {
		if err := env.tgt.WriteWord(ctx, c.addr, c.value); err != nil {
			t.Fatalf("%d: unexpected error: %s", i, err)
		}
		got, err := env.tgt.ReadWord(ctx, c.addr)
		if err != nil {
			t.Fatalf("%d: unexpected error: %s", i, err)
		}
		if got != c.value {
			t.Errorf("%d: got: 0x%08x, want: 0x%08x", i, got, c.value)
		}
	}
}

func TestWordAccessUsesScratchRegisters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(nil)
	env.halt(t)
	if err := env.tgt.WriteWord(ctx, sim.SRAMBase+8, 0xcafe); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := env.chip.GPR(10), uint32(0xcafe); got != want {
		t.Errorf("x10 got: 0x%08x, want: 0x%08x", got, want)
	}
	if got, want := env.chip.GPR(11), uint32(sim.SRAMBase+8); got != want {
		t.Errorf("x11 got: 0x%08x, want: 0x%08x", got, want)
	}
}

func TestReadFlashWord(t *testing.T) {
	env := newTestEnv(nil)
	env.halt(t)
	env.chip.SetFlash(sim.FlashBase+0x40, []byte{0x01, 0x02, 0x03, 0x04})
	got, err := env.tgt.ReadWord(context.Background(), sim.FlashBase+0x40)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if want := uint32(0x04030201); got != want {
		t.Errorf("got: 0x%08x, want: 0x%08x", got, want)
	}
}

func TestTargetMem(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(nil)
	env.halt(t)
	data := []uint32{1, 2, 3, 0xdeadbeef}
	if err := env.tgt.WriteTargetMem(ctx, sim.SRAMBase+0x20, data); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	got, err := env.tgt.ReadTargetMem(ctx, sim.SRAMBase+0x20, len(data))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !equalWords(got, data) {
		t.Errorf("got: %x, want: %x", got, data)
	}
	b, err := env.tgt.ReadRange(ctx, sim.SRAMBase+0x20, 6)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if want := []byte{1, 0, 0, 0, 2, 0}; !bytes.Equal(b, want) {
		t.Errorf("got: %x, want: %x", b, want)
	}
}

func TestTargetMemMisaligned(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(nil)
	if _, err := env.tgt.ReadTargetMem(ctx, sim.SRAMBase+2, 1); errors.Cause(err) != ErrAddressMisaligned {
		t.Errorf("unexpected error: %v", err)
	}
	if err := env.tgt.WriteTargetReg(ctx, sim.SRAMBase+1, 0); errors.Cause(err) != ErrAddressMisaligned {
		t.Errorf("unexpected error: %v", err)
	}
	if env.chip.Writes != 0 {
		t.Errorf("%d writes", env.chip.Writes)
	}
}

func TestReadRangeNegativeLength(t *testing.T) {
	env := newTestEnv(nil)
	if _, err := env.tgt.ReadRange(context.Background(), sim.SRAMBase, -1); !errors.IsNotValid(err) {
		t.Errorf("unexpected error: %v", err)
	}
	if env.chip.Writes != 0 {
		t.Errorf("%d writes", env.chip.Writes)
	}
}

func TestCheckAbstractCS(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(func(opts *Options) {
		opts.CheckAbstractCS = true
	})
	// Commands fail while the core is running.
	_, err := env.tgt.ReadWord(ctx, sim.SRAMBase)
	if errors.Cause(err) != ErrCommandFailed {
		t.Fatalf("expected command failure, got %v", err)
	}
	if got := env.chip.CmdErr(); got != 0 {
		t.Errorf("cmderr not cleared: %d", got)
	}
	env.halt(t)
	if err := env.tgt.WriteWord(ctx, sim.SRAMBase, 7); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// Bus error.
	if _, err := env.tgt.ReadWord(ctx, 0x10000000); errors.Cause(err) != ErrCommandFailed {
		t.Errorf("expected command failure, got %v", err)
	}
}
