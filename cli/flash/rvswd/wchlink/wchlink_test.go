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
package wchlink

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/juju/errors"

	"github.com/mongoose-os/ch32prog/cli/flash/ch32"
	"github.com/mongoose-os/ch32prog/cli/flash/rvswd/sim"
)

// fakeProbe answers WCH-Link commands from a simulated chip.
type fakeProbe struct {
	chip     *sim.Chip
	version  [2]byte
	busy     int // Report busy for this many DMI ops.
	failCmd  byte
	dmiFail  byte // Report this status for every DMI op.
	dmiOps   int
	attaches int
	detaches int
	resp     []byte
}

func (fp *fakeProbe) Write(b []byte) (int, error) {
	if len(b) < 3 || b[0] != 0x81 || int(b[2]) != len(b)-3 {
		return 0, errors.Errorf("bad request %x", b)
	}
	cmd, payload := b[1], b[3:]
	if cmd == fp.failCmd {
		fp.resp = []byte{0x81, cmd, 1, 0x55}
		return len(b), nil
	}
	var rp []byte
	switch cmd {
	case cmdControl:
		switch payload[0] {
		case ctlGetProbeInfo:
			rp = []byte{fp.version[0], fp.version[1], 0x12}
		case ctlAttachChip:
			fp.attaches++
			rp = []byte{0x05, 0x20, 0x33, 0x05, 0x00}
		case ctlDetachChip:
			fp.detaches++
			rp = []byte{}
		}
	case cmdDMIOp:
		addr, data, op := payload[0], binary.BigEndian.Uint32(payload[1:5]), payload[5]
		rp = make([]byte, 6)
		rp[0] = addr
		fp.dmiOps++
		if fp.dmiFail != 0 {
			rp[5] = fp.dmiFail
			break
		}
		if fp.busy > 0 {
			fp.busy--
			rp[5] = dmiStatusBusy
			break
		}
		ctx := context.Background()
		switch op {
		case dmiOpRead:
			v, _ := fp.chip.ReadDMI(ctx, addr)
			binary.BigEndian.PutUint32(rp[1:5], v)
		case dmiOpWrite:
			fp.chip.WriteDMI(ctx, addr, data)
		}
	}
	fp.resp = append([]byte{0x82, cmd, byte(len(rp))}, rp...)
	return len(b), nil
}

func (fp *fakeProbe) Read(b []byte) (int, error) {
	n := copy(b, fp.resp)
	fp.resp = nil
	return n, nil
}

func newTestLink() (*Link, *fakeProbe) {
	fp := &fakeProbe{chip: sim.New(0), version: [2]byte{2, 9}}
	l := NewLink(fp, nil)
	l.BusyInterval = 0
	return l, fp
}

func TestInit(t *testing.T) {
	l, fp := newTestLink()
	if err := l.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := l.Probe.Version, "2.9"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if got, want := l.Chip.ID, uint32(0x20330500); got != want {
		t.Errorf("got: 0x%08x, want: 0x%08x", got, want)
	}
	if err := l.ResetLink(context.Background()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if fp.attaches != 2 || fp.detaches != 1 {
		t.Errorf("attaches %d detaches %d", fp.attaches, fp.detaches)
	}
}

func TestOldProbeStillWorks(t *testing.T) {
	l, fp := newTestLink()
	fp.version = [2]byte{2, 3}
	if err := l.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
}

func TestProbeError(t *testing.T) {
	l, fp := newTestLink()
	fp.failCmd = cmdControl
	if err := l.Init(context.Background()); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestDMI(t *testing.T) {
	ctx := context.Background()
	l, fp := newTestLink()
	if err := l.WriteDMI(ctx, 0x04, 0x12345678); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	v, err := l.ReadDMI(ctx, 0x04)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := v, uint32(0x12345678); got != want {
		t.Errorf("got: 0x%08x, want: 0x%08x", got, want)
	}
	fp.busy = 3
	v, err = l.ReadDMI(ctx, 0x04)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := v, uint32(0x12345678); got != want {
		t.Errorf("got: 0x%08x, want: 0x%08x", got, want)
	}
	l.BusyRetries = 2
	fp.busy = 3
	if _, err := l.ReadDMI(ctx, 0x04); err == nil {
		t.Errorf("expected busy error")
	}
}

func TestDMIFailed(t *testing.T) {
	ctx := context.Background()
	for _, status := range []byte{dmiStatusFailed, 0x7f} {
		l, fp := newTestLink()
		fp.dmiFail = status
		if _, err := l.ReadDMI(ctx, 0x11); err == nil {
			t.Errorf("status %d: expected an error", status)
		}
		if got, want := fp.dmiOps, 1; got != want {
			t.Errorf("status %d: got: %d ops, want: %d", status, got, want)
		}
	}
}

func TestProgramThroughProbe(t *testing.T) {
	l, fp := newTestLink()
	opts := ch32.DefaultOptions()
	opts.Sleep = func(d time.Duration) {}
	fw := bytes.Repeat([]byte{0xa5, 0x5a, 0x00, 0x11}, 128)
	if err := ch32.Program(context.Background(), l, fw, opts); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := fp.chip.Flash(sim.FlashBase, len(fw)); !bytes.Equal(got, fw) {
		t.Errorf("flash contents differ")
	}
}
