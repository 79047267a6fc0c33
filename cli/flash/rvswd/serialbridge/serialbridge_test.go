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
package serialbridge

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/juju/errors"

	"github.com/mongoose-os/ch32prog/cli/flash/ch32"
	"github.com/mongoose-os/ch32prog/cli/flash/common"
	"github.com/mongoose-os/ch32prog/cli/flash/rvswd/sim"
)

// fakeBridge decodes SLIP requests and answers them from a simulated chip.
type fakeBridge struct {
	chip   *sim.Chip
	silent bool
	status byte
	junk   []byte
	out    bytes.Buffer
	inits  int
	resets int
	closed bool
}

func (fb *fakeBridge) Write(b []byte) (int, error) {
	in := bytes.NewBuffer(b)
	var out bytes.Buffer
	req := make([]byte, 16)
	n, err := common.NewSLIPReaderWriter(in).Read(req)
	if err != nil {
		return 0, errors.Trace(err)
	}
	req = req[:n]
	if fb.silent {
		return len(b), nil
	}
	ctx := context.Background()
	resp := []byte{fb.status}
	if fb.status == 0 {
		switch req[0] {
		case opInit:
			fb.inits++
			fb.chip.Init(ctx)
		case opResetLink:
			fb.resets++
			fb.chip.ResetLink(ctx)
		case opRead:
			v, _ := fb.chip.ReadDMI(ctx, req[1])
			resp = append(resp, 0, 0, 0, 0)
			binary.LittleEndian.PutUint32(resp[1:], v)
		case opWrite:
			fb.chip.WriteDMI(ctx, req[1], binary.LittleEndian.Uint32(req[2:6]))
		default:
			resp[0] = 0xee
		}
	}
	common.NewSLIPReaderWriter(&out).Write(resp)
	fb.out.Write(fb.junk)
	fb.out.Write(out.Bytes())
	return len(b), nil
}

func (fb *fakeBridge) Read(b []byte) (int, error) {
	return fb.out.Read(b)
}

func (fb *fakeBridge) Close() error {
	fb.closed = true
	return nil
}

func newTestLink() (*Link, *fakeBridge) {
	fb := &fakeBridge{chip: sim.New(0)}
	return NewLink(fb), fb
}

func TestInitAndReset(t *testing.T) {
	ctx := context.Background()
	l, fb := newTestLink()
	if err := l.Init(ctx); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := l.ResetLink(ctx); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := fb.inits, 1; got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
	if got, want := fb.resets, 1; got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
	if err := l.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !fb.closed {
		t.Errorf("port was not closed")
	}
}

func TestDMI(t *testing.T) {
	ctx := context.Background()
	l, fb := newTestLink()
	// 0xc0 and 0xdb in the value exercise SLIP escaping.
	if err := l.WriteDMI(ctx, 0x04, 0xc0dbc0db); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	fb.junk = []byte{0x00, 0x11}
	v, err := l.ReadDMI(ctx, 0x04)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := v, uint32(0xc0dbc0db); got != want {
		t.Errorf("got: 0x%08x, want: 0x%08x", got, want)
	}
}

func TestBridgeError(t *testing.T) {
	l, fb := newTestLink()
	fb.status = 0x02
	if err := l.Init(context.Background()); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestNoResponse(t *testing.T) {
	l, fb := newTestLink()
	l.Timeout = 10 * time.Millisecond
	fb.silent = true
	_, err := l.ReadDMI(context.Background(), 0x11)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if errors.Cause(err) != ErrNoResponse {
		t.Errorf("expected no response, got %s", err)
	}
}

func TestProgramThroughBridge(t *testing.T) {
	l, fb := newTestLink()
	opts := ch32.DefaultOptions()
	opts.Sleep = func(d time.Duration) {}
	fw := bytes.Repeat([]byte{0xc0, 0xdb, 0x01, 0x02}, 100)
	if err := ch32.Program(context.Background(), l, fw, opts); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := fb.chip.Flash(sim.FlashBase, len(fw)); !bytes.Equal(got, fw) {
		t.Errorf("flash contents differ")
	}
}
