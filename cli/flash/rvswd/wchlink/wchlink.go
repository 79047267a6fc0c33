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
// Package wchlink talks RVSWD through a WCH-LinkE debug probe.
package wchlink

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	goversion "github.com/mcuadros/go-version"

	"github.com/mongoose-os/ch32prog/cli/flash/common"
)

const (
	VID = 0x1a86
	PID = 0x8010

	MinProbeVersion = "2.7"
)

const (
	frameRequest  = 0x81
	frameResponse = 0x82
	frameError    = 0x81

	cmdDMIOp   = 0x08
	cmdControl = 0x0d

	ctlGetProbeInfo = 0x01
	ctlAttachChip   = 0x02
	ctlDetachChip   = 0xff

	dmiOpRead  = 1
	dmiOpWrite = 2

	dmiStatusOK     = 0
	dmiStatusFailed = 2
	dmiStatusBusy   = 3

	maxPacketSize = 64
)

// ProbeInfo describes the attached probe.
type ProbeInfo struct {
	Version string
	Variant byte
}

func (pi ProbeInfo) String() string {
	return fmt.Sprintf("WCH-Link v%s (variant %d)", pi.Version, pi.Variant)
}

// ChipInfo is what the probe reports when attaching to the target.
type ChipInfo struct {
	Family byte
	ID     uint32
}

func (ci ChipInfo) String() string {
	return fmt.Sprintf("family 0x%02x, ID 0x%08x", ci.Family, ci.ID)
}

// Link is a DebugLink through a WCH-LinkE probe.
// Every Write to rw must carry one command packet and every Read must return one response packet.
type Link struct {
	// BusyRetries is the number of times a DMI access is retried while the target reports busy.
	BusyRetries int
	// BusyInterval is the pause between busy retries.
	BusyInterval time.Duration

	Probe ProbeInfo
	Chip  ChipInfo

	mu     sync.Mutex
	rw     io.ReadWriter
	closer func() error
}

func NewLink(rw io.ReadWriter, closer func() error) *Link {
	return &Link{
		BusyRetries:  100,
		BusyInterval: time.Millisecond,
		rw:           rw,
		closer:       closer,
	}
}

func (l *Link) transact(ctx context.Context, cmd byte, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	req := append([]byte{frameRequest, cmd, byte(len(payload))}, payload...)
	glog.V(4).Infof(">> %s", hex.EncodeToString(req))
	if _, err := l.rw.Write(req); err != nil {
		return nil, errors.Annotatef(err, "failed to send command 0x%02x", cmd)
	}
	buf := make([]byte, maxPacketSize)
	n, err := l.rw.Read(buf)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read response to 0x%02x", cmd)
	}
	resp := buf[:n]
	glog.V(4).Infof("<< %s", hex.EncodeToString(resp))
	if n < 3 {
		return nil, errors.Errorf("short response to 0x%02x: %s", cmd, hex.EncodeToString(resp))
	}
	if resp[0] == frameError {
		return nil, errors.Errorf("probe returned error for command 0x%02x: %s", cmd, hex.EncodeToString(resp[1:]))
	}
	if resp[0] != frameResponse || resp[1] != cmd {
		return nil, errors.Errorf("invalid response to 0x%02x: %s", cmd, hex.EncodeToString(resp))
	}
	pl := int(resp[2])
	if 3+pl > n {
		return nil, errors.Errorf("truncated response to 0x%02x: %s", cmd, hex.EncodeToString(resp))
	}
	return resp[3 : 3+pl], nil
}

// Init queries the probe and attaches to the chip.
func (l *Link) Init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	info, err := l.transact(ctx, cmdControl, []byte{ctlGetProbeInfo})
	if err != nil {
		return errors.Annotatef(err, "failed to get probe info")
	}
	if len(info) < 2 {
		return errors.Errorf("invalid probe info %s", hex.EncodeToString(info))
	}
	l.Probe = ProbeInfo{Version: fmt.Sprintf("%d.%d", info[0], info[1])}
	if len(info) > 2 {
		l.Probe.Variant = info[2]
	}
	glog.Infof("Probe: %s", l.Probe)
	if goversion.Compare(l.Probe.Version, MinProbeVersion, "<") {
		glog.Warningf("Probe firmware %s is older than %s, update it if flashing fails", l.Probe.Version, MinProbeVersion)
	}
	return errors.Trace(l.attach(ctx))
}

func (l *Link) attach(ctx context.Context) error {
	resp, err := l.transact(ctx, cmdControl, []byte{ctlAttachChip})
	if err != nil {
		return errors.Annotatef(err, "failed to attach to the chip")
	}
	if len(resp) < 5 {
		return errors.Errorf("invalid chip info %s", hex.EncodeToString(resp))
	}
	l.Chip = ChipInfo{Family: resp[0], ID: binary.BigEndian.Uint32(resp[1:5])}
	glog.Infof("Chip: %s", l.Chip)
	return nil
}

// ResetLink detaches from the chip and attaches again.
func (l *Link) ResetLink(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.transact(ctx, cmdControl, []byte{ctlDetachChip}); err != nil {
		return errors.Annotatef(err, "failed to detach")
	}
	return errors.Trace(l.attach(ctx))
}

func (l *Link) dmiOp(ctx context.Context, addr uint8, data uint32, op byte) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	req := make([]byte, 6)
	req[0] = addr
	binary.BigEndian.PutUint32(req[1:5], data)
	req[5] = op
	var result uint32
	var status byte
	p := &common.Poller{Interval: l.BusyInterval, Retries: l.BusyRetries}
	err := p.Poll(ctx, func(ctx context.Context) (bool, error) {
		resp, err := l.transact(ctx, cmdDMIOp, req)
		if err != nil {
			return false, errors.Trace(err)
		}
		if len(resp) != 6 {
			return false, errors.Errorf("invalid DMI response %s", hex.EncodeToString(resp))
		}
		status = resp[5]
		switch status {
		case dmiStatusOK:
			result = binary.BigEndian.Uint32(resp[1:5])
			return true, nil
		case dmiStatusBusy:
			return false, nil
		case dmiStatusFailed:
			return false, errors.Errorf("DMI access to 0x%02x failed", addr)
		}
		return false, errors.Errorf("DMI access to 0x%02x: unexpected status %d", addr, status)
	})
	if common.IsPollExhausted(err) {
		return 0, errors.Annotatef(err, "DMI 0x%02x busy", addr)
	}
	return result, errors.Trace(err)
}

func (l *Link) ReadDMI(ctx context.Context, addr uint8) (uint32, error) {
	return l.dmiOp(ctx, addr, 0, dmiOpRead)
}

func (l *Link) WriteDMI(ctx context.Context, addr uint8, value uint32) error {
	_, err := l.dmiOp(ctx, addr, value, dmiOpWrite)
	return errors.Trace(err)
}

// Close detaches from the chip and releases the probe.
func (l *Link) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.transact(ctx, cmdControl, []byte{ctlDetachChip}); err != nil {
		glog.Warningf("failed to detach: %s", err)
	}
	if l.closer == nil {
		return nil
	}
	return errors.Trace(l.closer())
}

var _ common.DebugLink = (*Link)(nil)
