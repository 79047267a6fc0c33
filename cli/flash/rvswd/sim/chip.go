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
// Package sim is an in-process model of the CH32V203 debug module, core and
// flash controller, reachable as a DebugLink.
package sim

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// Debug module registers.
const (
	regData0      = 0x04
	regData1      = 0x05
	regDMControl  = 0x10
	regDMStatus   = 0x11
	regHartInfo   = 0x12
	regAbstractCS = 0x16
	regCommand    = 0x17
	regAbsAuto    = 0x18
	regProgBuf0   = 0x20
	regHaltSum0   = 0x40
	regCPBR       = 0x7c
	regCFGR       = 0x7d
	regShdwCFGR   = 0x7e

	progBufSlots = 8
)

const (
	dmcontrolDMActive     = 1 << 0
	dmcontrolNDMReset     = 1 << 1
	dmcontrolAckHaveReset = 1 << 28
	dmcontrolResumeReq    = 1 << 30
	dmcontrolHaltReq      = 1 << 31
)

const (
	dmstatusVersion013    = 2
	dmstatusAuthenticated = 1 << 7
	dmstatusAnyHalted     = 1 << 8
	dmstatusAllHalted     = 1 << 9
	dmstatusAnyRunning    = 1 << 10
	dmstatusAllRunning    = 1 << 11
	dmstatusAnyResumeAck  = 1 << 16
	dmstatusAllResumeAck  = 1 << 17
	dmstatusAnyHaveReset  = 1 << 18
	dmstatusAllHaveReset  = 1 << 19
)

// Abstract command errors, ABSTRACTCS[10:8].
const (
	cmdErrNone         = 0
	cmdErrNotSupported = 2
	cmdErrException    = 3
	cmdErrHaltResume   = 4
	cmdErrBus          = 5
)

// Chip is a simulated CH32V203 behind an RVSWD link.
// Exported fields may be changed between operations to inject faults.
type Chip struct {
	// NeverHalt, NeverResume and NeverReset make the core ignore the corresponding requests.
	NeverHalt   bool
	NeverResume bool
	NeverReset  bool
	// UnlockFails makes the flash controller ignore unlock keys.
	UnlockFails bool
	// BusyReads is the number of STATR reads that report busy after each operation.
	BusyReads int
	// StuckBusy makes STATR report busy forever.
	StuckBusy bool
	// CorruptRead, if set, is applied to every word read from flash.
	CorruptRead func(addr, value uint32) uint32
	// InitErr and ResetLinkErr are returned by Init and ResetLink.
	InitErr      error
	ResetLinkErr error

	// Counters.
	Inits          int
	LinkResets     int
	Reads          int
	Writes         int
	HaltRequests   int
	ResumeRequests int
	ResetRequests  int
	Unlocks        int
	// Erases and Programs hold block addresses of completed fast erase and fast program operations.
	Erases   []uint32
	Programs []uint32
	// DMControlWrites records every value written to DMCONTROL.
	DMControlWrites []uint32

	mu sync.Mutex

	dmcontrol uint32
	halted    bool
	resumeAck bool
	haveReset bool
	cmdErr    uint32
	data      [2]uint32
	progbuf   [progBufSlots]uint32
	gpr       [32]uint32
	csr       map[uint16]uint32

	mem *bus
}

// New creates a chip with flashSize bytes of flash (0 means 64K).
// The core is running and the flash is locked. Flash holds zeroes, standing in for old contents.
func New(flashSize int) *Chip {
	if flashSize <= 0 {
		flashSize = DefaultFlashSize
	}
	c := &Chip{
		csr: map[uint16]uint32{
			0x301: 0x40901105, // misa: RV32IMACX
			0x7b0: 0x40000003, // dcsr
		},
	}
	c.mem = newBus(c, flashSize)
	return c
}

func (c *Chip) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Inits++
	return c.InitErr
}

func (c *Chip) ResetLink(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LinkResets++
	return c.ResetLinkErr
}

func (c *Chip) Close(ctx context.Context) error {
	return nil
}

func (c *Chip) ReadDMI(ctx context.Context, addr uint8) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addr >= 0x80 {
		return 0, errors.NotValidf("DMI address 0x%02x", addr)
	}
	c.Reads++
	v := c.readReg(addr)
	glog.V(4).Infof("sim: 0x%02x -> 0x%08x", addr, v)
	return v, nil
}

func (c *Chip) WriteDMI(ctx context.Context, addr uint8, value uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addr >= 0x80 {
		return errors.NotValidf("DMI address 0x%02x", addr)
	}
	c.Writes++
	glog.V(4).Infof("sim: 0x%02x <- 0x%08x", addr, value)
	c.writeReg(addr, value)
	return nil
}

func (c *Chip) readReg(addr uint8) uint32 {
	switch {
	case addr == regData0 || addr == regData1:
		return c.data[addr-regData0]
	case addr == regDMControl:
		return c.dmcontrol &^ (dmcontrolHaltReq | dmcontrolResumeReq | dmcontrolAckHaveReset)
	case addr == regDMStatus:
		return c.dmstatus()
	case addr == regAbstractCS:
		return progBufSlots<<24 | c.cmdErr<<8 | 2
	case addr == regHaltSum0:
		if c.halted {
			return 1
		}
		return 0
	case addr >= regProgBuf0 && addr < regProgBuf0+progBufSlots:
		return c.progbuf[addr-regProgBuf0]
	}
	return 0
}

func (c *Chip) dmstatus() uint32 {
	st := uint32(dmstatusVersion013 | dmstatusAuthenticated)
	if c.halted {
		st |= dmstatusAnyHalted | dmstatusAllHalted
	} else {
		st |= dmstatusAnyRunning | dmstatusAllRunning
	}
	if c.resumeAck {
		st |= dmstatusAnyResumeAck | dmstatusAllResumeAck
	}
	if c.haveReset {
		st |= dmstatusAnyHaveReset | dmstatusAllHaveReset
	}
	return st
}

func (c *Chip) writeReg(addr uint8, v uint32) {
	switch {
	case addr == regData0 || addr == regData1:
		c.data[addr-regData0] = v
	case addr == regDMControl:
		c.writeDMControl(v)
	case addr == regAbstractCS:
		c.cmdErr &^= (v >> 8) & 7
	case addr == regCommand:
		c.command(v)
	case addr >= regProgBuf0 && addr < regProgBuf0+progBufSlots:
		c.progbuf[addr-regProgBuf0] = v
	}
}

func (c *Chip) writeDMControl(v uint32) {
	c.DMControlWrites = append(c.DMControlWrites, v)
	prev := c.dmcontrol
	c.dmcontrol = v
	if v&dmcontrolHaltReq != 0 {
		if prev&dmcontrolHaltReq == 0 {
			c.HaltRequests++
		}
		c.resumeAck = false
		if !c.NeverHalt {
			c.halted = true
		}
	}
	if v&dmcontrolResumeReq != 0 && v&dmcontrolHaltReq == 0 {
		c.ResumeRequests++
		if c.halted && !c.NeverResume {
			c.halted = false
			c.resumeAck = true
		}
	}
	if v&dmcontrolNDMReset != 0 {
		if prev&dmcontrolNDMReset == 0 {
			c.ResetRequests++
		}
		if !c.NeverReset {
			c.haveReset = true
			c.halted = false
			c.mem.reset()
		}
	}
	if v&dmcontrolAckHaveReset != 0 {
		c.haveReset = false
	}
}

func (c *Chip) command(cmd uint32) {
	if c.cmdErr != cmdErrNone {
		return
	}
	if !c.halted {
		c.cmdErr = cmdErrHaltResume
		return
	}
	if cmd>>24 != 0 {
		c.cmdErr = cmdErrNotSupported
		return
	}
	if cmd&(1<<17) != 0 {
		if (cmd>>20)&7 != 2 {
			c.cmdErr = cmdErrNotSupported
			return
		}
		if err := c.transfer(uint16(cmd), cmd&(1<<16) != 0); err != cmdErrNone {
			c.cmdErr = err
			return
		}
	}
	if cmd&(1<<18) != 0 {
		c.cmdErr = c.exec()
	}
}

func (c *Chip) transfer(regno uint16, write bool) uint32 {
	switch {
	case regno >= 0x1000 && regno < 0x1020:
		n := regno - 0x1000
		if write {
			if n != 0 {
				c.gpr[n] = c.data[0]
			}
		} else {
			c.data[0] = c.gpr[n]
		}
	case regno < 0x1000:
		if write {
			c.csr[regno] = c.data[0]
		} else {
			c.data[0] = c.csr[regno]
		}
	default:
		return cmdErrNotSupported
	}
	return cmdErrNone
}

// Halted reports whether the core is halted.
func (c *Chip) Halted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}

// GPR returns the value of register xN.
func (c *Chip) GPR(n int) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gpr[n&0x1f]
}

// CmdErr returns the current ABSTRACTCS.cmderr.
func (c *Chip) CmdErr() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmdErr
}

// Flash returns a copy of n bytes of flash at addr.
func (c *Chip) Flash(addr uint32, n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	off := int(addr - FlashBase)
	return append([]byte(nil), c.mem.flash[off:off+n]...)
}

// SetFlash overwrites flash contents at addr directly.
func (c *Chip) SetFlash(addr uint32, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.mem.flash[int(addr-FlashBase):], data)
}

// Locked reports whether the main flash lock is engaged.
func (c *Chip) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem.locked
}
