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
package sim

import (
	"encoding/binary"

	"github.com/golang/glog"
)

// Memory map.
const (
	FlashBase        = 0x08000000
	DefaultFlashSize = 0x10000
	SRAMBase         = 0x20000000
	SRAMSize         = 0x5000

	flashCtlBase = 0x40022000
	flashCtlSize = 0x30
)

// Flash controller.
const (
	flashKEYR     = 0x04
	flashOBKEYR   = 0x08
	flashSTATR    = 0x0c
	flashCTLR     = 0x10
	flashADDR     = 0x14
	flashMODEKEYR = 0x24

	key1 = 0x45670123
	key2 = 0xcdef89ab

	statrBusy   = 1 << 0
	statrWrBusy = 1 << 1
	statrEOP    = 1 << 5

	ctlrSTRT   = 1 << 6
	ctlrLock   = 1 << 7
	ctlrOPTWRE = 1 << 9
	ctlrFLock  = 1 << 15
	ctlrFTPG   = 1 << 16
	ctlrFTER   = 1 << 17
	ctlrPGSTRT = 1 << 21

	blockSize = 256
)

type keySeq struct {
	first bool
}

// feed returns true when the second key follows the first.
func (k *keySeq) feed(v uint32) bool {
	if v == key2 && k.first {
		k.first = false
		return true
	}
	k.first = (v == key1)
	return false
}

type bus struct {
	c     *Chip
	flash []byte
	sram  []byte

	locked      bool
	fastLocked  bool
	optUnlocked bool
	ctlr        uint32
	addr        uint32
	eop         bool
	keys        [3]keySeq
	busyLeft    int
	wrBusyLeft  int
	pageBuf     map[uint32]uint32
}

func newBus(c *Chip, flashSize int) *bus {
	b := &bus{
		c:     c,
		flash: make([]byte, flashSize),
		sram:  make([]byte, SRAMSize),
	}
	b.reset()
	return b
}

// reset puts the flash controller into its power-on state.
func (b *bus) reset() {
	b.locked, b.fastLocked, b.optUnlocked = true, true, false
	b.ctlr, b.addr, b.eop = 0, 0, false
	b.keys = [3]keySeq{}
	b.busyLeft, b.wrBusyLeft = 0, 0
	b.pageBuf = map[uint32]uint32{}
}

func (b *bus) inFlash(addr uint32) bool {
	return addr >= FlashBase && addr-FlashBase < uint32(len(b.flash))
}

func (b *bus) inSRAM(addr uint32) bool {
	return addr >= SRAMBase && addr-SRAMBase < SRAMSize
}

func (b *bus) load(addr uint32) (uint32, uint32) {
	if addr%4 != 0 {
		return 0, cmdErrException
	}
	switch {
	case b.inFlash(addr):
		v := binary.LittleEndian.Uint32(b.flash[addr-FlashBase:])
		if b.c.CorruptRead != nil {
			v = b.c.CorruptRead(addr, v)
		}
		return v, cmdErrNone
	case b.inSRAM(addr):
		return binary.LittleEndian.Uint32(b.sram[addr-SRAMBase:]), cmdErrNone
	case addr >= flashCtlBase && addr < flashCtlBase+flashCtlSize:
		return b.readCtl(addr - flashCtlBase), cmdErrNone
	}
	return 0, cmdErrBus
}

func (b *bus) store(addr, v uint32) uint32 {
	if addr%4 != 0 {
		return cmdErrException
	}
	switch {
	case b.inFlash(addr):
		// Only fast programming through the page buffer is modeled.
		if b.ctlr&ctlrFTPG != 0 && !b.locked && !b.fastLocked {
			b.pageBuf[addr&(blockSize-1)] = v
			b.wrBusyLeft = b.c.BusyReads
		}
	case b.inSRAM(addr):
		binary.LittleEndian.PutUint32(b.sram[addr-SRAMBase:], v)
	case addr >= flashCtlBase && addr < flashCtlBase+flashCtlSize:
		b.writeCtl(addr-flashCtlBase, v)
	default:
		return cmdErrBus
	}
	return cmdErrNone
}

func (b *bus) readCtl(off uint32) uint32 {
	switch off {
	case flashSTATR:
		var st uint32
		if b.c.StuckBusy || b.busyLeft > 0 {
			st |= statrBusy
		}
		if b.c.StuckBusy || b.wrBusyLeft > 0 {
			st |= statrWrBusy
		}
		if b.busyLeft > 0 {
			b.busyLeft--
		}
		if b.wrBusyLeft > 0 {
			b.wrBusyLeft--
		}
		if b.eop {
			st |= statrEOP
		}
		return st
	case flashCTLR:
		v := b.ctlr
		if b.locked {
			v |= ctlrLock
		}
		if b.fastLocked {
			v |= ctlrFLock
		}
		if b.optUnlocked {
			v |= ctlrOPTWRE
		}
		return v
	case flashADDR:
		return b.addr
	}
	return 0
}

func (b *bus) writeCtl(off, v uint32) {
	switch off {
	case flashKEYR:
		if b.keys[0].feed(v) && !b.c.UnlockFails {
			b.locked = false
			b.c.Unlocks++
		}
	case flashOBKEYR:
		if b.keys[1].feed(v) && !b.c.UnlockFails {
			b.optUnlocked = true
		}
	case flashMODEKEYR:
		if b.keys[2].feed(v) && !b.c.UnlockFails && !b.locked {
			b.fastLocked = false
		}
	case flashSTATR:
		if v&statrEOP != 0 {
			b.eop = false
		}
	case flashADDR:
		b.addr = v
	case flashCTLR:
		b.writeCTLR(v)
	}
}

func (b *bus) writeCTLR(v uint32) {
	if b.locked {
		glog.V(3).Infof("sim: CTLR write 0x%08x ignored, flash is locked", v)
		return
	}
	if v&ctlrLock != 0 {
		b.locked = true
	}
	if v&ctlrFLock != 0 {
		b.fastLocked = true
	}
	b.ctlr = v &^ (ctlrLock | ctlrFLock | ctlrOPTWRE | ctlrSTRT | ctlrPGSTRT)
	if b.ctlr&ctlrFTPG == 0 {
		b.pageBuf = map[uint32]uint32{}
	}
	if b.fastLocked {
		return
	}
	base := b.addr &^ (blockSize - 1)
	switch {
	case v&ctlrFTER != 0 && v&ctlrSTRT != 0:
		if !b.inFlash(base) {
			return
		}
		off := base - FlashBase
		for i := uint32(0); i < blockSize; i++ {
			b.flash[off+i] = 0xff
		}
		b.c.Erases = append(b.c.Erases, base)
		b.busyLeft, b.eop = b.c.BusyReads, true
	case v&ctlrFTPG != 0 && v&ctlrPGSTRT != 0:
		if !b.inFlash(base) {
			return
		}
		off := base - FlashBase
		for wo, w := range b.pageBuf {
			old := binary.LittleEndian.Uint32(b.flash[off+wo:])
			// Programming can only clear bits.
			binary.LittleEndian.PutUint32(b.flash[off+wo:], old&w)
		}
		b.pageBuf = map[uint32]uint32{}
		b.c.Programs = append(b.c.Programs, base)
		b.busyLeft, b.eop = b.c.BusyReads, true
	}
}
