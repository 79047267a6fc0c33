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
	"encoding/binary"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/ch32prog/cli/flash/common"
)

// Flash controller registers.
const (
	flashKEYR     = 0x40022004
	flashOBKEYR   = 0x40022008
	flashSTATR    = 0x4002200c
	flashCTLR     = 0x40022010
	flashADDR     = 0x40022014
	flashMODEKEYR = 0x40022024

	flashKey1 = 0x45670123
	flashKey2 = 0xcdef89ab
)

const (
	statrBusy   = 1 << 0 // Erase or program in progress.
	statrWrBusy = 1 << 1 // Page buffer word write in progress.
	statrEOP    = 1 << 5

	ctlrSTRT   = 1 << 6
	ctlrLock   = 1 << 7
	ctlrFLock  = 1 << 15 // Fast program mode lock.
	ctlrFTPG   = 1 << 16
	ctlrFTER   = 1 << 17
	ctlrPGSTRT = 1 << 21
)

const (
	// BlockSize is the unit of fast erase and fast program.
	BlockSize = 256
	// RangeAlign is the alignment required of a range write.
	RangeAlign = 64

	blockWords = BlockSize / 4
	erasedByte = 0xff
)

// Unlock enters the unlock keys for the flash, option bytes and fast mode.
// The keys are entered even if the flash is already unlocked.
func (t *Target) Unlock(ctx context.Context) error {
	ctlr, err := t.ReadWord(ctx, flashCTLR)
	if err != nil {
		return errors.Annotatef(err, "failed to read CTLR")
	}
	glog.Infof("CTLR before unlock: 0x%08x", ctlr)
	for _, reg := range []uint32{flashKEYR, flashOBKEYR, flashMODEKEYR} {
		for _, key := range []uint32{flashKey1, flashKey2} {
			if err := t.WriteWord(ctx, reg, key); err != nil {
				return errors.Annotatef(err, "failed to write key")
			}
		}
	}
	ctlr, err = t.ReadWord(ctx, flashCTLR)
	if err != nil {
		return errors.Annotatef(err, "failed to read CTLR")
	}
	glog.Infof("CTLR after unlock: 0x%08x", ctlr)
	if ctlr&(ctlrLock|ctlrFLock) != 0 {
		return errors.Annotatef(ErrUnlockFailed, "CTLR 0x%08x", ctlr)
	}
	return nil
}

// waitFlashStatus waits for the STATR bits in mask to clear.
func (t *Target) waitFlashStatus(ctx context.Context, mask uint32, interval time.Duration) error {
	var st uint32
	err := t.poller(interval, -1, t.opts.FlashBusyTimeout).Poll(ctx, func(ctx context.Context) (bool, error) {
		v, err := t.ReadWord(ctx, flashSTATR)
		if err != nil {
			return false, errors.Trace(err)
		}
		st = v
		return v&mask == 0, nil
	})
	if err != nil {
		if common.IsPollExhausted(err) {
			return errors.Annotatef(ErrFlashBusyTimeout, "STATR 0x%08x after %s", st, t.opts.FlashBusyTimeout)
		}
		return errors.Trace(err)
	}
	return nil
}

func (t *Target) waitFlash(ctx context.Context) error {
	return t.waitFlashStatus(ctx, statrBusy, t.opts.FlashPollInterval)
}

func (t *Target) waitFlashWrite(ctx context.Context) error {
	return t.waitFlashStatus(ctx, statrWrBusy, 0)
}

// writeFlashRegs writes flash controller registers in order, as (addr, value) pairs.
func (t *Target) writeFlashRegs(ctx context.Context, regs ...uint32) error {
	for i := 0; i+1 < len(regs); i += 2 {
		if err := t.WriteWord(ctx, regs[i], regs[i+1]); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// EraseBlock erases the 256-byte block at addr. Flash must be unlocked.
func (t *Target) EraseBlock(ctx context.Context, addr uint32) error {
	if addr%BlockSize != 0 {
		return errors.Annotatef(ErrAddressMisaligned, "erase 0x%08x", addr)
	}
	glog.V(2).Infof("Erasing 0x%08x", addr)
	err := t.waitFlash(ctx)
	if err == nil {
		err = t.writeFlashRegs(ctx,
			flashCTLR, ctlrFTER,
			flashADDR, addr,
			flashCTLR, ctlrFTER|ctlrSTRT)
	}
	if err == nil {
		err = t.waitFlash(ctx)
	}
	if err == nil {
		err = t.WriteWord(ctx, flashCTLR, 0)
	}
	if err != nil {
		return errors.Trace(&EraseError{Addr: addr, Err: err})
	}
	return nil
}

// WriteBlock programs the 256-byte block at addr and verifies it.
// The block must have been erased and flash must be unlocked.
func (t *Target) WriteBlock(ctx context.Context, addr uint32, data []byte) error {
	if addr%BlockSize != 0 {
		return errors.Annotatef(ErrAddressMisaligned, "write 0x%08x", addr)
	}
	if len(data) != BlockSize {
		return errors.NotValidf("block size %d", len(data))
	}
	words := bytesToWords(data)
	glog.V(2).Infof("Programming 0x%08x", addr)
	if err := t.waitFlash(ctx); err != nil {
		return errors.Annotatef(err, "write 0x%08x", addr)
	}
	if err := t.writeFlashRegs(ctx, flashCTLR, ctlrFTPG, flashADDR, addr); err != nil {
		return errors.Annotatef(err, "write 0x%08x", addr)
	}
	for i, w := range words {
		if err := t.WriteWord(ctx, addr+uint32(i*4), w); err != nil {
			return errors.Trace(err)
		}
		if err := t.waitFlashWrite(ctx); err != nil {
			return errors.Annotatef(err, "write 0x%08x", addr+uint32(i*4))
		}
	}
	if err := t.WriteWord(ctx, flashCTLR, ctlrFTPG|ctlrPGSTRT); err != nil {
		return errors.Annotatef(err, "write 0x%08x", addr)
	}
	if err := t.waitFlash(ctx); err != nil {
		return errors.Annotatef(err, "write 0x%08x", addr)
	}
	if err := t.WriteWord(ctx, flashCTLR, 0); err != nil {
		return errors.Annotatef(err, "write 0x%08x", addr)
	}
	t.opts.sleep(t.opts.ProgramSettleDelay)
	return t.verifyBlock(ctx, addr, words)
}

// WriteRange erases and programs data at addr, one block at a time.
// addr must be 64-byte aligned. A short last block is padded with 0xff.
// On error, blocks before the failing one stay written.
func (t *Target) WriteRange(ctx context.Context, addr uint32, data []byte) error {
	if addr%RangeAlign != 0 {
		return errors.Annotatef(ErrAddressMisaligned, "range write 0x%08x", addr)
	}
	for off := 0; off < len(data); off += BlockSize {
		a := addr + uint32(off)
		if err := ctx.Err(); err != nil {
			return errors.Annotatef(err, "stopped before 0x%08x", a)
		}
		t.opts.Progress(fmt.Sprintf("Writing at 0x%08x", a), off, len(data))
		block := data[off:]
		if len(block) > BlockSize {
			block = block[:BlockSize]
		} else if len(block) < BlockSize {
			block = padBlock(block)
		}
		if err := t.EraseBlock(ctx, a); err != nil {
			glog.Errorf("Failed to erase flash at 0x%08x: %s", a, err)
			return errors.Trace(err)
		}
		if err := t.WriteBlock(ctx, a, block); err != nil {
			glog.Errorf("Failed to write flash at 0x%08x: %s", a, err)
			return errors.Trace(err)
		}
	}
	return nil
}

// CheckRange returns an error if n bytes at addr do not fit in flash.
func (t *Target) CheckRange(addr uint32, n int) error {
	start, end := uint64(t.opts.FlashOrigin), uint64(t.opts.FlashOrigin)+uint64(t.opts.FlashSize)
	if n < 0 {
		return errors.NotValidf("length %d", n)
	}
	if uint64(addr) < start || uint64(addr)+uint64(n) > end {
		return errors.Annotatef(ErrImageTooLarge, "%d bytes @ 0x%08x, flash is 0x%08x-0x%08x", n, addr, start, end)
	}
	return nil
}

func padBlock(b []byte) []byte {
	res := make([]byte, BlockSize)
	n := copy(res, b)
	for i := n; i < BlockSize; i++ {
		res[i] = erasedByte
	}
	return res
}

func bytesToWords(b []byte) []uint32 {
	res := make([]uint32, len(b)/4)
	for i := range res {
		res[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return res
}

func wordsToBytes(words []uint32) []byte {
	res := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(res[i*4:], w)
	}
	return res
}
