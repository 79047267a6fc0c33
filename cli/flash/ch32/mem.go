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

	"github.com/juju/errors"

	"github.com/mongoose-os/ch32prog/cli/flash/common"
)

// RV32C snippets. Address in a1 (x11), value in a0 (x10).
var (
	// c.lw a0, 0(a1); c.ebreak
	snippetLoadWord = []byte{0x88, 0x41, 0x02, 0x90}
	// c.sw a0, 0(a1); c.ebreak
	snippetStoreWord = []byte{0x88, 0xc1, 0x02, 0x90}
)

var (
	regAddr  = GPR(11)
	regValue = GPR(10)
)

// ReadWord reads a 32-bit word of target memory using the core.
func (t *Target) ReadWord(ctx context.Context, addr uint32) (uint32, error) {
	if err := t.WriteReg(ctx, regAddr, addr); err != nil {
		return 0, errors.Annotatef(err, "read 0x%08x", addr)
	}
	if err := t.pb.Run(ctx, snippetLoadWord); err != nil {
		return 0, errors.Annotatef(err, "read 0x%08x", addr)
	}
	v, err := t.ReadReg(ctx, regValue)
	return v, errors.Annotatef(err, "read 0x%08x", addr)
}

// WriteWord writes a 32-bit word of target memory using the core.
func (t *Target) WriteWord(ctx context.Context, addr, value uint32) error {
	if err := t.WriteReg(ctx, regValue, value); err != nil {
		return errors.Annotatef(err, "write 0x%08x", addr)
	}
	if err := t.WriteReg(ctx, regAddr, addr); err != nil {
		return errors.Annotatef(err, "write 0x%08x", addr)
	}
	return errors.Annotatef(t.pb.Run(ctx, snippetStoreWord), "write 0x%08x", addr)
}

func (t *Target) ReadTargetReg(ctx context.Context, addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, errors.Annotatef(ErrAddressMisaligned, "0x%08x", addr)
	}
	return t.ReadWord(ctx, addr)
}

func (t *Target) WriteTargetReg(ctx context.Context, addr uint32, value uint32) error {
	if addr%4 != 0 {
		return errors.Annotatef(ErrAddressMisaligned, "0x%08x", addr)
	}
	return t.WriteWord(ctx, addr, value)
}

func (t *Target) ReadTargetMem(ctx context.Context, addr uint32, numWords int) ([]uint32, error) {
	if addr%4 != 0 {
		return nil, errors.Annotatef(ErrAddressMisaligned, "0x%08x", addr)
	}
	res := make([]uint32, 0, numWords)
	for i := 0; i < numWords; i++ {
		v, err := t.ReadWord(ctx, addr+uint32(i*4))
		if err != nil {
			return nil, errors.Trace(err)
		}
		res = append(res, v)
	}
	return res, nil
}

func (t *Target) WriteTargetMem(ctx context.Context, addr uint32, data []uint32) error {
	if addr%4 != 0 {
		return errors.Annotatef(ErrAddressMisaligned, "0x%08x", addr)
	}
	for i, v := range data {
		if err := t.WriteWord(ctx, addr+uint32(i*4), v); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ReadRange reads n bytes of target memory starting at word-aligned addr.
func (t *Target) ReadRange(ctx context.Context, addr uint32, n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.NotValidf("length %d", n)
	}
	words, err := t.ReadTargetMem(ctx, addr, (n+3)/4)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return wordsToBytes(words)[:n], nil
}

var _ common.TargetMemReaderWriter = (*Target)(nil)
