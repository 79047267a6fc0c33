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
package main

import (
	"context"
	"io/ioutil"
	"os"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/ch32prog/cli/flash/ch32"
	"github.com/mongoose-os/ch32prog/cli/ourutil"
)

func flashWrite(ctx context.Context) error {
	args := flag.Args()
	if len(args) != 3 {
		return errors.Errorf("address and file are required")
	}
	addr, err := ourutil.ParseUint32(args[1], "address")
	if err != nil {
		return errors.Trace(err)
	}
	var data []byte
	inFile := args[2]
	if inFile == "-" {
		data, err = ioutil.ReadAll(os.Stdin)
	} else {
		data, err = ioutil.ReadFile(inFile)
	}
	if err != nil {
		return errors.Annotatef(err, "failed to read %s", inFile)
	}

	return connected(ctx, func(ctx context.Context, t *ch32.Target) error {
		if err := t.CheckRange(addr, len(data)); err != nil {
			return errors.Trace(err)
		}
		if err := t.Unlock(ctx); err != nil {
			return errors.Trace(err)
		}
		ourutil.Reportf("Writing %d bytes @ 0x%08x...", len(data), addr)
		if err := t.WriteRange(ctx, addr, data); err != nil {
			return errors.Trace(err)
		}
		ourutil.Successf("Wrote %d bytes @ 0x%08x, target is halted", len(data), addr)
		return nil
	})
}

func flashErase(ctx context.Context) error {
	args := flag.Args()
	if len(args) != 3 {
		return errors.Errorf("address and length are required")
	}
	addr, err := ourutil.ParseUint32(args[1], "address")
	if err != nil {
		return errors.Trace(err)
	}
	length, err := ourutil.ParseUint32(args[2], "length")
	if err != nil {
		return errors.Trace(err)
	}
	if addr%ch32.BlockSize != 0 {
		return errors.Annotatef(ch32.ErrAddressMisaligned, "0x%08x", addr)
	}
	if length == 0 {
		return errors.NotValidf("zero length")
	}
	// Round up to whole blocks, in 64 bits so that the largest lengths do not wrap.
	size := (uint64(length) + ch32.BlockSize - 1) / ch32.BlockSize * ch32.BlockSize

	return connected(ctx, func(ctx context.Context, t *ch32.Target) error {
		if err := t.CheckRange(addr, int(length)); err != nil {
			return errors.Trace(err)
		}
		if err := t.Unlock(ctx); err != nil {
			return errors.Trace(err)
		}
		for off := uint64(0); off < size; off += ch32.BlockSize {
			if err := ctx.Err(); err != nil {
				return errors.Trace(err)
			}
			if err := t.EraseBlock(ctx, addr+uint32(off)); err != nil {
				return errors.Trace(err)
			}
		}
		ourutil.Successf("Erased %d bytes @ 0x%08x", size, addr)
		return nil
	})
}
