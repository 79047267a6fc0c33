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

	"github.com/juju/errors"
)

const ProgBufSize = progBufSlots * 4

// ProgramBuffer is the debug module's instruction buffer.
// Each Run overwrites all of it, so nothing from a previous program survives.
type ProgramBuffer struct {
	t *Target
}

// Run loads code into the program buffer and executes it on the halted core.
// code must be at most ProgBufSize bytes long and consist of whole 16-bit parcels.
func (pb *ProgramBuffer) Run(ctx context.Context, code []byte) error {
	if len(code) > ProgBufSize {
		return errors.Annotatef(ErrProgramTooLong, "%d/%d", len(code), ProgBufSize)
	}
	if len(code)%2 != 0 {
		return errors.Annotatef(ErrProgramMisaligned, "%d", len(code))
	}
	var buf [ProgBufSize]byte
	copy(buf[:], code)
	for i := 0; i < progBufSlots; i++ {
		w := binary.LittleEndian.Uint32(buf[i*4:])
		if err := pb.t.writeDM(ctx, DMProgBuf0+DMReg(i), w); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Annotatef(pb.t.execCommand(ctx, EncodeCommand(0, false, false, true)), "progbuf exec")
}
