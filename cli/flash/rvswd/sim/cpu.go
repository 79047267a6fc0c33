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
	"github.com/golang/glog"
)

const (
	insnCEbreak = 0x9002
	insnCNop    = 0x0001
)

// exec runs the program buffer until ebreak or the end of the buffer.
// Only the few compressed instructions needed for memory access are implemented.
func (c *Chip) exec() uint32 {
	for pc := 0; pc < progBufSlots*4; pc += 2 {
		w := c.progbuf[pc/4]
		insn := uint16(w >> (uint(pc%4) * 8))
		if insn&3 == 3 {
			glog.V(3).Infof("sim: 32-bit instruction at %d not supported", pc)
			return cmdErrException
		}
		switch {
		case insn == insnCEbreak:
			return cmdErrNone
		case insn == insnCNop:
			continue
		case insn&0xe003 == 0x4000: // c.lw rd', off(rs1')
			rd, rs1 := cReg(insn>>2), cReg(insn>>7)
			v, err := c.mem.load(c.gpr[rs1] + cLWOffset(insn))
			if err != cmdErrNone {
				return err
			}
			c.gpr[rd] = v
		case insn&0xe003 == 0xc000: // c.sw rs2', off(rs1')
			rs2, rs1 := cReg(insn>>2), cReg(insn>>7)
			if err := c.mem.store(c.gpr[rs1]+cLWOffset(insn), c.gpr[rs2]); err != cmdErrNone {
				return err
			}
		default:
			glog.V(3).Infof("sim: instruction 0x%04x at %d not supported", insn, pc)
			return cmdErrException
		}
	}
	// Falling off the end of the buffer is an implicit ebreak.
	return cmdErrNone
}

// cReg decodes a 3-bit compressed register field (x8-x15).
func cReg(f uint16) int {
	return 8 + int(f&7)
}

// cLWOffset decodes the offset of c.lw / c.sw: uimm[5:3] at 12:10, uimm[2] at 6, uimm[6] at 5.
func cLWOffset(insn uint16) uint32 {
	return uint32((insn>>10)&7)<<3 | uint32((insn>>6)&1)<<2 | uint32((insn>>5)&1)<<6
}
