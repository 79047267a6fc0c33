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
	"fmt"
)

// Command is an abstract command word, written to COMMAND.
type Command uint32

const (
	commandWrite    Command = 1 << 16
	commandTransfer Command = 1 << 17
	commandPostExec Command = 1 << 18

	commandSizeShift = 20
	commandSize32    = 2 // aarsize: 32-bit register access.

	commandTypeShift          = 24
	commandTypeAccessRegister = 0 // The only command type used here.
)

// EncodeCommand builds an "access register" command.
// If transfer is set, regno is read into DATA0 (or written from it, if write is set).
// If postExec is set, the program buffer is executed afterwards.
func EncodeCommand(regno RegNo, write, transfer, postExec bool) Command {
	cmd := Command(regno) |
		Command(commandSize32)<<commandSizeShift |
		Command(commandTypeAccessRegister)<<commandTypeShift
	if write {
		cmd |= commandWrite
	}
	if transfer {
		cmd |= commandTransfer
	}
	if postExec {
		cmd |= commandPostExec
	}
	return cmd
}

func (c Command) RegNo() RegNo {
	return RegNo(c & 0xffff)
}

func (c Command) Write() bool {
	return c&commandWrite != 0
}

func (c Command) Transfer() bool {
	return c&commandTransfer != 0
}

func (c Command) PostExec() bool {
	return c&commandPostExec != 0
}

func (c Command) String() string {
	s := "exec"
	if c.Transfer() {
		dir := "read"
		if c.Write() {
			dir = "write"
		}
		s = fmt.Sprintf("%s %s", dir, c.RegNo())
		if c.PostExec() {
			s += " + exec"
		}
	}
	return fmt.Sprintf("[0x%08x %s]", uint32(c), s)
}
