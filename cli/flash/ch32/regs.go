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

// Doc: RISC-V External Debug Support 0.13.2, WCH QingKe V4 debug manual.

// DMReg is a debug module register address as seen on the RVSWD link.
type DMReg uint8

const (
	DMData0        DMReg = 0x04 // Data register 0, staging for abstract command transfers
	DMData1        DMReg = 0x05
	DMControl      DMReg = 0x10
	DMStatus       DMReg = 0x11
	DMHartInfo     DMReg = 0x12
	DMAbstractCS   DMReg = 0x16
	DMCommand      DMReg = 0x17
	DMAbstractAuto DMReg = 0x18
	DMProgBuf0     DMReg = 0x20 // PROGBUF0..7 occupy 0x20..0x27
	DMHaltSum0     DMReg = 0x40
	DMCPBR         DMReg = 0x7c // Capability register
	DMCFGR         DMReg = 0x7d // Configuration register
	DMShdwCFGR     DMReg = 0x7e // Shadow configuration register
)

const progBufSlots = 8

// DMCONTROL bits.
const (
	dmcontrolDMActive     uint32 = 1 << 0
	dmcontrolNDMReset     uint32 = 1 << 1
	dmcontrolAckHaveReset uint32 = 1 << 28
	dmcontrolResumeReq    uint32 = 1 << 30
	dmcontrolHaltReq      uint32 = 1 << 31
)

// ABSTRACTCS fields.
const (
	abstractcsCmdErrShift        = 8
	abstractcsCmdErrMask  uint32 = 7 << abstractcsCmdErrShift
	abstractcsBusy        uint32 = 1 << 12
)

// RegNo is a core register number used in abstract commands.
type RegNo uint16

const (
	regsCSR RegNo = 0x0000 // Offset for accessing CSRs.
	regsGPR RegNo = 0x1000 // Offset for accessing general-purpose (x)registers.
)

// CSR returns the abstract register number of a control and status register.
func CSR(n uint16) RegNo {
	return regsCSR + RegNo(n&0xfff)
}

// GPR returns the abstract register number of general-purpose register xN.
func GPR(n int) RegNo {
	return regsGPR + RegNo(n&0x1f)
}

func (r RegNo) IsGPR() bool {
	return r >= regsGPR && r < regsGPR+32
}

func (r RegNo) String() string {
	if r.IsGPR() {
		return fmt.Sprintf("x%d", int(r-regsGPR))
	}
	return fmt.Sprintf("csr 0x%03x", uint16(r))
}

// RunState is the last confirmed run state of the core.
type RunState int

const (
	StateUnknown RunState = iota
	StateRunning
	StateHalted
	StateHeldInReset
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateHeldInReset:
		return "held in reset"
	}
	return "unknown"
}

func (r DMReg) String() string {
	switch r {
	case DMData0:
		return "DATA0"
	case DMData1:
		return "DATA1"
	case DMControl:
		return "DMCONTROL"
	case DMStatus:
		return "DMSTATUS"
	case DMHartInfo:
		return "HARTINFO"
	case DMAbstractCS:
		return "ABSTRACTCS"
	case DMCommand:
		return "COMMAND"
	case DMAbstractAuto:
		return "ABSTRACTAUTO"
	case DMHaltSum0:
		return "HALTSUM0"
	case DMCPBR:
		return "CPBR"
	case DMCFGR:
		return "CFGR"
	case DMShdwCFGR:
		return "SHDWCFGR"
	}
	if r >= DMProgBuf0 && r < DMProgBuf0+progBufSlots {
		return fmt.Sprintf("PROGBUF%d", uint8(r-DMProgBuf0))
	}
	return fmt.Sprintf("0x%02x", uint8(r))
}
