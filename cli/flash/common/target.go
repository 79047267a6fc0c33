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
package common

import (
	"context"
)

type DMIReader interface {
	// ReadDMI reads a single 32-bit debug module register.
	ReadDMI(ctx context.Context, addr uint8) (uint32, error)
}

type DMIWriter interface {
	// WriteDMI writes a single 32-bit debug module register.
	WriteDMI(ctx context.Context, addr uint8, value uint32) error
}

type DMIReaderWriter interface {
	DMIReader
	DMIWriter
}

// DebugLink is an exclusive physical link to one target's debug module.
// Implementations must complete each register access before returning
// and preserve the order in which accesses are issued.
type DebugLink interface {
	DMIReaderWriter

	// Init establishes the physical link.
	Init(ctx context.Context) error
	// ResetLink performs a link-level reset. It does not reset the target core.
	ResetLink(ctx context.Context) error
	// Close releases the link.
	Close(ctx context.Context) error
}

type TargetMemReader interface {
	// ReadTargetReg reads a single 32-bit word from the target (handy for reading peripheral registers).
	ReadTargetReg(ctx context.Context, addr uint32) (uint32, error)
	// ReadTargetMem reads numWords words at the specified address in the target's memory.
	// addr must be word-aligned.
	ReadTargetMem(ctx context.Context, addr uint32, numWords int) ([]uint32, error)
}

type TargetMemWriter interface {
	// WriteTargetReg writes a single 32-bit word to the target.
	WriteTargetReg(ctx context.Context, addr uint32, value uint32) error
	// WriteTargetMem writes data at the specified address to the target's memory.
	// addr must be word-aligned.
	WriteTargetMem(ctx context.Context, addr uint32, data []uint32) error
}

type TargetMemReaderWriter interface {
	TargetMemReader
	TargetMemWriter
}
