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

	"github.com/juju/errors"
)

// Error kinds. Use errors.Cause to match them.
var (
	ErrLinkInitFailed    = errors.New("link init failed")
	ErrLinkResetFailed   = errors.New("link reset failed")
	ErrHaltTimeout       = errors.New("halt timeout")
	ErrResumeTimeout     = errors.New("resume timeout")
	ErrResetTimeout      = errors.New("reset timeout")
	ErrProgramTooLong    = errors.New("debug program too long")
	ErrProgramMisaligned = errors.New("debug program size must be a multiple of 2")
	ErrAddressMisaligned = errors.New("address misaligned")
	ErrUnlockFailed      = errors.New("flash unlock failed")
	ErrFlashBusyTimeout  = errors.New("flash busy timeout")
	ErrImageTooLarge     = errors.New("image does not fit in flash")
	ErrCommandFailed     = errors.New("abstract command failed")
)

// EraseError is returned when a flash block erase did not complete.
type EraseError struct {
	Addr uint32
	Err  error
}

func (e *EraseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("erase failed at 0x%08x", e.Addr)
	}
	return fmt.Sprintf("erase failed at 0x%08x: %s", e.Addr, e.Err)
}

// VerifyError is returned when the contents of a flash block read back after
// programming differ from the data written.
type VerifyError struct {
	Addr     uint32
	Expected []uint32
	Actual   []uint32
}

// Mismatches returns indices of the words that differ.
func (e *VerifyError) Mismatches() []int {
	var res []int
	for i := range e.Expected {
		if i >= len(e.Actual) || e.Expected[i] != e.Actual[i] {
			res = append(res, i)
		}
	}
	return res
}

func (e *VerifyError) Error() string {
	mm := e.Mismatches()
	if len(mm) == 0 {
		return fmt.Sprintf("verify mismatch at 0x%08x", e.Addr)
	}
	i := mm[0]
	var got uint32
	if i < len(e.Actual) {
		got = e.Actual[i]
	}
	return fmt.Sprintf("verify mismatch at 0x%08x: %d of %d words differ, first at 0x%08x (want 0x%08x, got 0x%08x)",
		e.Addr, len(mm), len(e.Expected), e.Addr+uint32(i*4), e.Expected[i], got)
}

// withKind returns an error that has kind as its cause and keeps err's message.
func withKind(err, kind error) error {
	return errors.Wrapf(err, kind, "%s", err)
}

// IsEraseError returns true if err was caused by a failed block erase.
func IsEraseError(err error) bool {
	_, ok := errors.Cause(err).(*EraseError)
	return ok
}

// AsVerifyError returns the verify error that caused err, if any.
func AsVerifyError(err error) (*VerifyError, bool) {
	ve, ok := errors.Cause(err).(*VerifyError)
	return ve, ok
}
