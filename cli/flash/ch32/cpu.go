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
	"fmt"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// WriteReg writes a core register. The core must be halted.
func (t *Target) WriteReg(ctx context.Context, regno RegNo, value uint32) error {
	if err := t.writeDM(ctx, DMData0, value); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(t.execCommand(ctx, EncodeCommand(regno, true, true, false)), "write %s", regno)
}

// ReadReg reads a core register. The core must be halted.
func (t *Target) ReadReg(ctx context.Context, regno RegNo) (uint32, error) {
	if err := t.execCommand(ctx, EncodeCommand(regno, false, true, false)); err != nil {
		return 0, errors.Annotatef(err, "read %s", regno)
	}
	return t.readDM(ctx, DMData0)
}

// execCommand issues an abstract command.
// Completion is not checked unless CheckAbstractCS is set.
func (t *Target) execCommand(ctx context.Context, cmd Command) error {
	glog.V(4).Infof("COMMAND %s", cmd)
	if err := t.writeDM(ctx, DMCommand, uint32(cmd)); err != nil {
		return errors.Trace(err)
	}
	if !t.opts.CheckAbstractCS {
		return nil
	}
	var cs uint32
	err := t.poller(t.opts.PollInterval, t.opts.PollRetries, 0).Poll(ctx, func(ctx context.Context) (bool, error) {
		v, err := t.readDM(ctx, DMAbstractCS)
		cs = v
		return v&abstractcsBusy == 0, errors.Trace(err)
	})
	if err != nil {
		return errors.Annotatef(err, "%s: ABSTRACTCS 0x%08x", cmd, cs)
	}
	if cmdErr := (cs & abstractcsCmdErrMask) >> abstractcsCmdErrShift; cmdErr != 0 {
		// cmderr is write-1-to-clear.
		if err := t.writeDM(ctx, DMAbstractCS, abstractcsCmdErrMask); err != nil {
			return errors.Trace(err)
		}
		return errors.Annotatef(ErrCommandFailed, "%s: %s", cmd, cmdErrString(cmdErr))
	}
	return nil
}

func cmdErrString(cmdErr uint32) string {
	switch cmdErr {
	case 1:
		return "busy"
	case 2:
		return "not supported"
	case 3:
		return "exception"
	case 4:
		return "halt/resume"
	case 5:
		return "bus"
	}
	return fmt.Sprintf("cmderr %d", cmdErr)
}
