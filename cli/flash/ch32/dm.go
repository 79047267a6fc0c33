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

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/ch32prog/cli/flash/common"
)

// DMSTATUS field pairs (any/all), checked for 0b11.
const (
	dmstatusHaltedShift    = 8
	dmstatusRunningShift   = 10 // Resume confirmation looks at these, not at resumeack.
	dmstatusHaveResetShift = 18
)

// waitDMStatus polls DMSTATUS until both bits at shift are set.
// The last value read is returned in any case.
func (t *Target) waitDMStatus(ctx context.Context, shift uint) (uint32, error) {
	var st uint32
	err := t.poller(t.opts.PollInterval, t.opts.PollRetries, 0).Poll(ctx, func(ctx context.Context) (bool, error) {
		v, err := t.readDM(ctx, DMStatus)
		if err != nil {
			return false, errors.Trace(err)
		}
		st = v
		return (v>>shift)&3 == 3, nil
	})
	return st, err
}

// Halt stops the core.
func (t *Target) Halt(ctx context.Context) error {
	glog.V(3).Infof("Halting core (was %s)", t.state)
	if err := t.writeDMSeq(ctx, DMControl,
		dmcontrolHaltReq|dmcontrolDMActive, // Activate the debug module.
		dmcontrolHaltReq|dmcontrolDMActive, // Request halt.
	); err != nil {
		return errors.Trace(err)
	}
	st, err := t.waitDMStatus(ctx, dmstatusHaltedShift)
	if err != nil {
		if common.IsPollExhausted(err) {
			glog.Errorf("Failed to halt core, DMSTATUS=0x%08x", st)
			return errors.Annotatef(ErrHaltTimeout, "DMSTATUS 0x%08x", st)
		}
		return errors.Trace(err)
	}
	if err := t.writeDM(ctx, DMControl, dmcontrolDMActive); err != nil {
		return errors.Trace(err)
	}
	t.state = StateHalted
	glog.V(3).Infof("Core halted")
	return nil
}

// Resume lets the core run from where it stopped.
func (t *Target) Resume(ctx context.Context) error {
	glog.V(3).Infof("Resuming core (was %s)", t.state)
	if err := t.writeDMSeq(ctx, DMControl,
		dmcontrolHaltReq|dmcontrolDMActive,
		dmcontrolHaltReq|dmcontrolDMActive,
		dmcontrolDMActive,
		dmcontrolResumeReq|dmcontrolDMActive,
	); err != nil {
		return errors.Trace(err)
	}
	st, err := t.waitDMStatus(ctx, dmstatusRunningShift)
	if err != nil {
		if common.IsPollExhausted(err) {
			glog.Errorf("Failed to resume core, DMSTATUS=0x%08x", st)
			return errors.Annotatef(ErrResumeTimeout, "DMSTATUS 0x%08x", st)
		}
		return errors.Trace(err)
	}
	t.state = StateRunning
	glog.V(3).Infof("Core resumed")
	return nil
}

// ResetRun resets the core and lets it run from the reset vector.
func (t *Target) ResetRun(ctx context.Context) error {
	glog.V(3).Infof("Resetting core (was %s)", t.state)
	if err := t.writeDMSeq(ctx, DMControl,
		dmcontrolHaltReq|dmcontrolDMActive,
		dmcontrolHaltReq|dmcontrolDMActive,
		dmcontrolDMActive,
		dmcontrolNDMReset|dmcontrolDMActive,
	); err != nil {
		return errors.Trace(err)
	}
	t.state = StateHeldInReset
	st, err := t.waitDMStatus(ctx, dmstatusHaveResetShift)
	if err != nil {
		if common.IsPollExhausted(err) {
			glog.Errorf("Failed to reset core, DMSTATUS=0x%08x", st)
			return errors.Annotatef(ErrResetTimeout, "DMSTATUS 0x%08x", st)
		}
		return errors.Trace(err)
	}
	// Release reset, then acknowledge havereset.
	for _, v := range []uint32{
		dmcontrolDMActive,
		dmcontrolAckHaveReset | dmcontrolDMActive,
		dmcontrolDMActive,
	} {
		if err := t.writeDM(ctx, DMControl, v); err != nil {
			return errors.Trace(err)
		}
		t.opts.sleep(t.opts.ResetSettleDelay)
	}
	t.state = StateRunning
	glog.V(3).Infof("Core reset")
	return nil
}
