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
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/ch32prog/cli/flash/common"
)

// Target drives the debug module of a CH32V203 over a borrowed DebugLink.
// A Target is not safe for concurrent use. The link must not be used by
// anyone else while the Target is in use.
type Target struct {
	link  common.DebugLink
	opts  Options
	pb    *ProgramBuffer
	state RunState
}

// NewTarget creates a target. opts is normally based on DefaultOptions().
func NewTarget(link common.DebugLink, opts Options) *Target {
	if opts.Progress == nil {
		opts.Progress = func(string, int, int) {}
	}
	t := &Target{link: link, opts: opts}
	t.pb = &ProgramBuffer{t: t}
	return t
}

func (t *Target) Options() Options {
	return t.opts
}

// State returns the last confirmed run state of the core.
func (t *Target) State() RunState {
	return t.state
}

// ProgramBuffer returns the target's program buffer.
func (t *Target) ProgramBuffer() *ProgramBuffer {
	return t.pb
}

func (t *Target) readDM(ctx context.Context, reg DMReg) (uint32, error) {
	v, err := t.link.ReadDMI(ctx, uint8(reg))
	if err != nil {
		return 0, errors.Annotatef(err, "failed to read %s", reg)
	}
	glog.V(4).Infof("%s -> 0x%08x", reg, v)
	return v, nil
}

func (t *Target) writeDM(ctx context.Context, reg DMReg, value uint32) error {
	glog.V(4).Infof("%s <- 0x%08x", reg, value)
	return errors.Annotatef(t.link.WriteDMI(ctx, uint8(reg), value), "failed to write %s", reg)
}

// writeDMSeq writes values to the same register in order.
func (t *Target) writeDMSeq(ctx context.Context, reg DMReg, values ...uint32) error {
	for _, v := range values {
		if err := t.writeDM(ctx, reg, v); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (t *Target) poller(interval time.Duration, retries int, timeout time.Duration) *common.Poller {
	return &common.Poller{
		Interval: interval,
		Retries:  retries,
		Timeout:  timeout,
		Sleep:    t.opts.Sleep,
		Now:      t.opts.Now,
	}
}
