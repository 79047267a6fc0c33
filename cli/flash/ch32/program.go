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

type Stats struct {
	Bytes   int
	Elapsed time.Duration
}

// KBitPerSec returns the effective write speed.
func (s *Stats) KBitPerSec() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Bytes) * 8 / 1024 / secs
}

// Program writes firmware at the flash origin and restarts the target.
func Program(ctx context.Context, link common.DebugLink, firmware []byte, opts Options) error {
	_, err := NewTarget(link, opts).Program(ctx, firmware)
	return err
}

// Connect initializes the link, resets it and halts the core.
func (t *Target) Connect(ctx context.Context) error {
	if err := t.link.Init(ctx); err != nil {
		glog.Errorf("Init error: %s", err)
		return withKind(err, ErrLinkInitFailed)
	}
	if err := t.link.ResetLink(ctx); err != nil {
		glog.Errorf("Link reset error: %s", err)
		return withKind(err, ErrLinkResetFailed)
	}
	if err := t.Halt(ctx); err != nil {
		glog.Errorf("Failed to halt: %s", err)
		return errors.Trace(err)
	}
	return nil
}

// Program runs the whole sequence: connect, unlock, write and reset.
// Any failure stops it; the target is left as the failing step left it.
func (t *Target) Program(ctx context.Context, firmware []byte) (*Stats, error) {
	if err := t.CheckRange(t.opts.FlashOrigin, len(firmware)); err != nil {
		return nil, errors.Trace(err)
	}
	start := t.opts.now()
	if err := t.Connect(ctx); err != nil {
		return nil, errors.Trace(err)
	}
	if err := t.Unlock(ctx); err != nil {
		glog.Errorf("Failed to unlock: %s", err)
		return nil, errors.Trace(err)
	}
	glog.Infof("Writing %d bytes @ 0x%08x", len(firmware), t.opts.FlashOrigin)
	if err := t.WriteRange(ctx, t.opts.FlashOrigin, firmware); err != nil {
		return nil, errors.Annotatef(err, "failed to write flash")
	}
	st := &Stats{Bytes: len(firmware), Elapsed: t.opts.now().Sub(start)}
	glog.Infof("Wrote %d bytes in %.2f seconds (%.2f KBit/sec)", st.Bytes, st.Elapsed.Seconds(), st.KBitPerSec())
	if err := t.ResetRun(ctx); err != nil {
		glog.Errorf("Failed to reset: %s", err)
		return nil, errors.Trace(err)
	}
	return st, nil
}
