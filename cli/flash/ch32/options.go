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
	"time"

	"github.com/golang/glog"
)

const (
	DefaultFlashOrigin = 0x08000000
	DefaultFlashSize   = 0x4000
)

// ProgressFunc receives progress updates during a range write.
// done is the number of bytes already written out of total.
type ProgressFunc func(msg string, done, total int)

// LogProgress is the default progress sink.
func LogProgress(msg string, done, total int) {
	pct := 100
	if total > 0 {
		pct = done * 100 / total
	}
	glog.Infof("%s: %d%% (%d/%d)", msg, pct, done, total)
}

type Options struct {
	FlashOrigin uint32
	FlashSize   uint32

	// DMSTATUS polling for halt, resume and reset: one read, then up to
	// PollRetries more, PollInterval apart.
	PollInterval time.Duration
	PollRetries  int

	// FlashBusyTimeout bounds each wait for the flash controller. 0 waits forever.
	FlashBusyTimeout time.Duration
	// FlashPollInterval is the pause between STATR reads while BUSY is set.
	FlashPollInterval time.Duration

	// ResetSettleDelay follows each DMCONTROL write after a core reset.
	ResetSettleDelay time.Duration
	// ProgramSettleDelay precedes block read-back.
	ProgramSettleDelay time.Duration

	// CheckAbstractCS makes every abstract command check ABSTRACTCS.cmderr.
	CheckAbstractCS bool

	Progress ProgressFunc

	Sleep func(time.Duration)
	Now   func() time.Time
}

func DefaultOptions() Options {
	return Options{
		FlashOrigin:        DefaultFlashOrigin,
		FlashSize:          DefaultFlashSize,
		PollInterval:       10 * time.Millisecond,
		PollRetries:        5,
		FlashBusyTimeout:   1 * time.Second,
		FlashPollInterval:  1 * time.Millisecond,
		ResetSettleDelay:   10 * time.Millisecond,
		ProgramSettleDelay: 1 * time.Millisecond,
		Progress:           LogProgress,
	}
}

func (o *Options) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if o.Sleep != nil {
		o.Sleep(d)
	} else {
		time.Sleep(d)
	}
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
