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
	"time"

	"github.com/juju/errors"
)

// ErrPollExhausted is the cause of the error returned by Poll when the
// condition was not met within the configured bounds.
var ErrPollExhausted = errors.New("condition not met")

// Poller evaluates a condition repeatedly at a fixed interval.
//
// The condition is evaluated once, then re-evaluated up to Retries more times,
// sleeping Interval before each retry. A negative Retries means no limit on the
// number of attempts. If Timeout is non-zero, polling also gives up once Timeout
// has elapsed since the first attempt. With Retries < 0 and Timeout == 0 Poll
// does not return until the condition is met or evaluating it fails.
type Poller struct {
	Interval time.Duration
	Retries  int
	Timeout  time.Duration

	// Sleep and Now default to time.Sleep and time.Now.
	Sleep func(time.Duration)
	Now   func() time.Time
}

// Poll runs cond until it returns true or an error, or the poller is exhausted.
// Errors returned by cond are passed through as is.
func (p *Poller) Poll(ctx context.Context, cond func(ctx context.Context) (bool, error)) error {
	sleep, now := p.Sleep, p.Now
	if sleep == nil {
		sleep = time.Sleep
	}
	if now == nil {
		now = time.Now
	}
	start := now()
	for attempt := 0; ; attempt++ {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if p.Retries >= 0 && attempt >= p.Retries {
			return errors.Annotatef(ErrPollExhausted, "%d attempts", attempt+1)
		}
		if p.Timeout > 0 && now().Sub(start) >= p.Timeout {
			return errors.Annotatef(ErrPollExhausted, "%s", p.Timeout)
		}
		if p.Interval > 0 {
			sleep(p.Interval)
		}
	}
}

// IsPollExhausted returns true if err was caused by a poller running out of attempts or time.
func IsPollExhausted(err error) bool {
	return errors.Cause(err) == ErrPollExhausted
}
