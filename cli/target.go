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
package main

import (
	"context"

	"github.com/juju/errors"

	"github.com/mongoose-os/ch32prog/cli/flash/ch32"
	"github.com/mongoose-os/ch32prog/cli/ourutil"
)

func halt(ctx context.Context) error {
	return connected(ctx, func(ctx context.Context, t *ch32.Target) error {
		ourutil.Successf("Target halted")
		return nil
	})
}

func resume(ctx context.Context) error {
	return connected(ctx, func(ctx context.Context, t *ch32.Target) error {
		if err := t.Resume(ctx); err != nil {
			return errors.Trace(err)
		}
		ourutil.Successf("Target resumed")
		return nil
	})
}

func reset(ctx context.Context) error {
	return connected(ctx, func(ctx context.Context, t *ch32.Target) error {
		if err := t.ResetRun(ctx); err != nil {
			return errors.Trace(err)
		}
		ourutil.Successf("Target reset and running")
		return nil
	})
}
