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
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/ch32prog/cli/flags"
	"github.com/mongoose-os/ch32prog/cli/flash/ch32"
	"github.com/mongoose-os/ch32prog/cli/ourutil"
	"github.com/mongoose-os/ch32prog/common/fwbundle"
)

func flash(ctx context.Context) error {
	args := flag.Args()
	if len(args) != 2 {
		return errors.Errorf("firmware file is required")
	}
	fwname := args[1]

	opts, err := flags.TargetOptions()
	if err != nil {
		return errors.Trace(err)
	}
	img, err := fwbundle.LoadImage(fwname, opts.FlashOrigin, opts.FlashSize)
	if err != nil {
		return errors.Annotatef(err, "failed to load %s", fwname)
	}
	ourutil.Reportf("Loaded %s: %d bytes @ 0x%08x", img.Name, len(img.Data), img.Addr)
	if img.Addr != opts.FlashOrigin {
		return errors.Errorf("%s starts at 0x%08x, not at the flash origin 0x%08x, use flash-write", fwname, img.Addr, opts.FlashOrigin)
	}

	return withTarget(ctx, opts, func(ctx context.Context, t *ch32.Target) error {
		ourutil.Reportf("Flashing...")
		st, err := t.Program(ctx, img.Data)
		if err != nil {
			return errors.Trace(err)
		}
		ourutil.Successf("Wrote %d bytes in %.2f seconds (%.2f KBit/sec), target restarted", st.Bytes, st.Elapsed.Seconds(), st.KBitPerSec())
		return nil
	})
}
