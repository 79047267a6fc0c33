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
	"sync"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/ch32prog/cli/devutil"
	"github.com/mongoose-os/ch32prog/cli/flags"
	"github.com/mongoose-os/ch32prog/cli/flash/ch32"
	"github.com/mongoose-os/ch32prog/cli/flash/common"
	"github.com/mongoose-os/ch32prog/cli/flash/rvswd/serialbridge"
	"github.com/mongoose-os/ch32prog/cli/flash/rvswd/sim"
	"github.com/mongoose-os/ch32prog/cli/flash/rvswd/wchlink"
	"github.com/mongoose-os/ch32prog/cli/ourutil"
	"github.com/mongoose-os/ch32prog/common/multierror"
)

var (
	// The simulated chip lives as long as the process so that consecutive commands see the same flash.
	simChip     *sim.Chip
	simChipOnce sync.Once
)

func getSimChip() *sim.Chip {
	simChipOnce.Do(func() {
		simChip = sim.New(0)
	})
	return simChip
}

func openLink(ctx context.Context) (common.DebugLink, error) {
	switch *flags.Transport {
	case flags.TransportWCHLink:
		l, err := wchlink.Open(*flags.ProbeSerial)
		if err != nil {
			return nil, errors.Annotatef(err, "failed to open WCH-Link")
		}
		return l, nil
	case flags.TransportSerial:
		port, err := devutil.GetPort(*flags.Port)
		if err != nil {
			return nil, errors.Trace(err)
		}
		l, err := serialbridge.Open(port, *flags.BaudRate)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return l, nil
	case flags.TransportSim:
		ourutil.Warnf("Using a simulated target")
		return getSimChip(), nil
	}
	return nil, errors.NotSupportedf("transport %q", *flags.Transport)
}

// progressReporter reports every 10% of a range write.
func progressReporter() ch32.ProgressFunc {
	last := -1
	return func(msg string, done, total int) {
		pct := 100
		if total > 0 {
			pct = done * 100 / total
		}
		if last >= 0 && pct/10 == last/10 {
			glog.V(1).Infof("%s: %d%% (%d/%d)", msg, pct, done, total)
			return
		}
		last = pct
		ourutil.Reportf("  %s: %d%% (%d/%d)", msg, pct, done, total)
	}
}

// withTarget opens the link, runs f on a target and closes the link.
// f is responsible for connecting.
func withTarget(ctx context.Context, opts ch32.Options, f func(ctx context.Context, t *ch32.Target) error) (err error) {
	link, err := openLink(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		cerr := link.Close(context.Background())
		err = multierror.Append(err, errors.Annotatef(cerr, "failed to close the link"))
	}()
	opts.Progress = progressReporter()
	return f(ctx, ch32.NewTarget(link, opts))
}

// connected is like withTarget, but connects to the target first.
func connected(ctx context.Context, f func(ctx context.Context, t *ch32.Target) error) error {
	opts, err := flags.TargetOptions()
	if err != nil {
		return errors.Trace(err)
	}
	return withTarget(ctx, opts, func(ctx context.Context, t *ch32.Target) error {
		ourutil.Reportf("Connecting to the target...")
		if err := t.Connect(ctx); err != nil {
			return errors.Annotatef(err, "failed to connect")
		}
		return f(ctx, t)
	})
}
