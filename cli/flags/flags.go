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
package flags

import (
	"time"

	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/ch32prog/cli/flash/ch32"
	"github.com/mongoose-os/ch32prog/cli/ourutil"
)

const (
	EnvPrefix = "CH32PROG_"

	TransportWCHLink = "wchlink"
	TransportSerial  = "serial"
	TransportSim     = "sim"
)

var (
	Transport = flag.String("transport", TransportWCHLink, "How to reach the target: wchlink (USB probe), serial (RVSWD bridge) or sim (simulated chip)")
	Port      = flag.String("port", "auto", "Serial port of the RVSWD bridge, for --transport=serial. \"auto\" picks the first one found")
	BaudRate  = flag.Uint("baud-rate", 460800, "Serial port speed")

	ProbeSerial = flag.String("probe-serial", "", "Serial number of the WCH-Link probe to use. Default: the first one found")

	flashOrigin = flag.String("flash-origin", "0x08000000", "Address of the first flash byte")
	flashSize   = flag.String("flash-size", "0x4000", "Size of the flash window")

	FlashBusyTimeout = flag.Duration("flash-busy-timeout", 1*time.Second, "Maximum wait for the flash controller to finish an operation. 0 - wait forever")
	PollInterval     = flag.Duration("poll-interval", 10*time.Millisecond, "Interval between debug module status reads")
	PollRetries      = flag.Int("poll-retries", 5, "Number of debug module status re-reads before giving up")
	CheckAbstractCS  = flag.Bool("check-abstractcs", false, "Check the abstract command status after every register access")
	Timeout          = flag.Duration("timeout", 0, "Overall timeout for the command. 0 - no timeout")

	Config = flag.String("config", "", "YAML file with flag defaults. Default: ch32prog.yaml next to the executable, if present")

	// create-fw-bundle flags.
	Output      = flag.StringP("output", "o", "", "Output file")
	Name        = flag.String("name", "", "Firmware name")
	Platform    = flag.String("platform", "ch32v203", "Hardware platform")
	Description = flag.String("description", "", "Firmware description")
	BuildInfo   = flag.String("build-info", "", "JSON file with build_id, build_timestamp and build_version")
	Compress    = flag.Bool("compress", false, "Compress bundle contents")
	SrcDir      = flag.String("src-dir", "", "Directory relative part sources are resolved against")
	Attr        = flag.StringArray("attr", nil, "Manifest attribute as name=value, can be used multiple times")
)

// FlashOrigin returns the flash origin given on the command line.
func FlashOrigin() (uint32, error) {
	return ourutil.ParseUint32(*flashOrigin, "--flash-origin")
}

// FlashSize returns the flash size given on the command line.
func FlashSize() (uint32, error) {
	return ourutil.ParseUint32(*flashSize, "--flash-size")
}

// TargetOptions builds flashing options from flags.
func TargetOptions() (ch32.Options, error) {
	opts := ch32.DefaultOptions()
	var err error
	if opts.FlashOrigin, err = FlashOrigin(); err != nil {
		return opts, err
	}
	if opts.FlashSize, err = FlashSize(); err != nil {
		return opts, err
	}
	opts.FlashBusyTimeout = *FlashBusyTimeout
	opts.PollInterval = *PollInterval
	opts.PollRetries = *PollRetries
	opts.CheckAbstractCS = *CheckAbstractCS
	return opts, nil
}
