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
	"fmt"
	"os"
	"os/signal"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/ch32prog/cli/config"
	"github.com/mongoose-os/ch32prog/cli/create_fw_bundle"
	"github.com/mongoose-os/ch32prog/cli/flags"
	"github.com/mongoose-os/ch32prog/common/pflagenv"
	"github.com/mongoose-os/ch32prog/version"
)

var (
	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")
)

type handler func(ctx context.Context) error

type command struct {
	name     string
	handler  handler
	short    string
	required []string
	optional []string
	extended bool
}

var commands []command

func init() {
	target := []string{"transport", "port", "baud-rate", "probe-serial", "flash-origin", "flash-size"}
	commands = []command{
		{"flash", flash, `Flash a firmware file (.bin, .hex or .zip) and restart the target`, nil, append(target, "flash-busy-timeout"), false},
		{"flash-write", flashWrite, `Write a raw binary at the given address: flash-write ADDR FILE`, nil, target, false},
		{"flash-read", flashRead, `Read flash contents: flash-read [ADDR LENGTH] FILE`, nil, target, false},
		{"flash-erase", flashErase, `Erase flash blocks: flash-erase ADDR LENGTH`, nil, target, false},
		{"halt", halt, `Halt the target core`, nil, target, false},
		{"resume", resume, `Halt and resume the target core`, nil, target, false},
		{"reset", reset, `Reset the target core and let it run`, nil, target, false},
		{"create-fw-bundle", create_fw_bundle.CreateFWBundle, `Create a firmware bundle: create-fw-bundle -o FILE name:src=FILE,addr=ADDR ...`, []string{"output"}, []string{"name", "platform", "description", "build-info", "compress", "src-dir", "attr"}, true},
		{"version", showVersion, `Show version`, nil, nil, false},
	}
}

func showVersion(ctx context.Context) error {
	fmt.Printf(
		"%s\nVersion: %s\nBuild ID: %s\nUser agent: %s\n",
		"CH32V203 RVSWD flasher", version.GetVersion(), version.BuildId, version.GetUserAgent(),
	)
	return nil
}

func run(ctx context.Context) error {
	for _, c := range commands {
		if c.name == flag.Arg(0) {
			// check required flags
			if err := checkFlags(c.required); err != nil {
				return errors.Trace(err)
			}
			// run the handler
			if err := c.handler(ctx); err != nil {
				return errors.Trace(err)
			}
			return nil
		}
	}
	// not found
	usage()
	return nil
}

func main() {
	initFlags()
	flag.Parse()
	if err := parseFlagSources(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if *helpFull {
		unhideFlags()
		usage()
		return
	} else if *versionFlag {
		showVersion(context.Background())
		return
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if *flags.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *flags.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		glog.Warningf("Interrupted, stopping after the current block")
		cancel()
	}()

	err := run(ctx)
	glog.Flush()
	if err != nil {
		glog.Infof("Error: %+v", errors.ErrorStack(err))
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// parseFlagSources fills flags not given on the command line from
// the environment and then from the config file.
func parseFlagSources() error {
	if err := pflagenv.Parse(flags.EnvPrefix); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(config.Apply(flag.CommandLine, *flags.Config))
}
