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
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/ch32prog/cli/flags"
	"github.com/mongoose-os/ch32prog/cli/flash/ch32"
	"github.com/mongoose-os/ch32prog/cli/ourutil"
	"github.com/mongoose-os/ch32prog/common/fwbundle"
)

func flashRead(ctx context.Context) error {
	var err error
	var addr, length uint32
	outFile := ""
	args := flag.Args()
	switch len(args) {
	case 2:
		// Read the entire flash window.
		if addr, err = flags.FlashOrigin(); err != nil {
			return errors.Trace(err)
		}
		if length, err = flags.FlashSize(); err != nil {
			return errors.Trace(err)
		}
		outFile = args[1]
	case 4:
		if addr, err = ourutil.ParseUint32(args[1], "address"); err != nil {
			return errors.Trace(err)
		}
		if length, err = ourutil.ParseUint32(args[2], "length"); err != nil {
			return errors.Trace(err)
		}
		outFile = args[3]
	default:
		return errors.Errorf("invalid arguments")
	}

	var data []byte
	err = connected(ctx, func(ctx context.Context, t *ch32.Target) error {
		ourutil.Reportf("Reading %d bytes @ 0x%08x...", length, addr)
		data, err = t.ReadRange(ctx, addr, int(length))
		return errors.Trace(err)
	})
	if err != nil {
		return errors.Trace(err)
	}

	switch {
	case outFile == "-":
		_, err = os.Stdout.Write(data)
	case strings.ToLower(filepath.Ext(outFile)) == ".hex":
		buf := new(bytes.Buffer)
		if err = fwbundle.WriteHex(buf, addr, data); err == nil {
			err = ioutil.WriteFile(outFile, buf.Bytes(), 0644)
		}
	default:
		err = ioutil.WriteFile(outFile, data, 0644)
	}
	if err == nil && outFile != "-" {
		ourutil.Reportf("Wrote %s", outFile)
	}
	return errors.Trace(err)
}
