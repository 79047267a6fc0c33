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
// +build !no_libudev

package wchlink

import (
	"github.com/google/gousb"
	"github.com/juju/errors"

	"github.com/mongoose-os/ch32prog/cli/flash/common"
)

const (
	usbConfig    = 1
	usbInterface = 0
	usbEPCommand = 1 // OUT 0x01, IN 0x81
)

type usbPipe struct {
	in  *gousb.InEndpoint
	out *gousb.OutEndpoint
}

func (p *usbPipe) Read(buf []byte) (int, error) {
	return p.in.Read(buf)
}

func (p *usbPipe) Write(buf []byte) (int, error) {
	return p.out.Write(buf)
}

// Open opens the probe with the given serial number, or the first one found if serial is empty.
func Open(serial string) (*Link, error) {
	ui, err := common.OpenUSBInterface(VID, PID, serial, usbConfig, usbInterface)
	if err != nil {
		return nil, errors.Trace(err)
	}
	in, err := ui.InEndpoint(usbEPCommand)
	if err != nil {
		ui.Close()
		return nil, errors.Trace(err)
	}
	out, err := ui.OutEndpoint(usbEPCommand)
	if err != nil {
		ui.Close()
		return nil, errors.Trace(err)
	}
	return NewLink(&usbPipe{in: in, out: out}, ui.Close), nil
}
