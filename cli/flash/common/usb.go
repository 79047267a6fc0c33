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

package common

import (
	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/juju/errors"
)

// USBInterface is a claimed interface of an open USB device.
type USBInterface struct {
	Serial string

	uctx *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
}

// OpenUSBInterface opens a USB device with specified VID, PID and (optionally) serial number
// and claims interface intfNum of configuration cfgNum.
// If serial number is empty, it is not checked.
// If multiple devices match the criteria, the first one will be used.
func OpenUSBInterface(vid, pid gousb.ID, serial string, cfgNum, intfNum int) (*USBInterface, error) {
	uctx := gousb.NewContext()
	devs, err := uctx.OpenDevices(func(dd *gousb.DeviceDesc) bool {
		result := (dd.Vendor == vid && dd.Product == pid)
		glog.V(1).Infof("Dev %+v", dd)
		return result
	})
	// OpenDevices may fail overall but still return results. Only fail if no devices were returned.
	if err != nil && len(devs) == 0 {
		uctx.Close()
		return nil, errors.Annotatef(err, "failed to enumerate USB devices")
	}
	ui := &USBInterface{uctx: uctx}
	for _, dev := range devs {
		if ui.dev != nil {
			dev.Close()
			continue
		}
		sn, _ := dev.SerialNumber()
		glog.V(1).Infof("Dev %+v sn '%s'", dev, sn)
		if serial == "" || sn == serial {
			ui.dev = dev
			ui.Serial = sn
		} else {
			dev.Close()
		}
	}
	if ui.dev == nil {
		sp := ""
		if serial != "" {
			sp = "/"
		}
		uctx.Close()
		return nil, errors.NotFoundf("USB device %s:%s%s%s", vid, pid, sp, serial)
	}
	if err := ui.dev.SetAutoDetach(true); err != nil {
		glog.Warningf("failed to enable kernel driver auto-detach: %s", err)
	}
	ui.cfg, err = ui.dev.Config(cfgNum)
	if err != nil {
		ui.Close()
		return nil, errors.Annotatef(err, "failed to select config %d", cfgNum)
	}
	ui.intf, err = ui.cfg.Interface(intfNum, 0)
	if err != nil {
		ui.Close()
		return nil, errors.Annotatef(err, "failed to claim interface %d", intfNum)
	}
	return ui, nil
}

func (ui *USBInterface) InEndpoint(num int) (*gousb.InEndpoint, error) {
	ep, err := ui.intf.InEndpoint(num)
	return ep, errors.Annotatef(err, "IN endpoint %d", num)
}

func (ui *USBInterface) OutEndpoint(num int) (*gousb.OutEndpoint, error) {
	ep, err := ui.intf.OutEndpoint(num)
	return ep, errors.Annotatef(err, "OUT endpoint %d", num)
}

// Close releases the interface, the configuration and the device.
func (ui *USBInterface) Close() error {
	if ui.intf != nil {
		ui.intf.Close()
		ui.intf = nil
	}
	var err error
	if ui.cfg != nil {
		err = ui.cfg.Close()
		ui.cfg = nil
	}
	if ui.dev != nil {
		ui.dev.Close()
		ui.dev = nil
	}
	if ui.uctx != nil {
		ui.uctx.Close()
		ui.uctx = nil
	}
	return errors.Trace(err)
}
