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
// Package fwbundle reads and writes firmware bundles: a zip archive with a
// JSON manifest describing the parts to be written to flash.
package fwbundle

import (
	"encoding/json"
	"io/ioutil"
	"sort"
	"time"

	"github.com/juju/errors"
)

const (
	AppPartType = "app"
)

type FirmwareBundle struct {
	FirmwareManifest
}

type firmwareManifest struct {
	Name           string                   `json:"name,omitempty"`
	Platform       string                   `json:"platform,omitempty"`
	Description    string                   `json:"description,omitempty"`
	Version        string                   `json:"version,omitempty"`
	BuildID        string                   `json:"build_id,omitempty"`
	BuildTimestamp *time.Time               `json:"build_timestamp,omitempty"`
	Parts          map[string]*FirmwarePart `json:"parts"`

	// Extra attributes.
	attrs map[string]interface{}
}

type FirmwareManifest firmwareManifest

func NewBundle() *FirmwareBundle {
	return &FirmwareBundle{}
}

func (fwb *FirmwareBundle) AddPart(p *FirmwarePart) error {
	if p.Name == "" {
		return errors.NotValidf("part without a name")
	}
	if fwb.FirmwareManifest.Parts == nil {
		fwb.FirmwareManifest.Parts = make(map[string]*FirmwarePart)
	}
	fwb.FirmwareManifest.Parts[p.Name] = p
	return nil
}

type partsByAddr []*FirmwarePart

func (pp partsByAddr) Len() int      { return len(pp) }
func (pp partsByAddr) Swap(i, j int) { pp[i], pp[j] = pp[j], pp[i] }
func (pp partsByAddr) Less(i, j int) bool {
	if pp[i].Addr != pp[j].Addr {
		return pp[i].Addr < pp[j].Addr
	}
	return pp[i].Name < pp[j].Name
}

// PartsByAddr returns flashable parts in ascending address order.
func (fwb *FirmwareBundle) PartsByAddr() []*FirmwarePart {
	var pp []*FirmwarePart
	for _, p := range fwb.Parts {
		if p.Flashable() {
			pp = append(pp, p)
		}
	}
	sort.Sort(partsByAddr(pp))
	return pp
}

func ReadManifest(fname string) (*FirmwareManifest, error) {
	data, err := ioutil.ReadFile(fname)
	if err != nil {
		return nil, errors.Annotatef(err, "ReadManifest(%s)", fname)
	}
	var fm FirmwareManifest
	if err := json.Unmarshal(data, &fm); err != nil {
		return nil, errors.Annotatef(err, "ReadManifest(%s)", fname)
	}
	for n, p := range fm.Parts {
		p.Name = n
	}
	return &fm, nil
}

func (fwb *FirmwareBundle) GetPartData(name string) ([]byte, error) {
	p := fwb.Parts[name]
	if p == nil {
		return nil, errors.NotFoundf("part %q", name)
	}
	return p.GetData()
}

func (fwb *FirmwareBundle) SetAttr(attr string, value interface{}) {
	if fwb.FirmwareManifest.attrs == nil {
		fwb.FirmwareManifest.attrs = make(map[string]interface{})
	}
	fwb.FirmwareManifest.attrs[attr] = value
}

func (fwm *FirmwareManifest) MarshalJSON() ([]byte, error) {
	return marshalWithAttrs(firmwareManifest(*fwm), fwm.attrs)
}

func (fwm *FirmwareManifest) UnmarshalJSON(b []byte) error {
	var fwm1 firmwareManifest
	if err := json.Unmarshal(b, &fwm1); err != nil {
		return err
	}
	*fwm = FirmwareManifest(fwm1)
	attrs, err := extraAttrs(b, fwm)
	fwm.attrs = attrs
	return err
}
