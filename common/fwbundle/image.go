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
package fwbundle

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	// Gaps in HEX files up to this size are filled rather than split into parts.
	MaxHexGap = 0x10000

	ErasedByte = 0xff
)

var ErrImageTooLarge = errors.New("image too large")

// Image is a contiguous piece of firmware to be written at Addr.
type Image struct {
	Name string
	Addr uint32
	Data []byte
}

// LoadImage reads a raw binary, an Intel HEX file or a zip bundle.
// Raw binaries are placed at origin, the others carry their own addresses.
// maxSize limits the span of the resulting image, 0 means no limit.
func LoadImage(fname string, origin, maxSize uint32) (*Image, error) {
	name := strings.TrimSuffix(filepath.Base(fname), filepath.Ext(fname))
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".hex", ".ihex":
		pp, err := PartsFromHexFile(fname, name, ErasedByte, MaxHexGap)
		if err != nil {
			return nil, errors.Annotatef(err, "%s", fname)
		}
		return Flatten(name, pp, maxSize)
	case ".zip":
		fwb, err := ReadZipFirmwareBundle(fname)
		if err != nil {
			return nil, errors.Trace(err)
		}
		glog.Infof("Bundle: %s %s %s", fwb.Name, fwb.Platform, fwb.Version)
		if fwb.Name != "" {
			name = fwb.Name
		}
		return Flatten(name, fwb.PartsByAddr(), maxSize)
	}
	data, err := ioutil.ReadFile(fname)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if maxSize > 0 && uint64(len(data)) > uint64(maxSize) {
		return nil, errors.Annotatef(ErrImageTooLarge, "%s: %d bytes, limit %d", fname, len(data), maxSize)
	}
	return &Image{Name: name, Addr: origin, Data: data}, nil
}

// Flatten joins parts into one image, filling gaps between them with the erased value.
// The image may span at most maxSize bytes, 0 means no limit.
func Flatten(name string, parts []*FirmwarePart, maxSize uint32) (*Image, error) {
	if len(parts) == 0 {
		return nil, errors.NotFoundf("flashable parts")
	}
	parts = append([]*FirmwarePart(nil), parts...)
	sort.Sort(partsByAddr(parts))
	var img *Image
	for _, p := range parts {
		data, err := p.GetData()
		if err != nil {
			return nil, errors.Trace(err)
		}
		glog.V(1).Infof("%s: %d bytes @ 0x%08x", p.Name, len(data), p.Addr)
		start, end := p.Addr, p.Addr
		if img != nil {
			start, end = img.Addr, img.Addr+uint32(len(img.Data))
			if p.Addr < end {
				return nil, errors.Errorf("%s: overlaps previous part (0x%08x < 0x%08x)", p.Name, p.Addr, end)
			}
		}
		// Checked before the gap is filled.
		if span := uint64(p.Addr) + uint64(len(data)) - uint64(start); maxSize > 0 && span > uint64(maxSize) {
			return nil, errors.Annotatef(ErrImageTooLarge, "%s @ 0x%08x: image would span %d bytes from 0x%08x, limit %d", p.Name, p.Addr, span, start, maxSize)
		}
		if img == nil {
			img = &Image{Name: name, Addr: p.Addr, Data: append([]byte(nil), data...)}
			continue
		}
		img.Data = append(img.Data, bytes.Repeat([]byte{ErasedByte}, int(p.Addr-end))...)
		img.Data = append(img.Data, data...)
	}
	return img, nil
}
