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
	"fmt"
	"io"
	"io/ioutil"

	"github.com/juju/errors"
	"github.com/marcinbor85/gohex"
)

type HexPart struct {
	Addr uint32
	Data []byte
}

// ParseHex parses Intel HEX data into contiguous parts.
// Segments separated by less than maxGapSize bytes are joined, the gap is filled with fill.
func ParseHex(hexData []byte, fill byte, maxGapSize int) ([]*HexPart, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(bytes.NewReader(hexData)); err != nil {
		return nil, errors.Trace(err)
	}
	var parts []*HexPart
	var cur *HexPart
	for _, seg := range mem.GetDataSegments() {
		if cur != nil {
			end := cur.Addr + uint32(len(cur.Data))
			if seg.Address < end {
				return nil, errors.Errorf("overlapping data at 0x%08x", seg.Address)
			}
			if gap := int(seg.Address - end); gap < maxGapSize || gap == 0 {
				cur.Data = append(cur.Data, bytes.Repeat([]byte{fill}, gap)...)
				cur.Data = append(cur.Data, seg.Data...)
				continue
			}
		}
		cur = &HexPart{Addr: seg.Address, Data: append([]byte(nil), seg.Data...)}
		parts = append(parts, cur)
	}
	if len(parts) == 0 {
		return nil, errors.Errorf("no data")
	}
	return parts, nil
}

func PartsFromHex(hexData []byte, baseName string, fill byte, maxGapSize int) ([]*FirmwarePart, error) {
	hps, err := ParseHex(hexData, fill, maxGapSize)
	if err != nil {
		return nil, errors.Annotatef(err, "error parsing hex data")
	}
	var pp []*FirmwarePart
	for i, hp := range hps {
		name := baseName
		if i > 0 {
			name = fmt.Sprintf("%s_%d", baseName, i)
		}
		p := &FirmwarePart{
			Name: name,
			Type: AppPartType,
			Src:  fmt.Sprintf("%s.bin", name),
			Addr: hp.Addr,
			Size: uint32(len(hp.Data)),
		}
		p.SetData(hp.Data)
		pp = append(pp, p)
	}
	return pp, nil
}

func PartsFromHexFile(fname string, baseName string, fill byte, maxGapSize int) ([]*FirmwarePart, error) {
	hexData, err := ioutil.ReadFile(fname)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return PartsFromHex(hexData, baseName, fill, maxGapSize)
}

// WriteHex writes data located at addr as Intel HEX.
func WriteHex(w io.Writer, addr uint32, data []byte) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(addr, data); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(mem.DumpIntelHex(w, 16))
}
