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
package create_fw_bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/ch32prog/cli/flags"
	"github.com/mongoose-os/ch32prog/cli/ourutil"
	"github.com/mongoose-os/ch32prog/common/fwbundle"
	"github.com/mongoose-os/ch32prog/version"
)

const (
	hexFill    = 0xff
	hexMaxGap  = 512
	hexPartExt = ".hex"
)

type Opts struct {
	Name        string
	Platform    string
	Description string
	BuildInfo   string
	SrcDir      string
	Attrs       []string
}

func CreateFWBundle(ctx context.Context) error {
	if *flags.Output == "" {
		return errors.Errorf("--output is required")
	}
	opts := &Opts{
		Name:        *flags.Name,
		Platform:    *flags.Platform,
		Description: *flags.Description,
		BuildInfo:   *flags.BuildInfo,
		SrcDir:      *flags.SrcDir,
		Attrs:       *flags.Attr,
	}
	fwb, err := Create(opts, flag.Args()[1:])
	if err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Writing %s", *flags.Output)
	return fwbundle.WriteZipFirmwareBundle(fwb, *flags.Output, *flags.Compress)
}

// Create builds a bundle from part specs of the form "name:src=file,addr=0x...".
// Sources ending in .hex are split into as many parts as there are discontinuous regions in them.
func Create(opts *Opts, partSpecs []string) (*fwbundle.FirmwareBundle, error) {
	if len(partSpecs) == 0 {
		return nil, errors.Errorf("no parts given")
	}
	fwb := fwbundle.NewBundle()
	fm := &fwb.FirmwareManifest
	fm.Name = opts.Name
	fm.Platform = opts.Platform
	fm.Description = opts.Description
	bi := version.GetVersionJson()
	if opts.BuildInfo != "" {
		data, err := ioutil.ReadFile(opts.BuildInfo)
		if err != nil {
			return nil, errors.Annotatef(err, "error reading build info")
		}
		bi = &version.VersionJson{}
		if err := json.Unmarshal(data, bi); err != nil {
			return nil, errors.Annotatef(err, "error parsing build info")
		}
	}
	fm.Version = bi.BuildVersion
	fm.BuildID = bi.BuildId
	if !bi.BuildTimestamp.IsZero() {
		fm.BuildTimestamp = &bi.BuildTimestamp
	}
	srcPath := func(src string) string {
		if !filepath.IsAbs(src) && opts.SrcDir != "" {
			return filepath.Join(opts.SrcDir, src)
		}
		return src
	}
	for _, ps := range partSpecs {
		p, err := fwbundle.PartFromString(ps)
		if err != nil {
			return nil, errors.Annotatef(err, "%s", ps)
		}
		if strings.HasSuffix(p.Src, hexPartExt) {
			hpp, err := fwbundle.PartsFromHexFile(srcPath(p.Src), p.Name, hexFill, hexMaxGap)
			if err != nil {
				return nil, errors.Annotatef(err, "%s", ps)
			}
			for ihp, hp := range hpp {
				p1 := *p
				if len(hpp) == 1 {
					p1.Src = strings.TrimSuffix(p.Src, hexPartExt) + ".bin"
				} else {
					p1.Src = fmt.Sprintf("%s.%d.bin", strings.TrimSuffix(p.Src, hexPartExt), ihp)
				}
				p1.Addr = hp.Addr
				p1.Name = hp.Name
				p1.Size = hp.Size
				data, _ := hp.GetData()
				p1.SetData(data)
				if err := fwb.AddPart(&p1); err != nil {
					return nil, errors.Trace(err)
				}
			}
			continue
		}
		if p.Src != "" {
			data, err := ioutil.ReadFile(srcPath(p.Src))
			if err != nil {
				return nil, errors.Annotatef(err, "%s", ps)
			}
			p.SetData(data)
		}
		if _, err := p.GetData(); err != nil {
			return nil, errors.Annotatef(err, "%s", ps)
		}
		if err := fwb.AddPart(p); err != nil {
			return nil, errors.Trace(err)
		}
	}
	for _, a := range opts.Attrs {
		k, v, err := parseAttr(a)
		if err != nil {
			return nil, errors.Annotatef(err, "failed to parse --attr")
		}
		fwb.SetAttr(k, v)
	}
	return fwb, nil
}

// parseAttr parses name=value, where value is a bool, a number or a string.
func parseAttr(s string) (string, interface{}, error) {
	kv := strings.SplitN(s, "=", 2)
	if len(kv) != 2 || kv[0] == "" {
		return "", nil, errors.Errorf("invalid attribute %q, must be name=value", s)
	}
	k, v := kv[0], kv[1]
	if n, err := strconv.ParseInt(v, 0, 64); err == nil {
		return k, n, nil
	}
	if v == "true" || v == "false" {
		return k, v == "true", nil
	}
	return k, v, nil
}
