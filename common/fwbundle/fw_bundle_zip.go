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
	"archive/zip"
	"bytes"
	"compress/flate"
	"encoding/json"
	"io"
	"io/ioutil"
	"path"
	"path/filepath"
	"sort"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	ManifestFileName = "manifest.json"
)

func ReadZipFirmwareBundle(fname string) (*FirmwareBundle, error) {
	zipData, err := ioutil.ReadFile(fname)
	if err != nil {
		return nil, errors.Trace(err)
	}
	fwb, err := ReadZipFirmwareBytes(zipData)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", fname)
	}
	return fwb, nil
}

func ReadZipFirmwareBytes(zipData []byte) (*FirmwareBundle, error) {
	r, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, errors.Annotatef(err, "invalid firmware file")
	}

	fwb := NewBundle()

	blobs := make(map[string][]byte)

	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Annotatef(err, "failed to open %s", f.Name)
		}
		data, err := ioutil.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.Annotatef(err, "failed to read %s", f.Name)
		}
		blobs[path.Base(f.Name)] = data
	}
	manifestData := blobs[ManifestFileName]
	if manifestData == nil {
		return nil, errors.Errorf("no %s in the archive", ManifestFileName)
	}
	if err := json.Unmarshal(manifestData, &fwb.FirmwareManifest); err != nil {
		return nil, errors.Annotatef(err, "failed to parse manifest")
	}
	for n, p := range fwb.FirmwareManifest.Parts {
		p.Name = n
		p.SetDataProvider(func(name, src string) ([]byte, error) {
			data, ok := blobs[src]
			if !ok {
				return nil, errors.Errorf("%s not found in the archive", src)
			}
			return data, nil
		})
	}
	return fwb, nil
}

func WriteZipFirmwareBytes(fwb *FirmwareBundle, buf *bytes.Buffer, compress bool) error {
	zw := zip.NewWriter(buf)
	// When compressing, use best compression.
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	method := zip.Store
	if compress {
		method = zip.Deflate
	}
	// Rewrite sources to be relative to archive.
	var names []string
	for n, p := range fwb.Parts {
		names = append(names, n)
		if p.Src == "" {
			continue
		}
		data, err := p.GetData()
		if err != nil {
			return errors.Annotatef(err, "%s: failed to get data", p.Name)
		}
		p.Src = filepath.Base(p.Src)
		p.SetData(data)
	}
	sort.Strings(names)
	manifestData, err := json.MarshalIndent(&fwb.FirmwareManifest, "", " ")
	if err != nil {
		return errors.Annotatef(err, "error marshaling manifest")
	}
	glog.V(1).Infof("Manifest:\n%s", string(manifestData))
	if err := addFile(zw, ManifestFileName, method, manifestData); err != nil {
		return errors.Trace(err)
	}
	for _, n := range names {
		p := fwb.Parts[n]
		if p.Src == "" {
			continue
		}
		data, err := p.GetData()
		if err != nil {
			return errors.Annotatef(err, "error getting data for %s", p.Name)
		}
		if err := addFile(zw, p.Src, method, data); err != nil {
			return errors.Annotatef(err, "%s", p.Name)
		}
	}
	if err = zw.Close(); err != nil {
		return errors.Annotatef(err, "error closing the archive")
	}
	return nil
}

func addFile(zw *zip.Writer, name string, method uint16, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return errors.Annotatef(err, "error adding %s", name)
	}
	if _, err := w.Write(data); err != nil {
		return errors.Annotatef(err, "error writing %s", name)
	}
	return nil
}

func WriteZipFirmwareBundle(fwb *FirmwareBundle, fname string, compress bool) error {
	buf := new(bytes.Buffer)
	if err := WriteZipFirmwareBytes(fwb, buf, compress); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(ioutil.WriteFile(fname, buf.Bytes(), 0644))
}
