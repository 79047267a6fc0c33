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
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/ch32prog/common/fwbundle"
)

func TestCreate(t *testing.T) {
	td, err := ioutil.TempDir("", "create_fw_bundle_test_")
	require.NoError(t, err)
	defer os.RemoveAll(td)

	require.NoError(t, ioutil.WriteFile(filepath.Join(td, "boot.bin"), []byte("BOOT"), 0644))
	hexData := new(bytes.Buffer)
	require.NoError(t, fwbundle.WriteHex(hexData, 0x08000100, []byte("APP!")))
	require.NoError(t, ioutil.WriteFile(filepath.Join(td, "app.hex"), hexData.Bytes(), 0644))

	opts := &Opts{
		Name:     "blinky",
		Platform: "ch32v203",
		SrcDir:   td,
		Attrs:    []string{"board=devkit", "rev=3", "secure=false"},
	}
	fwb, err := Create(opts, []string{
		"boot:addr=0x8000000,src=boot.bin",
		"app:type=app,src=app.hex",
		"pad:addr=0x8000200,size=8,fill=0",
	})
	require.NoError(t, err)
	assert.Equal(t, "blinky", fwb.Name)

	pp := fwb.PartsByAddr()
	require.Len(t, pp, 3)
	assert.Equal(t, "boot", pp[0].Name)
	assert.Equal(t, "app", pp[1].Name)
	assert.Equal(t, "app.bin", pp[1].Src)
	assert.Equal(t, uint32(0x08000100), pp[1].Addr)

	buf := new(bytes.Buffer)
	require.NoError(t, fwbundle.WriteZipFirmwareBytes(fwb, buf, false))
	fwb2, err := fwbundle.ReadZipFirmwareBytes(buf.Bytes())
	require.NoError(t, err)
	img, err := fwbundle.Flatten(fwb2.Name, fwb2.PartsByAddr(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x08000000), img.Addr)
	assert.Len(t, img.Data, 0x208)
	assert.Equal(t, []byte("APP!"), img.Data[0x100:0x104])
}

func TestCreateErrors(t *testing.T) {
	opts := &Opts{}
	_, err := Create(opts, nil)
	assert.Error(t, err)
	_, err = Create(opts, []string{"boot:src=/nonexistent/boot.bin"})
	assert.Error(t, err)
	_, err = Create(opts, []string{"nofill:size=4"})
	assert.Error(t, err)
	opts.Attrs = []string{"=1"}
	_, err = Create(opts, []string{"pad:size=4,fill=0"})
	assert.Error(t, err)
}

func TestParseAttr(t *testing.T) {
	cases := []struct {
		s    string
		k    string
		v    interface{}
		fail bool
	}{
		{s: "board=devkit", k: "board", v: "devkit"},
		{s: "rev=0x10", k: "rev", v: int64(16)},
		{s: "secure=true", k: "secure", v: true},
		{s: "empty=", k: "empty", v: ""},
		{s: "novalue", fail: true},
	}
	for _, c := range cases {
		k, v, err := parseAttr(c.s)
		if c.fail {
			assert.Errorf(t, err, "%s", c.s)
			continue
		}
		require.NoErrorf(t, err, "%s", c.s)
		assert.Equal(t, c.k, k)
		assert.Equal(t, c.v, v)
	}
}
