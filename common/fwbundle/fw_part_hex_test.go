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
	"testing"

	"github.com/marcinbor85/gohex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexLinearAddress(t *testing.T) {
	data := ":020000040800F2\n:040000004F484149DB\n:00000001FF\n"
	parts, err := ParseHex([]byte(data), 0xff, 0)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	if got, want := parts[0].Addr, uint32(0x08000000); got != want {
		t.Errorf("got: 0x%08x, want: 0x%08x", got, want)
	}
	if got, want := string(parts[0].Data), "OHAI"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestParseHexBadData(t *testing.T) {
	for _, data := range []string{
		"",
		":040000004F484149DC\n:00000001FF\n",
		"garbage\n",
	} {
		_, err := ParseHex([]byte(data), 0xff, 0)
		assert.Errorf(t, err, "%q", data)
	}
}

func twoSegmentHex(t *testing.T) []byte {
	mem := gohex.NewMemory()
	require.NoError(t, mem.AddBinary(0x08000000, []byte("OMG!")))
	require.NoError(t, mem.AddBinary(0x08000010, []byte("WTF!")))
	buf := new(bytes.Buffer)
	require.NoError(t, mem.DumpIntelHex(buf, 16))
	return buf.Bytes()
}

func TestParseHexGaps(t *testing.T) {
	data := twoSegmentHex(t)

	parts, err := ParseHex(data, 0xff, 0x100)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	want := append([]byte("OMG!"), bytes.Repeat([]byte{0xff}, 12)...)
	want = append(want, []byte("WTF!")...)
	assert.Equal(t, want, parts[0].Data)

	parts, err = ParseHex(data, 0xff, 8)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, uint32(0x08000010), parts[1].Addr)
	assert.Equal(t, []byte("WTF!"), parts[1].Data)
}

func TestPartsFromHex(t *testing.T) {
	pp, err := PartsFromHex(twoSegmentHex(t), "fw", 0xff, 8)
	require.NoError(t, err)
	require.Len(t, pp, 2)
	assert.Equal(t, "fw", pp[0].Name)
	assert.Equal(t, "fw.bin", pp[0].Src)
	assert.Equal(t, "fw_1", pp[1].Name)
	assert.Equal(t, uint32(4), pp[1].Size)
	data, err := pp[1].GetData()
	require.NoError(t, err)
	assert.Equal(t, []byte("WTF!"), data)
}

func TestWriteHex(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteHex(buf, 0x08000100, []byte("OHAI")))
	parts, err := ParseHex(buf.Bytes(), 0xff, 0)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, uint32(0x08000100), parts[0].Addr)
	assert.Equal(t, []byte("OHAI"), parts[0].Data)
}
