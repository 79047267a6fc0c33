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
package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	flag "github.com/spf13/pflag"
)

func TestParse(t *testing.T) {
	m, err := Parse([]byte("transport: serial\nbaud-rate: 115200\nflash-size: 0x10000\ncheck-abstractcs: true\nport:\n"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	for k, want := range map[string]string{
		"transport":        "serial",
		"baud-rate":        "115200",
		"flash-size":       "65536",
		"check-abstractcs": "true",
	} {
		if got := m[k]; got != want {
			t.Errorf("%s: got: %q, want: %q", k, got, want)
		}
	}
	if _, ok := m["port"]; ok {
		t.Errorf("empty values must be skipped")
	}

	if _, err := Parse([]byte("transport: [a, b]\n")); err == nil {
		t.Errorf("expected an error")
	}
	if _, err := Parse([]byte("transport: \"unterminated\n")); err == nil {
		t.Errorf("expected an error")
	}
}

func TestApply(t *testing.T) {
	td, err := ioutil.TempDir("", "config_test_")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	defer os.RemoveAll(td)
	fname := filepath.Join(td, "test.yaml")
	if err := ioutil.WriteFile(fname, []byte("transport: serial\nport: /dev/ttyUSB0\n"), 0644); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	fs := flag.NewFlagSet("config-test", flag.ContinueOnError)
	transport := fs.String("transport", "wchlink", "")
	port := fs.String("port", "", "")
	fs.Parse([]string{"--port=/dev/ttyACM0"})

	if err := Apply(fs, fname); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := *transport, "serial"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if got, want := *port, "/dev/ttyACM0"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}

	if err := Apply(fs, filepath.Join(td, "missing.yaml")); err == nil {
		t.Errorf("expected an error for a missing file")
	}

	if err := ioutil.WriteFile(fname, []byte("no-such-flag: 1\n"), 0644); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := Apply(fs, fname); err == nil {
		t.Errorf("expected an error for an unknown flag")
	}
}
