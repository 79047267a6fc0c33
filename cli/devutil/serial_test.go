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
package devutil

import (
	"testing"
)

func TestGetPortExplicit(t *testing.T) {
	port, err := GetPort("/dev/ttyUSB3")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := port, "/dev/ttyUSB3"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestGetPortAuto(t *testing.T) {
	defaultPort = ""
	defer func() { defaultPort = "" }()
	ports := EnumerateSerialPorts()
	port, err := GetPort(AutoPort)
	if len(ports) == 0 {
		if err == nil {
			t.Errorf("expected an error, got %q", port)
		}
		return
	}
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if port == "" {
		t.Errorf("expected a port")
	}
}
