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
package multierror

import (
	"testing"

	"github.com/juju/errors"
)

func TestAppend(t *testing.T) {
	var err error
	err = Append(err, nil)
	if err != nil {
		t.Fatalf("expected nil, got %s", err)
	}

	first := errors.Errorf("an error")
	err = Append(err, first)
	if err != first {
		t.Fatalf("a single error must be returned as is, got %#v", err)
	}

	err = Append(err, errors.Errorf("another error"), nil)
	if got, want := err.Error(), `2 error(s) occurred:
an error
another error`; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}

	err = Append(err, errors.Errorf("third error"))
	me, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %#v", err)
	}
	if got, want := len(me.Errors()), 3; got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
}
