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
package ch32

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"github.com/sergi/go-diff/diffmatchpatch"
)

func (t *Target) verifyBlock(ctx context.Context, addr uint32, want []uint32) error {
	got, err := t.ReadTargetMem(ctx, addr, len(want))
	if err != nil {
		return errors.Annotatef(err, "verify 0x%08x", addr)
	}
	for i := range want {
		if got[i] != want[i] {
			ve := &VerifyError{Addr: addr, Expected: want, Actual: got}
			logVerifyError(ve)
			return errors.Trace(ve)
		}
	}
	return nil
}

func logVerifyError(ve *VerifyError) {
	glog.Errorf("Write block mismatch at 0x%08x", ve.Addr)
	glog.Errorf("Write:\n%s", dumpWords(ve.Expected))
	glog.Errorf("Read:\n%s", dumpWords(ve.Actual))
	glog.Errorf("Diff:\n%s", WordDiff(ve.Expected, ve.Actual))
}

func dumpWords(words []uint32) string {
	var sb strings.Builder
	for i, w := range words {
		fmt.Fprintf(&sb, "%02x: %08x\n", i, w)
	}
	return sb.String()
}

// WordDiff returns a line diff of two word dumps, showing only differing words.
// Expected words are prefixed with "-", actual ones with "+".
func WordDiff(expected, actual []uint32) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(dumpWords(expected), dumpWords(actual))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		default:
			continue
		}
		for _, l := range strings.SplitAfter(d.Text, "\n") {
			if l != "" {
				sb.WriteString(prefix + l)
			}
		}
	}
	return sb.String()
}
