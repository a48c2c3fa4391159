// Copyright 2026 The gVisor Authors.
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

package scenario

import (
	"flag"
	"fmt"
	"strings"
	"testing"

	"gvisor.dev/readpath/pkg/context/contexttest"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/readpath/config"
)

func newConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	config.RegisterFlags(testFlags)
	if err := testFlags.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	conf, err := config.NewFromFlags(testFlags)
	if err != nil {
		t.Fatalf("NewFromFlags: %v", err)
	}
	return conf
}

func TestAll(t *testing.T) {
	for _, unitSize := range []int{1, 2, 16, 4096} {
		conf := newConfig(t, fmt.Sprintf("--unit-size=%d", unitSize))
		for _, s := range All {
			t.Run(fmt.Sprintf("%s/unit=%d", s.Name, unitSize), func(t *testing.T) {
				r, err := s.Run(contexttest.Context(t), conf)
				if err != nil {
					t.Fatalf("%s failed: %v", s.Name, err)
				}
				if r.Name != s.Name {
					t.Errorf("report name got %q, want %q", r.Name, s.Name)
				}
				if r.Reads == 0 || r.Bytes == 0 {
					t.Errorf("report %+v records no reads", r)
				}
			})
		}
	}
}

func TestPartialReadCounts(t *testing.T) {
	r, err := PartialRead(contexttest.Context(t), newConfig(t))
	if err != nil {
		t.Fatalf("PartialRead failed: %v", err)
	}
	if r.Reads != 2 || r.Bytes != 2*4096 {
		t.Errorf("got %d reads of %d bytes, want 2 reads of %d bytes", r.Reads, r.Bytes, 2*4096)
	}
}

func TestUnitLargerThanPage(t *testing.T) {
	conf := newConfig(t, "--unit-size=8192")
	ctx := contexttest.Context(t)
	if _, err := PartialRead(ctx, conf); err != nil {
		t.Errorf("PartialRead failed: %v", err)
	}
	if _, err := ReadvFault(ctx, conf); err != nil {
		t.Errorf("ReadvFault failed: %v", err)
	}
	if _, err := Resume(ctx, conf); err == nil || !strings.Contains(err.Error(), "unit size") {
		t.Errorf("Resume got err %v, want a unit size error", err)
	}
}

func TestResumeRoundToUnit(t *testing.T) {
	conf := newConfig(t, "--short-source=round-to-unit", "--unit-size=64", "--file-size=1024")
	r, err := Resume(contexttest.Context(t), conf)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if r.Bytes != 2*1024 {
		t.Errorf("got %d bytes over both passes, want %d", r.Bytes, 2*1024)
	}

	// A tail shorter than a unit is never reported, so the reader sees end of
	// file early.
	conf = newConfig(t, "--short-source=round-to-unit", "--unit-size=64", "--file-size=1000")
	if _, err := Resume(contexttest.Context(t), conf); err == nil || !strings.Contains(err.Error(), "960 bytes") {
		t.Errorf("Resume got err %v, want a 960-byte reconstruction", err)
	}
}

func TestLookup(t *testing.T) {
	for _, s := range All {
		if got, ok := Lookup(s.Name); !ok || got.Name != s.Name {
			t.Errorf("Lookup(%q) got (%q, %v)", s.Name, got.Name, ok)
		}
	}
	if _, ok := Lookup("nope"); ok {
		t.Errorf("Lookup(nope) succeeded")
	}
}

func TestTransient(t *testing.T) {
	for _, test := range []struct {
		err  error
		want bool
	}{
		{nil, false},
		{linuxerr.ErrWouldBlock, true},
		{fmt.Errorf("read: %w", linuxerr.EINTR), true},
		{linuxerr.EFAULT, false},
		{errShortRead, false},
	} {
		if got := transient(test.err); got != test.want {
			t.Errorf("transient(%v) got %t, want %t", test.err, got, test.want)
		}
	}
}
