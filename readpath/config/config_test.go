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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/readpath/pkg/usermem"
)

func newFlagSet() *flag.FlagSet {
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	return testFlags
}

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readpath.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet())
	if err != nil {
		t.Fatal(err)
	}
	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
	if want := (usermem.TransferOpts{UnitSize: 4096, ShortSource: usermem.CountPartial}); c.TransferOpts() != want {
		t.Errorf("TransferOpts=%+v, want: %+v", c.TransferOpts(), want)
	}
}

func TestFromFlags(t *testing.T) {
	testFlags := newFlagSet()
	if err := testFlags.Parse([]string{"--debug", "--unit-size=16", "--short-source=round-to-unit", "--resume-timeout=1s"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if want := true; c.Debug != want {
		t.Errorf("Debug=%v, want: %v", c.Debug, want)
	}
	if want := int64(16); c.UnitSize != want {
		t.Errorf("UnitSize=%v, want: %v", c.UnitSize, want)
	}
	if want := usermem.RoundToUnit; c.ShortSource != want {
		t.Errorf("ShortSource=%v, want: %v", c.ShortSource, want)
	}
	if want := time.Second; c.ResumeTimeout != want {
		t.Errorf("ResumeTimeout=%v, want: %v", c.ResumeTimeout, want)
	}
	want := []string{"--debug=true", "--unit-size=16", "--short-source=round-to-unit", "--resume-timeout=1s"}
	if diff := cmp.Diff(want, c.ToFlags()); diff != "" {
		t.Errorf("ToFlags mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		want string
	}{
		{name: "zero unit", args: []string{"--unit-size=0"}, want: "unit-size"},
		{name: "odd unit", args: []string{"--unit-size=24"}, want: "unit-size"},
		{name: "log format", args: []string{"--log-format=xml"}, want: "log-format"},
		{name: "pipe size", args: []string{"--pipe-size=0"}, want: "pipe-size"},
		{name: "max fds", args: []string{"--max-fds=-1"}, want: "max-fds"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newFlagSet()
			if err := testFlags.Parse(tc.args); err != nil {
				t.Fatalf("Parse: %v", err)
			}
			_, err := NewFromFlags(testFlags)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("NewFromFlags got err %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestBadShortSource(t *testing.T) {
	testFlags := newFlagSet()
	testFlags.SetOutput(&strings.Builder{})
	if err := testFlags.Parse([]string{"--short-source=sometimes"}); err == nil {
		t.Errorf("Parse accepted an unknown short source policy")
	}
}

func TestConfigFile(t *testing.T) {
	path := writeFile(t, `
[flags]
unit-size = 64
host-files = true
log-format = "json"
pipe-size = 8192
`)
	testFlags := newFlagSet()
	// Command line flags take precedence over the file.
	if err := testFlags.Parse([]string{"--config=" + path, "--pipe-size=1024"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	got := []any{c.UnitSize, c.HostFiles, c.LogFormat, c.PipeSize}
	want := []any{int64(64), true, "json", 1024}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFileErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
	}{
		{name: "syntax", contents: "[flags\n"},
		{name: "unknown flag", contents: "[flags]\nno-such-flag = 1\n"},
		{name: "unknown table", contents: "[other]\nx = 1\n"},
		{name: "recursive", contents: "[flags]\nconfig = \"other.toml\"\n"},
		{name: "bad value", contents: "[flags]\nunit-size = \"big\"\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newFlagSet()
			if err := testFlags.Parse([]string{"--config=" + writeFile(t, tc.contents)}); err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if _, err := NewFromFlags(testFlags); err == nil {
				t.Errorf("NewFromFlags succeeded")
			}
		})
	}
}

func TestKernelArgs(t *testing.T) {
	testFlags := newFlagSet()
	if err := testFlags.Parse([]string{"--max-fds=8", "--host-files"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	args := c.KernelArgs()
	if args.MaxFDs != 8 || !args.HostFiles || args.PipeSize != c.PipeSize {
		t.Errorf("KernelArgs=%+v", args)
	}
}
