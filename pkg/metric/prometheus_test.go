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


package metric

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPrometheusName(t *testing.T) {
	for _, test := range []struct {
		prefix, name, want string
	}{
		{"", "/readpath/reads", "readpath_reads"},
		{"sandbox_", "/syscalls/partial_result", "sandbox_syscalls_partial_result"},
		{"", "plain", "plain"},
	} {
		if got := PrometheusName(test.prefix, test.name); got != test.want {
			t.Errorf("PrometheusName(%q, %q) got %q, want %q", test.prefix, test.name, got, test.want)
		}
	}
}

func TestWritePrometheus(t *testing.T) {
	values := []Value{
		{
			Name:        "/readpath/reads",
			Description: "Reads.",
			Fields:      map[string]string{"syscall": "read"},
			Value:       3,
		},
		{
			Name:        "/readpath/reads",
			Description: "Reads.",
			Fields:      map[string]string{"syscall": `re"adv`},
			Value:       1,
		},
		{
			Name:        "/total",
			Description: "A line\nbreak and a \\.",
			Value:       7,
		},
	}
	var b strings.Builder
	if err := WritePrometheus(&b, "", values); err != nil {
		t.Fatalf("WritePrometheus failed: %v", err)
	}
	want := `# HELP readpath_reads Reads.
# TYPE readpath_reads counter
readpath_reads{syscall="read"} 3
readpath_reads{syscall="re\"adv"} 1
# HELP total A line\nbreak and a \\.
# TYPE total counter
total 7
`
	if diff := cmp.Diff(want, b.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}
