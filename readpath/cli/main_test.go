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


package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"gvisor.dev/readpath/pkg/log"
	"gvisor.dev/readpath/readpath/config"
)

func TestNewTarget(t *testing.T) {
	for _, test := range []struct {
		name       string
		also       bool
		sameFile   bool
		wantFile   bool
		wantStderr bool
	}{
		{name: "log file only", wantFile: true},
		{name: "log file and stderr", also: true, wantFile: true, wantStderr: true},
		{name: "stderr is the log file", also: true, sameFile: true, wantStderr: true},
	} {
		t.Run(test.name, func(t *testing.T) {
			var file, stderr bytes.Buffer
			logFile := &file
			if test.sameFile {
				logFile = &stderr
			}
			conf := &config.Config{LogFormat: "text", AlsoLogToStderr: test.also}
			newTarget(conf, logFile, &stderr).Emit(0, log.Info, time.Now(), "hello %d", 7)

			if got := strings.Contains(file.String(), "hello 7"); got != test.wantFile {
				t.Errorf("log file got %q, want message: %t", file.String(), test.wantFile)
			}
			if got := strings.Count(stderr.String(), "hello 7") == 1; got != test.wantStderr {
				t.Errorf("stderr got %q, want message: %t", stderr.String(), test.wantStderr)
			}
		})
	}
}

func TestNewEmitterFormats(t *testing.T) {
	for _, format := range []string{"json", "json-k8s"} {
		var buf bytes.Buffer
		newEmitter(format, &buf).Emit(0, log.Warning, time.Now(), "short read")
		if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "short read") {
			t.Errorf("newEmitter(%q) wrote %q, want a JSON line", format, buf.String())
		}
	}
}
