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

// Package contexttest builds a test context.Context.
package contexttest

import (
	"testing"

	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/log"
)

// Context returns a Context that may be used in tests. Log output at every
// level is routed to tb.Logf, so it only shows up for failing or verbose
// tests.
func Context(tb testing.TB) context.Context {
	l := &log.BasicLogger{
		Level:   log.Debug,
		Emitter: &log.TestEmitter{TestLogger: tb},
	}
	// Test usage of context.Background is fine.
	return context.WithLogger(context.Background(), l)
}
