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

// Package cmd holds implementations of the readpath commands.
package cmd

import (
	stdcontext "context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/log"
	"gvisor.dev/readpath/readpath/scenario"
)

// output returns w, or os.Stdout if w is nil.
func output(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// taskContext returns a context for a scenario run under ctx. Each scenario
// needs its own, since a Context may not be shared between goroutines.
func taskContext(ctx stdcontext.Context) context.Context {
	return context.WithLogger(ctx, log.Log())
}

// printReport writes r in a human readable form.
func printReport(w io.Writer, r *scenario.Report) {
	fmt.Fprintf(w, "%s: ok, %s in %s\n", r.Name, humanize.IBytes(uint64(r.Bytes)), plural(r.Reads, "read"))
	for _, d := range r.Details {
		fmt.Fprintf(w, "\t%s\n", d)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%s %ss", humanize.Comma(int64(n)), noun)
}
