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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
	"gvisor.dev/readpath/pkg/metric"
	"gvisor.dev/readpath/readpath/cmd/util"
	"gvisor.dev/readpath/readpath/config"
	"gvisor.dev/readpath/readpath/scenario"
)

// Metrics implements subcommands.Command for the "metrics" command.
type Metrics struct {
	// run runs every scenario before printing.
	run bool

	// all prints metrics whose value is zero.
	all bool

	// format is either "table" or "prometheus".
	format string

	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Metrics) Name() string {
	return "metrics"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Metrics) Synopsis() string {
	return "print the read path metrics, after running every scenario"
}

// Usage implements subcommands.Command.Usage.
func (*Metrics) Usage() string {
	return `metrics [flags] - print the value of every registered metric
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *Metrics) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&m.run, "run", true, "run every scenario before printing metrics.")
	f.BoolVar(&m.all, "all", false, "include metrics whose value is zero.")
	f.StringVar(&m.format, "format", "table", "output format: table or prometheus.")
}

// Execute implements subcommands.Command.Execute.
func (m *Metrics) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	var write func(io.Writer, []metric.Value) error
	switch m.format {
	case "table":
		write = writeMetrics
	case "prometheus":
		write = func(w io.Writer, values []metric.Value) error {
			return metric.WritePrometheus(w, "", values)
		}
	default:
		return util.Errorf("unknown format %q", m.format)
	}

	if m.run {
		// Run sequentially so that the debug log reads in order.
		if _, err := runScenarios(ctx, conf, scenario.All, 1); err != nil {
			return util.Errorf("%v", err)
		}
	}
	values := metric.Snapshot()
	if !m.all {
		values = nonZero(values)
	}
	if err := write(output(m.out), values); err != nil {
		return util.Errorf("writing metrics: %v", err)
	}
	return subcommands.ExitSuccess
}

func nonZero(values []metric.Value) []metric.Value {
	var out []metric.Value
	for _, v := range values {
		if v.Value != 0 {
			out = append(out, v)
		}
	}
	return out
}

// writeMetrics writes one line per metric value.
func writeMetrics(w io.Writer, values []metric.Value) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, v := range values {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Label(), humanize.Comma(int64(v.Value)), v.Description)
	}
	return tw.Flush()
}
