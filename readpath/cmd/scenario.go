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

	"github.com/google/subcommands"
	"gvisor.dev/readpath/readpath/cmd/util"
	"gvisor.dev/readpath/readpath/config"
	"gvisor.dev/readpath/readpath/scenario"
)

// Scenario implements subcommands.Command for a single scenario.
type Scenario struct {
	s scenario.Scenario

	// quiet suppresses the per-step details of the report.
	quiet bool

	out io.Writer
}

// NewScenario returns the command that runs s.
func NewScenario(s scenario.Scenario) *Scenario {
	return &Scenario{s: s}
}

// Name implements subcommands.Command.Name.
func (c *Scenario) Name() string {
	return c.s.Name
}

// Synopsis implements subcommands.Command.Synopsis.
func (c *Scenario) Synopsis() string {
	return c.s.Synopsis
}

// Usage implements subcommands.Command.Usage.
func (c *Scenario) Usage() string {
	return fmt.Sprintf(`%s [flags] - %s
`, c.s.Name, c.s.Synopsis)
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Scenario) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.quiet, "quiet", false, "print only the summary line of the report.")
}

// Execute implements subcommands.Command.Execute.
func (c *Scenario) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	r, err := c.s.Run(taskContext(ctx), conf)
	if err != nil {
		return util.Errorf("%s failed: %v", c.s.Name, err)
	}
	if c.quiet {
		r.Details = nil
	}
	printReport(output(c.out), r)
	return subcommands.ExitSuccess
}
