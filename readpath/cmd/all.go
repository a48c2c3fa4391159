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
	"strings"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/readpath/pkg/log"
	"gvisor.dev/readpath/readpath/cmd/util"
	"gvisor.dev/readpath/readpath/config"
	"gvisor.dev/readpath/readpath/scenario"
)

// All implements subcommands.Command for the "all" command.
type All struct {
	// parallel is the maximum number of scenarios run at once.
	parallel int

	// only is a comma-separated list of scenarios to run.
	only string

	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*All) Name() string {
	return "all"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*All) Synopsis() string {
	return "run every scenario, each on its own kernel"
}

// Usage implements subcommands.Command.Usage.
func (*All) Usage() string {
	return `all [flags] - run every scenario and print their reports in order
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (a *All) SetFlags(f *flag.FlagSet) {
	f.IntVar(&a.parallel, "parallel", 4, "maximum number of scenarios to run concurrently.")
	f.StringVar(&a.only, "only", "", "comma-separated list of scenarios to run. Empty means all.")
}

// Execute implements subcommands.Command.Execute.
func (a *All) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	scenarios, err := selectScenarios(a.only)
	if err != nil {
		return util.Errorf("%v", err)
	}
	reports, err := runScenarios(ctx, conf, scenarios, a.parallel)
	if err != nil {
		return util.Errorf("%v", err)
	}
	out := output(a.out)
	for _, r := range reports {
		printReport(out, r)
	}
	return subcommands.ExitSuccess
}

// selectScenarios returns the scenarios named in the comma-separated list
// only, or all of them if only is empty.
func selectScenarios(only string) ([]scenario.Scenario, error) {
	if only == "" {
		return scenario.All, nil
	}
	var scenarios []scenario.Scenario
	for _, name := range strings.Split(only, ",") {
		s, ok := scenario.Lookup(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// runScenarios runs scenarios with at most parallel of them at once, and
// returns their reports in the same order. The first failure cancels the
// scenarios that have not started.
func runScenarios(ctx context.Context, conf *config.Config, scenarios []scenario.Scenario, parallel int) ([]*scenario.Report, error) {
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	reports := make([]*scenario.Report, len(scenarios))
	for i, s := range scenarios {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.Run(taskContext(gctx), conf)
			if err != nil {
				return fmt.Errorf("%s failed: %w", s.Name, err)
			}
			log.Debugf("Scenario %s finished: %d reads, %d bytes", s.Name, r.Reads, r.Bytes)
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
