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


// Package cli is the main entrypoint for readpath.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/subcommands"
	"gvisor.dev/readpath/pkg/hostarch"
	"gvisor.dev/readpath/pkg/log"
	"gvisor.dev/readpath/pkg/metric"
	"gvisor.dev/readpath/readpath/cmd"
	"gvisor.dev/readpath/readpath/cmd/util"
	"gvisor.dev/readpath/readpath/config"
	"gvisor.dev/readpath/readpath/scenario"
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		util.Fatalf("%s", err.Error())
	}

	subcommand := flag.CommandLine.Arg(0)

	var logFile io.Writer = os.Stderr
	if conf.LogFilename != "" {
		// O_APPEND so that repeated runs sharing a pattern without %TIMESTAMP%
		// keep earlier output.
		f, err := log.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, log.FileOpts{
			Command: subcommand,
			Time:    time.Now(),
		})
		if err != nil {
			util.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logFile = f
		util.ErrorLogger = f
	}
	log.SetTarget(newTarget(conf, logFile, os.Stderr))
	if conf.Debug {
		log.SetLevel(log.Debug)
	}

	const delimString = `**************** readpath ****************`
	log.Infof(delimString)
	log.Infof("%s, %s, %d CPUs, %s, PID %d", runtime.Version(), runtime.GOARCH, runtime.NumCPU(), runtime.GOOS, os.Getpid())
	pageSize := hostarch.HostPageSize()
	log.Debugf("Page size: 0x%x (%d bytes)", pageSize, pageSize)
	if pageSize != hostarch.PageSize {
		log.Warningf("Host page size %d differs from simulated page size %d", pageSize, hostarch.PageSize)
	}
	log.Infof("Args: %v", os.Args)
	log.Infof("Config: %v", conf.ToFlags())
	log.Infof(delimString)

	metric.Initialize()

	// Call the subcommand and pass in the configuration.
	subcmdCode := subcommands.Execute(context.Background(), conf)
	if subcmdCode == subcommands.ExitSuccess {
		os.Exit(0)
	}
	log.Warningf("Failure to execute command, err: %v", subcmdCode)
	os.Exit(int(subcmdCode))
}

// forEachCmd invokes the passed callback for each command supported by
// readpath.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")

	const scenarioGroup = "scenarios"
	for _, s := range scenario.All {
		cb(cmd.NewScenario(s), scenarioGroup)
	}
	cb(new(cmd.All), "")
	cb(new(cmd.Metrics), "")
}

// newTarget returns the emitter for the global logger: logFile, plus stderr
// if conf.AlsoLogToStderr is set and logFile is not already stderr.
func newTarget(conf *config.Config, logFile, stderr io.Writer) log.Emitter {
	emitters := log.MultiEmitter{newEmitter(conf.LogFormat, logFile)}
	if conf.AlsoLogToStderr && logFile != stderr {
		emitters = append(emitters, newEmitter(conf.LogFormat, stderr))
	}
	if len(emitters) == 1 {
		return emitters[0]
	}
	return &emitters
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{Writer: &log.Writer{Next: logFile}}
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: logFile}}
	case "json-k8s":
		return log.K8sJSONEmitter{Writer: &log.Writer{Next: logFile}}
	}
	util.Fatalf("invalid log format %q, must be 'text', 'json', or 'json-k8s'", format)
	panic("unreachable")
}
