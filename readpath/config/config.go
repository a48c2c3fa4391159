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

// Package config provides basic infrastructure to set configuration settings
// for readpath. Settings come from command line flags, optionally preceded
// by a TOML configuration file.
package config

import (
	"fmt"
	"math/bits"
	"time"

	"gvisor.dev/readpath/pkg/sentry/kernel"
	"gvisor.dev/readpath/pkg/usermem"
)

// Config holds configuration that is not part of any scenario's arguments.
type Config struct {
	// ConfigFile is the path of a TOML file whose [flags] table supplies
	// defaults for flags not given on the command line.
	ConfigFile string `flag:"config"`

	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log"`

	// LogFormat is the log format.
	LogFormat string `flag:"log-format"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// AlsoLogToStderr also sends log messages to stderr when LogFilename is
	// set.
	AlsoLogToStderr bool `flag:"alsologtostderr"`

	// UnitSize is the transfer unit size in bytes. Each destination range of
	// a read is copied in units of at most UnitSize bytes, and a fault
	// discards the unit in progress.
	UnitSize int64 `flag:"unit-size"`

	// ShortSource selects how a read that runs out of source bytes reports
	// the unit in progress.
	ShortSource usermem.ShortSourcePolicy `flag:"short-source"`

	// PipeSize is the capacity of pipes in bytes.
	PipeSize int `flag:"pipe-size"`

	// MaxFDs limits the number of descriptors each task may hold.
	MaxFDs int `flag:"max-fds"`

	// HostFiles makes host files readable under kernel.HostPrefix.
	HostFiles bool `flag:"host-files"`

	// FileSize is the size of the file read by the partial-read and resume
	// scenarios.
	FileSize int64 `flag:"file-size"`

	// ResumeTimeout bounds the time the resume scenario spends retrying short
	// reads.
	ResumeTimeout time.Duration `flag:"resume-timeout"`
}

func (c *Config) validate() error {
	if c.UnitSize <= 0 || bits.OnesCount64(uint64(c.UnitSize)) != 1 {
		return fmt.Errorf("unit-size must be a positive power of two, got %d", c.UnitSize)
	}
	switch c.LogFormat {
	case "text", "json", "json-k8s":
	default:
		return fmt.Errorf("invalid log-format %q", c.LogFormat)
	}
	if c.PipeSize <= 0 {
		return fmt.Errorf("pipe-size must be positive, got %d", c.PipeSize)
	}
	if c.MaxFDs <= 0 || c.MaxFDs > 1<<20 {
		return fmt.Errorf("max-fds must be in (0, %d], got %d", 1<<20, c.MaxFDs)
	}
	if c.FileSize < 0 {
		return fmt.Errorf("file-size must not be negative, got %d", c.FileSize)
	}
	if c.ResumeTimeout <= 0 {
		return fmt.Errorf("resume-timeout must be positive, got %v", c.ResumeTimeout)
	}
	return nil
}

// TransferOpts returns the transfer options selected by c.
func (c *Config) TransferOpts() usermem.TransferOpts {
	return usermem.TransferOpts{
		UnitSize:    c.UnitSize,
		ShortSource: c.ShortSource,
	}
}

// KernelArgs returns the arguments for a kernel configured by c.
func (c *Config) KernelArgs() kernel.InitKernelArgs {
	return kernel.InitKernelArgs{
		Transfer:  c.TransferOpts(),
		PipeSize:  c.PipeSize,
		MaxFDs:    int32(c.MaxFDs),
		HostFiles: c.HostFiles,
	}
}

// shortSource is the flag.Value for Config.ShortSource.
type shortSource usermem.ShortSourcePolicy

func shortSourcePtr(v usermem.ShortSourcePolicy) *shortSource {
	s := shortSource(v)
	return &s
}

// Set implements flag.Value.
func (s *shortSource) Set(v string) error {
	p, err := usermem.ParseShortSourcePolicy(v)
	if err != nil {
		return err
	}
	*s = shortSource(p)
	return nil
}

// Get implements flag.Getter.
func (s *shortSource) Get() any {
	return usermem.ShortSourcePolicy(*s)
}

// String implements flag.Value.
func (s *shortSource) String() string {
	return usermem.ShortSourcePolicy(*s).String()
}
