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
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"gvisor.dev/readpath/pkg/hostarch"
	"gvisor.dev/readpath/pkg/sentry/kernel"
	"gvisor.dev/readpath/pkg/sentry/kernel/pipe"
	"gvisor.dev/readpath/pkg/usermem"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "path to a TOML file whose [flags] table sets defaults for flags not given on the command line.")
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	flagSet.String("log-format", "text", "log format: text (default), json, or json-k8s.")
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.Bool("alsologtostderr", false, "send log messages to stderr as well as to --log.")

	// Flags that control the read path.
	flagSet.Int64("unit-size", hostarch.PageSize, "transfer unit size in bytes; must be a power of two. A fault discards the unit in progress.")
	flagSet.Var(shortSourcePtr(usermem.CountPartial), "short-source", "accounting for a read that runs out of source bytes: count-partial (default), round-to-unit.")
	flagSet.Int("pipe-size", pipe.DefaultPipeSize, "capacity of pipes in bytes.")
	flagSet.Int("max-fds", kernel.DefaultMaxFDs, "maximum number of file descriptors per task.")
	flagSet.Bool("host-files", false, "make host files readable under "+kernel.HostPrefix+".")

	// Scenario flags.
	flagSet.Int64("file-size", 3*hostarch.PageSize+100, "size in bytes of the file read by the partial-read and resume scenarios.")
	flagSet.Duration("resume-timeout", 10*time.Second, "maximum time the resume scenario spends retrying short reads.")
}

// NewFromFlags creates a new Config with values coming from command line
// flags and, for flags not set explicitly, the file named by --config.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	if path := flagSet.Lookup("config").Value.String(); path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := f.Apply(flagSet); err != nil {
			return nil, err
		}
	}

	conf := &Config{}
	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		x := reflect.ValueOf(fl.Value.(flag.Getter).Get())
		obj.Field(i).Set(x)
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// ToFlags returns a slice of flags that correspond to the given Config.
func (c *Config) ToFlags() []string {
	var rv []string

	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		val := getVal(obj.Field(i))

		flag := flagSet.Lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		if val == flag.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", flag.Name, val))
	}
	return rv
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}

// File is the contents of a configuration file.
type File struct {
	// Flags is converted to flags --key=value directly.
	Flags map[string]any `toml:"flags"`
}

// LoadFile loads a configuration file.
func LoadFile(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("loading config file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %q has unknown keys %v", path, undecoded)
	}
	return &f, nil
}

// Apply sets every flag named in f that was not set explicitly on flagSet.
// The config flag itself may not be set from a file.
func (f *File) Apply(flagSet *flag.FlagSet) error {
	explicit := make(map[string]bool)
	flagSet.Visit(func(fl *flag.Flag) {
		explicit[fl.Name] = true
	})

	names := make([]string, 0, len(f.Flags))
	for name := range f.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "config" || flagSet.Lookup(name) == nil {
			return fmt.Errorf("config file sets unknown flag %q", name)
		}
		if explicit[name] {
			continue
		}
		value := fmt.Sprint(f.Flags[name])
		if err := flagSet.Set(name, value); err != nil {
			return fmt.Errorf("error setting flag %s=%q: %w", name, value, err)
		}
	}
	return nil
}
