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
	"fmt"
	"io"
	"sort"
	"strings"
)

// PrometheusName converts a metric name such as /readpath/short_reads into a
// Prometheus metric name such as readpath_short_reads, with prefix prepended.
func PrometheusName(prefix, name string) string {
	return prefix + strings.ReplaceAll(strings.TrimPrefix(name, "/"), "/", "_")
}

// WritePrometheus writes values in the Prometheus text exposition format.
// Every metric is a counter. Samples of one metric are written under a single
// HELP/TYPE header in the order they appear in values.
func WritePrometheus(w io.Writer, prefix string, values []Value) error {
	var (
		order  []string
		byName = make(map[string][]Value)
	)
	for _, v := range values {
		if _, ok := byName[v.Name]; !ok {
			order = append(order, v.Name)
		}
		byName[v.Name] = append(byName[v.Name], v)
	}
	for _, name := range order {
		samples := byName[name]
		promName := PrometheusName(prefix, name)
		// Only backslashes and line breaks need escaping in HELP text.
		help := strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(samples[0].Description)
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", promName, help, promName); err != nil {
			return err
		}
		for _, v := range samples {
			if _, err := fmt.Fprintf(w, "%s%s %d\n", promName, prometheusLabels(v.Fields), v.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// prometheusLabels formats fields as {k="v",...}, sorted by key.
func prometheusLabels(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	esc := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=\"%s\"", k, esc.Replace(fields[k]))
	}
	b.WriteByte('}')
	return b.String()
}
