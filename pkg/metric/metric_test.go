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
	"testing"

	"github.com/google/go-cmp/cmp"
)

// reset clears all global state in the metric package.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	initialized = false
	allMetrics = make(map[string]metricMetadata)
}

const (
	fooDescription     = "Foo!"
	counterDescription = "Counter"
)

func TestNameInUse(t *testing.T) {
	defer reset()

	if _, err := NewUint64Metric("/foo", false, fooDescription); err != nil {
		t.Fatalf("NewUint64Metric got err %v want nil", err)
	}
	if _, err := NewUint64Metric("/foo", false, fooDescription); err != ErrNameInUse {
		t.Errorf("NewUint64Metric got err %v want %v", err, ErrNameInUse)
	}
}

func TestInitializationDone(t *testing.T) {
	defer reset()

	Initialize()
	if _, err := NewUint64Metric("/foo", false, fooDescription); err != ErrInitializationDone {
		t.Errorf("NewUint64Metric got err %v want %v", err, ErrInitializationDone)
	}
}

func TestFieldsRequireValues(t *testing.T) {
	defer reset()

	if _, err := NewUint64Metric("/foo", false, fooDescription, NewField("empty", nil)); err != ErrFieldHasNoAllowedValues {
		t.Errorf("NewUint64Metric got err %v want %v", err, ErrFieldHasNoAllowedValues)
	}
}

func TestSnapshot(t *testing.T) {
	defer reset()

	plain := MustCreateNewUint64Metric("/plain", true, counterDescription)
	fielded := MustCreateNewUint64Metric("/fielded", true, counterDescription,
		NewField("kind", []string{"fault", "exhausted"}),
		NewField("source", []string{"file", "pipe"}))

	plain.IncrementBy(3)
	fielded.Increment("fault", "pipe")
	fielded.IncrementBy(2, "exhausted", "file")

	if got := fielded.Value("fault", "pipe"); got != 1 {
		t.Errorf("Value(fault, pipe) got %d want 1", got)
	}

	got := make(map[string]uint64)
	for _, v := range Snapshot() {
		got[v.Label()] = v.Value
	}
	want := map[string]uint64{
		"/plain":                               3,
		"/fielded{kind=fault,source=file}":     0,
		"/fielded{kind=fault,source=pipe}":     1,
		"/fielded{kind=exhausted,source=file}": 2,
		"/fielded{kind=exhausted,source=pipe}": 0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestKeyToMultiFieldRoundTrip(t *testing.T) {
	m, err := newFieldMapper(
		NewField("a", []string{"1", "2", "3"}),
		NewField("b", []string{"x", "y"}),
	)
	if err != nil {
		t.Fatalf("newFieldMapper: %v", err)
	}
	for key := 0; key < m.numKeys(); key++ {
		if got := m.lookup(m.keyToMultiField(key)...); got != key {
			t.Errorf("lookup(keyToMultiField(%d)) = %d", key, got)
		}
	}
}
