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


package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"golang.org/x/sys/unix"
)

func TestIs(t *testing.T) {
	efault := New(unix.EFAULT, "bad address")
	wrapped := fmt.Errorf("reading %q: %w", "/proc/self/mem", efault)
	for _, test := range []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same value", efault, efault, true},
		{"same errno, other message", efault, New(unix.EFAULT, "fault"), true},
		{"bare errno", efault, unix.EFAULT, true},
		{"wrapped", wrapped, unix.EFAULT, true},
		{"wrapped against *Error", wrapped, New(unix.EFAULT, ""), true},
		{"other errno", efault, unix.EBADF, false},
		{"other *Error", wrapped, New(unix.ESPIPE, "illegal seek"), false},
		{"unrelated error", efault, stderrors.New("bad address"), false},
	} {
		if got := stderrors.Is(test.err, test.target); got != test.want {
			t.Errorf("%s: errors.Is(%v, %v) got %t, want %t", test.name, test.err, test.target, got, test.want)
		}
	}
}

func TestErrno(t *testing.T) {
	e := New(unix.ESPIPE, "illegal seek")
	if e.Errno() != unix.ESPIPE || e.Error() != "illegal seek" {
		t.Errorf("got (%v, %q), want (ESPIPE, %q)", e.Errno(), e.Error(), "illegal seek")
	}
}
