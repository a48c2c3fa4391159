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


// Package errors holds the standardized error definition for readpath.
//
// Each *Error pairs a host errno with a message; the read path returns them
// unwrapped so that callers can compare against the canonical values in
// linuxerr.
package errors

import (
	"golang.org/x/sys/unix"
)

// Error represents a syscall errno with a descriptive message.
type Error struct {
	errno   unix.Errno
	message string
}

// New creates a new *Error.
func New(err unix.Errno, message string) *Error {
	return &Error{
		errno:   err,
		message: message,
	}
}

// Error implements error.Error.
func (e *Error) Error() string { return e.message }

// Errno returns the errno carried by e.
func (e *Error) Errno() unix.Errno { return e.errno }

// Is lets errors.Is match e against another *Error or a bare unix.Errno with
// the same number, even through fmt.Errorf("%w") wrapping.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case *Error:
		return t.errno == e.errno
	case unix.Errno:
		return t == e.errno
	}
	return false
}
