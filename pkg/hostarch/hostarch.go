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

// Package hostarch contains address, page and access-type definitions shared
// by the simulated address space and the copy engine.
package hostarch

import "golang.org/x/sys/unix"

const (
	// PageShift is the binary log of the page size used by simulated
	// address spaces.
	PageShift = 12

	// PageSize is the page size used by simulated address spaces.
	PageSize = 1 << PageShift
)

// HostPageSize returns the page size of the host, which may differ from
// PageSize.
func HostPageSize() int {
	return unix.Getpagesize()
}
