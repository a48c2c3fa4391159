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

package linux

import (
	"golang.org/x/sys/unix"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/hostarch"
	"gvisor.dev/readpath/pkg/sentry/kernel"
	"gvisor.dev/readpath/pkg/sentry/mm"
)

const validProt = unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC

// Mmap implements Linux syscall mmap(2) for private anonymous mappings.
func Mmap(t *kernel.Task, addr hostarch.Addr, length uint64, prot, flags int) (hostarch.Addr, error) {
	if prot&^validProt != 0 {
		return 0, linuxerr.EINVAL
	}
	// Only anonymous mappings exist; there is no file to map.
	if flags&unix.MAP_ANONYMOUS == 0 {
		return 0, linuxerr.ENODEV
	}
	if flags&unix.MAP_SHARED != 0 {
		return 0, linuxerr.EINVAL
	}
	opts := mm.MMapOpts{
		Length: length,
		Addr:   addr,
		Fixed:  flags&unix.MAP_FIXED != 0,
		Perms:  hostarch.AccessTypeFromProt(prot),
	}
	return t.MemoryManager().MMap(t, opts)
}

// Munmap implements Linux syscall munmap(2).
func Munmap(t *kernel.Task, addr hostarch.Addr, length uint64) error {
	return t.MemoryManager().MUnmap(t, addr, length)
}

// Mprotect implements Linux syscall mprotect(2).
func Mprotect(t *kernel.Task, addr hostarch.Addr, length uint64, prot int) error {
	if prot&^validProt != 0 {
		return linuxerr.EINVAL
	}
	return t.MemoryManager().MProtect(t, addr, length, hostarch.AccessTypeFromProt(prot))
}
