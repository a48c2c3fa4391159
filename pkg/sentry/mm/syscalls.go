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

package mm

import (
	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/hostarch"
)

// MMapOpts specifies a request to create a memory mapping.
type MMapOpts struct {
	// Length is the length of the mapping.
	Length uint64

	// Addr is the suggested address for the mapping.
	Addr hostarch.Addr

	// Fixed specifies whether this is a fixed mapping (it must be located at
	// Addr). Any existing mappings in the range are replaced.
	Fixed bool

	// Perms is the set of permissions to the applied to this mapping.
	Perms hostarch.AccessType

	// MaxPerms limits the set of permissions that may ever apply to this
	// mapping. If MaxPerms is the zero value, hostarch.AnyAccess is used.
	MaxPerms hostarch.AccessType

	// Hint is the name used for the mapping in /proc/[pid]/maps.
	Hint string
}

// MMap establishes a private anonymous memory mapping and returns its start
// address.
func (mm *MemoryManager) MMap(ctx context.Context, opts MMapOpts) (hostarch.Addr, error) {
	if opts.Length == 0 {
		return 0, linuxerr.EINVAL
	}
	length, ok := hostarch.Addr(opts.Length).RoundUp()
	if !ok {
		return 0, linuxerr.ENOMEM
	}
	if opts.MaxPerms == hostarch.NoAccess {
		opts.MaxPerms = hostarch.AnyAccess
	}
	if !opts.MaxPerms.SupersetOf(opts.Perms) {
		return 0, linuxerr.EACCES
	}

	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()

	var ar hostarch.AddrRange
	if opts.Fixed {
		if !opts.Addr.IsPageAligned() {
			return 0, linuxerr.EINVAL
		}
		ar, ok = opts.Addr.ToRange(uint64(length))
		if !ok || ar.Start < mm.layout.MinAddr || ar.End > mm.layout.MaxAddr {
			return 0, linuxerr.ENOMEM
		}
		mm.unmapLocked(ar)
	} else {
		ar, ok = mm.findAvailableLocked(length)
		if !ok {
			return 0, linuxerr.ENOMEM
		}
	}

	mm.vmas.ReplaceOrInsert(&vma{
		start:     ar.Start,
		end:       ar.End,
		mapping:   &anonMapping{data: make([]byte, length)},
		realPerms: opts.Perms,
		maxPerms:  opts.MaxPerms,
		hint:      opts.Hint,
	})
	mm.usageAS += uint64(length)
	if ar.End > mm.nextAddr {
		mm.nextAddr = ar.End
	}
	ctx.Debugf("mmap %v %v %q", ar, opts.Perms, opts.Hint)
	return ar.Start, nil
}

// findAvailableLocked returns a free, page-aligned range of the given length.
//
// Preconditions: mm.mappingMu must be locked. length is page-aligned.
func (mm *MemoryManager) findAvailableLocked(length hostarch.Addr) (hostarch.AddrRange, bool) {
	start := mm.nextAddr
	for {
		ar, ok := start.ToRange(uint64(length))
		if !ok || ar.End > mm.layout.MaxAddr {
			return hostarch.AddrRange{}, false
		}
		blocked := false
		mm.vmas.AscendRange(&vma{start: ar.Start}, &vma{start: ar.End}, func(v *vma) bool {
			start = v.end
			blocked = true
			return false
		})
		if v := mm.findVMALocked(ar.Start); v != nil {
			start = v.end
			blocked = true
		}
		if !blocked {
			return ar, true
		}
	}
}

// MUnmap implements the semantics of Linux's munmap(2).
func (mm *MemoryManager) MUnmap(ctx context.Context, addr hostarch.Addr, length uint64) error {
	if !addr.IsPageAligned() {
		return linuxerr.EINVAL
	}
	la, ok := hostarch.Addr(length).RoundUp()
	if !ok {
		return linuxerr.EINVAL
	}
	if la == 0 {
		return linuxerr.EINVAL
	}
	ar, ok := addr.ToRange(uint64(la))
	if !ok {
		return linuxerr.EINVAL
	}

	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()
	mm.unmapLocked(ar)
	ctx.Debugf("munmap %v", ar)
	return nil
}

// unmapLocked removes all mappings in ar.
//
// Preconditions: mm.mappingMu must be locked for writing.
func (mm *MemoryManager) unmapLocked(ar hostarch.AddrRange) {
	for _, v := range mm.isolateLocked(ar) {
		mm.usageAS -= uint64(v.end - v.start)
		mm.vmas.Delete(v)
	}
}

// MProtect implements the semantics of Linux's mprotect(2).
func (mm *MemoryManager) MProtect(ctx context.Context, addr hostarch.Addr, length uint64, realPerms hostarch.AccessType) error {
	if !addr.IsPageAligned() {
		return linuxerr.EINVAL
	}
	la, ok := hostarch.Addr(length).RoundUp()
	if !ok {
		return linuxerr.ENOMEM
	}
	ar, ok := addr.ToRange(uint64(la))
	if !ok {
		return linuxerr.ENOMEM
	}
	if ar.Length() == 0 {
		return nil
	}

	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()

	// Linux fails with ENOMEM if any part of the range is unmapped, and
	// leaves the mapped parts unchanged.
	for a := ar.Start; a < ar.End; {
		v := mm.findVMALocked(a)
		if v == nil {
			return linuxerr.ENOMEM
		}
		if !v.maxPerms.SupersetOf(realPerms) {
			return linuxerr.EACCES
		}
		a = v.end
	}

	for _, v := range mm.isolateLocked(ar) {
		v.realPerms = realPerms
	}
	mm.mergeAroundLocked(ar)
	ctx.Debugf("mprotect %v %v", ar, realPerms)
	return nil
}
