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

// Package mm provides a simulated application address space: anonymous
// mappings with page-granular protections, and the usermem.IO implementation
// that copies through them.
//
// Lock order:
//
//	vfs.FileDescription.mu
//		mm.MemoryManager.mappingMu
package mm

import (
	"sync"

	"github.com/google/btree"
	"gvisor.dev/readpath/pkg/hostarch"
)

const (
	// defaultMinAddr is the lowest address handed out by MMap.
	defaultMinAddr = hostarch.Addr(0x10000)

	// defaultMaxAddr is one past the highest address an application may use.
	defaultMaxAddr = hostarch.Addr(1 << 47)

	// btreeDegree is the degree of the vma tree.
	btreeDegree = 8
)

// MmapLayout defines the range of addresses available to an address space.
type MmapLayout struct {
	// MinAddr is the minimum mappable address.
	MinAddr hostarch.Addr

	// MaxAddr is the maximum mappable address.
	MaxAddr hostarch.Addr
}

// MemoryManager implements a virtual address space.
type MemoryManager struct {
	// layout is the memory layout. It is immutable.
	layout MmapLayout

	// mappingMu is analogous to Linux's struct mm_struct::mmap_sem.
	mappingMu sync.RWMutex

	// vmas stores virtual memory areas, ordered by start address. vmas never
	// overlap.
	//
	// vmas is protected by mappingMu.
	vmas *btree.BTreeG[*vma]

	// nextAddr is where MMap starts searching for free space when no address
	// is requested.
	//
	// nextAddr is protected by mappingMu.
	nextAddr hostarch.Addr

	// usageAS is vmas.Span(), cached to accelerate RLIMIT_AS checks.
	//
	// usageAS is protected by mappingMu.
	usageAS uint64
}

// NewMemoryManager returns a new MemoryManager with the default layout.
func NewMemoryManager() *MemoryManager {
	return NewMemoryManagerWithLayout(MmapLayout{
		MinAddr: defaultMinAddr,
		MaxAddr: defaultMaxAddr,
	})
}

// NewMemoryManagerWithLayout returns a new MemoryManager with the given
// layout.
func NewMemoryManagerWithLayout(layout MmapLayout) *MemoryManager {
	return &MemoryManager{
		layout:   layout,
		vmas:     btree.NewG[*vma](btreeDegree, vmaLess),
		nextAddr: layout.MinAddr,
	}
}

// anonMapping is the memory backing one call to MMap. vmas split from the
// same mapping share it.
type anonMapping struct {
	data []byte
}

// A vma represents a virtual memory area.
type vma struct {
	// start and end bound the vma. Both are page-aligned.
	start hostarch.Addr
	end   hostarch.Addr

	// mapping backs the vma; bytes [off, off+end-start) of mapping.data hold
	// its contents.
	mapping *anonMapping
	off     uint64

	// realPerms are the memory permissions on this vma, as defined by the
	// application.
	realPerms hostarch.AccessType

	// maxPerms limits the set of permissions that may ever apply to this
	// memory, as well as accesses for which usermem.IOOpts.IgnorePermissions
	// is true.
	maxPerms hostarch.AccessType

	// hint is the name used for the mapping in /proc/[pid]/maps.
	hint string
}

func vmaLess(a, b *vma) bool {
	return a.start < b.start
}

func (v *vma) addrRange() hostarch.AddrRange {
	return hostarch.AddrRange{Start: v.start, End: v.end}
}

// data returns the bytes backing ar.
//
// Preconditions: v.addrRange().IsSupersetOf(ar).
func (v *vma) data(ar hostarch.AddrRange) []byte {
	base := v.off + uint64(ar.Start-v.start)
	return v.mapping.data[base : base+uint64(ar.Length())]
}

// effectivePerms returns the permissions that apply to an access.
func (v *vma) effectivePerms(ignorePermissions bool) hostarch.AccessType {
	if ignorePermissions {
		return v.maxPerms
	}
	return v.realPerms
}

// splitAt splits v at addr, leaving v as the lower half and returning the
// upper half.
//
// Preconditions: v.addrRange().CanSplitAt(addr).
func (v *vma) splitAt(addr hostarch.Addr) *vma {
	upper := *v
	upper.start = addr
	upper.off = v.off + uint64(addr-v.start)
	v.end = addr
	return &upper
}

// canMergeWith returns true if next immediately follows v in both address
// space and backing memory, with identical attributes.
func (v *vma) canMergeWith(next *vma) bool {
	return v.end == next.start &&
		v.mapping == next.mapping &&
		v.off+uint64(v.end-v.start) == next.off &&
		v.realPerms == next.realPerms &&
		v.maxPerms == next.maxPerms &&
		v.hint == next.hint
}

// findVMALocked returns the vma containing addr, or nil if addr is unmapped.
//
// Preconditions: mm.mappingMu must be locked.
func (mm *MemoryManager) findVMALocked(addr hostarch.Addr) *vma {
	var found *vma
	mm.vmas.DescendLessOrEqual(&vma{start: addr}, func(v *vma) bool {
		if addr < v.end {
			found = v
		}
		return false
	})
	return found
}

// isolateLocked splits vmas so that none of them straddle ar.Start or ar.End,
// and returns the vmas inside ar, in address order.
//
// Preconditions: mm.mappingMu must be locked for writing.
func (mm *MemoryManager) isolateLocked(ar hostarch.AddrRange) []*vma {
	if ar.Length() == 0 {
		return nil
	}
	if v := mm.findVMALocked(ar.Start); v != nil && v.addrRange().CanSplitAt(ar.Start) {
		mm.vmas.ReplaceOrInsert(v.splitAt(ar.Start))
	}
	if ar.End > 0 {
		if v := mm.findVMALocked(ar.End - 1); v != nil && v.addrRange().CanSplitAt(ar.End) {
			mm.vmas.ReplaceOrInsert(v.splitAt(ar.End))
		}
	}
	var inside []*vma
	mm.vmas.AscendRange(&vma{start: ar.Start}, &vma{start: ar.End}, func(v *vma) bool {
		inside = append(inside, v)
		return true
	})
	return inside
}

// mergeAroundLocked merges the vmas in and bordering ar with their
// neighbours where possible.
//
// Preconditions: mm.mappingMu must be locked for writing.
func (mm *MemoryManager) mergeAroundLocked(ar hostarch.AddrRange) {
	lo := ar.Start
	if lo > 0 {
		if before := mm.findVMALocked(lo - 1); before != nil {
			lo = before.start
		}
	}
	var (
		prev   *vma
		merged []*vma
	)
	mm.vmas.AscendGreaterOrEqual(&vma{start: lo}, func(v *vma) bool {
		if v.start > ar.End {
			return false
		}
		if prev != nil && prev.canMergeWith(v) {
			prev.end = v.end
			merged = append(merged, v)
			return true
		}
		prev = v
		return true
	})
	for _, v := range merged {
		mm.vmas.Delete(v)
	}
}

// VirtualMemorySize returns the combined length in bytes of all mappings in
// mm.
func (mm *MemoryManager) VirtualMemorySize() uint64 {
	mm.mappingMu.RLock()
	defer mm.mappingMu.RUnlock()
	return mm.usageAS
}

// NumVMAs returns the number of distinct virtual memory areas in mm.
func (mm *MemoryManager) NumVMAs() int {
	mm.mappingMu.RLock()
	defer mm.mappingMu.RUnlock()
	return mm.vmas.Len()
}
