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
	"bytes"
	"fmt"
	"strings"

	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/hostarch"
)

// vmaNameColumn is the column at which the name of a mapping begins in
// /proc/[pid]/maps, matching Linux's fs/proc/task_mmu.c:show_map_vma().
const vmaNameColumn = 73

// ReadMapsDataInto is called by fsimpl/proc.mapsData.Generate to
// implement /proc/[pid]/maps.
func (mm *MemoryManager) ReadMapsDataInto(ctx context.Context, buf *bytes.Buffer) {
	mm.mappingMu.RLock()
	defer mm.mappingMu.RUnlock()
	mm.vmas.Ascend(func(v *vma) bool {
		mm.appendVMAMapsEntryLocked(buf, v)
		return true
	})
}

// appendVMAMapsEntryLocked appends the /proc/[pid]/maps line for v to b.
//
// Preconditions: mm.mappingMu must be locked.
func (mm *MemoryManager) appendVMAMapsEntryLocked(b *bytes.Buffer, v *vma) {
	perms := v.realPerms.String()
	// All mappings are private and anonymous, so the offset is always 0.
	perms += "p"

	lineLen, _ := fmt.Fprintf(b, "%08x-%08x %s %08x 00:00 0 ", uint64(v.start), uint64(v.end), perms, 0)
	if v.hint != "" {
		if pad := vmaNameColumn - lineLen; pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
		b.WriteString(v.hint)
	}
	b.WriteString("\n")
}

// MappingAt describes the mapping containing addr, for diagnostics. It
// returns false if addr is unmapped.
func (mm *MemoryManager) MappingAt(addr hostarch.Addr) (hostarch.AddrRange, hostarch.AccessType, bool) {
	mm.mappingMu.RLock()
	defer mm.mappingMu.RUnlock()
	v := mm.findVMALocked(addr)
	if v == nil {
		return hostarch.AddrRange{}, hostarch.NoAccess, false
	}
	return v.addrRange(), v.realPerms, true
}
