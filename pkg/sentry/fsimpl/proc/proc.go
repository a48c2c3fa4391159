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

// Package proc implements the /proc/[pid] entries that expose a task's
// address space: mem, maps and statm.
package proc

import (
	"bytes"
	"fmt"

	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/hostarch"
	"gvisor.dev/readpath/pkg/safemem"
	"gvisor.dev/readpath/pkg/sentry/mm"
	"gvisor.dev/readpath/pkg/sentry/vfs"
	"gvisor.dev/readpath/pkg/usermem"
)

// Entries lists the names Open accepts.
var Entries = []string{"maps", "mem", "statm"}

// Open opens the named entry of the /proc/[pid] directory of the task whose
// address space is m.
func Open(ctx context.Context, m *mm.MemoryManager, name string, flags uint32) (*vfs.FileDescription, error) {
	var impl any
	switch name {
	case "mem":
		impl = &memData{mm: m}
	case "maps":
		if flags&linux.O_ACCMODE != linux.O_RDONLY {
			return nil, linuxerr.EACCES
		}
		impl = &mapsData{mm: m}
	case "statm":
		if flags&linux.O_ACCMODE != linux.O_RDONLY {
			return nil, linuxerr.EACCES
		}
		impl = &statmData{mm: m}
	default:
		return nil, linuxerr.ENOENT
	}
	return vfs.NewFileDescription(impl, vfs.FileDescriptionOptions{
		Name:  "/proc/self/" + name,
		Flags: flags,
	})
}

// memData implements vfs.PositionalReader and vfs.PositionalWriter for
// /proc/[pid]/mem. Offsets are addresses in the task's address space.
// Application memory protections are ignored, as for ptrace.
type memData struct {
	mm *mm.MemoryManager
}

// ReadToBlocksAt implements vfs.PositionalReader.ReadToBlocksAt.
//
// Consistent with Linux's fs/proc/base.c:mem_rw(), reading an unmapped
// address returns EIO if no bytes were read, and a short count otherwise.
func (d *memData) ReadToBlocksAt(ctx context.Context, dsts safemem.BlockSeq, offset uint64) (uint64, error) {
	ar, ok := d.rangeAt(offset, dsts.NumBytes())
	if !ok {
		return 0, linuxerr.EIO
	}
	w := &safemem.BlockSeqWriter{Blocks: dsts}
	n, err := d.mm.CopyInTo(ctx, hostarch.AddrRangeSeqOf(ar), w, usermem.IOOpts{IgnorePermissions: true})
	if n == 0 && err != nil {
		// EFAULT here refers to the address space being read, not the
		// destination, and must not be reported as a destination fault.
		return 0, linuxerr.EIO
	}
	return uint64(n), nil
}

// WriteFromBlocksAt implements vfs.PositionalWriter.WriteFromBlocksAt.
func (d *memData) WriteFromBlocksAt(ctx context.Context, srcs safemem.BlockSeq, offset uint64) (uint64, error) {
	ar, ok := d.rangeAt(offset, srcs.NumBytes())
	if !ok {
		return 0, linuxerr.EIO
	}
	r := &safemem.BlockSeqReader{Blocks: srcs}
	n, err := d.mm.CopyOutFrom(ctx, hostarch.AddrRangeSeqOf(ar), r, usermem.IOOpts{IgnorePermissions: true})
	if n == 0 && err != nil {
		return 0, linuxerr.EIO
	}
	return uint64(n), nil
}

func (d *memData) rangeAt(offset, length uint64) (hostarch.AddrRange, bool) {
	if int64(offset) < 0 {
		return hostarch.AddrRange{}, false
	}
	return d.mm.CheckIORange(hostarch.Addr(offset), int64(length))
}

// mapsData implements vfs.DynamicBytesSource for /proc/[pid]/maps.
type mapsData struct {
	mm *mm.MemoryManager
}

// Generate implements vfs.DynamicBytesSource.Generate.
func (d *mapsData) Generate(ctx context.Context, buf *bytes.Buffer) error {
	d.mm.ReadMapsDataInto(ctx, buf)
	return nil
}

// statmData implements vfs.DynamicBytesSource for /proc/[pid]/statm.
type statmData struct {
	mm *mm.MemoryManager
}

// Generate implements vfs.DynamicBytesSource.Generate.
func (d *statmData) Generate(ctx context.Context, buf *bytes.Buffer) error {
	vss := d.mm.VirtualMemorySize() / hostarch.PageSize
	// All mappings are anonymous and fully populated.
	fmt.Fprintf(buf, "%d %d 0 0 0 0 0\n", vss, vss)
	return nil
}
