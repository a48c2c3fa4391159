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
	"gvisor.dev/readpath/pkg/safemem"
	"gvisor.dev/readpath/pkg/usermem"
)

// All copies gather the accessible prefix of the requested ranges as a
// safemem.BlockSeq under mappingMu, then copy after mappingMu is released.
// This allows a safemem.Reader such as /proc/[pid]/mem to copy from the same
// MemoryManager it is copying into.

// CheckIORange is similar to hostarch.Addr.ToRange, but applies bounds checks
// consistent with Linux's arch/x86/include/asm/uaccess.h:access_ok().
//
// Preconditions: length >= 0.
func (mm *MemoryManager) CheckIORange(addr hostarch.Addr, length int64) (hostarch.AddrRange, bool) {
	// Note that access_ok() constrains end even if length == 0.
	ar, ok := addr.ToRange(uint64(length))
	return ar, (ok && ar.End <= mm.layout.MaxAddr)
}

// checkIOVec applies bound checks consistent with Linux's
// arch/x86/include/asm/uaccess.h:access_ok() to ars.
func (mm *MemoryManager) checkIOVec(ars hostarch.AddrRangeSeq) bool {
	for !ars.IsEmpty() {
		ar := ars.Head()
		if _, ok := mm.CheckIORange(ar.Start, int64(ar.Length())); !ok {
			return false
		}
		ars = ars.Tail()
	}
	return true
}

// blocksLocked returns the internal mappings for the longest prefix of ars
// that is mapped with permissions allowing at. If that prefix is shorter than
// ars, blocksLocked also returns EFAULT.
//
// Preconditions: mm.mappingMu must be locked.
func (mm *MemoryManager) blocksLocked(ars hostarch.AddrRangeSeq, at hostarch.AccessType, ignorePermissions bool) (safemem.BlockSeq, error) {
	var blocks []safemem.Block
	for !ars.IsEmpty() {
		ar := ars.Head()
		for addr := ar.Start; addr < ar.End; {
			v := mm.findVMALocked(addr)
			if v == nil || !v.effectivePerms(ignorePermissions).SupersetOf(at) {
				return safemem.BlockSeqFromSlice(blocks), linuxerr.EFAULT
			}
			end := ar.End
			if v.end < end {
				end = v.end
			}
			blocks = append(blocks, safemem.BlockFromSafeSlice(v.data(hostarch.AddrRange{Start: addr, End: end})))
			addr = end
		}
		ars = ars.Tail()
	}
	return safemem.BlockSeqFromSlice(blocks), nil
}

// blocks is blocksLocked with mm.mappingMu held for reading.
func (mm *MemoryManager) blocks(ars hostarch.AddrRangeSeq, at hostarch.AccessType, opts usermem.IOOpts) (safemem.BlockSeq, error) {
	mm.mappingMu.RLock()
	defer mm.mappingMu.RUnlock()
	return mm.blocksLocked(ars, at, opts.IgnorePermissions)
}

// CopyOut implements usermem.IO.CopyOut.
func (mm *MemoryManager) CopyOut(ctx context.Context, addr hostarch.Addr, src []byte, opts usermem.IOOpts) (int, error) {
	ar, ok := mm.CheckIORange(addr, int64(len(src)))
	if !ok {
		return 0, linuxerr.EFAULT
	}
	if len(src) == 0 {
		return 0, nil
	}
	dsts, err := mm.blocks(hostarch.AddrRangeSeqOf(ar), hostarch.Write, opts)
	n, _ := safemem.CopySeq(dsts, safemem.BlockSeqOf(safemem.BlockFromSafeSlice(src)))
	return int(n), err
}

// CopyIn implements usermem.IO.CopyIn.
func (mm *MemoryManager) CopyIn(ctx context.Context, addr hostarch.Addr, dst []byte, opts usermem.IOOpts) (int, error) {
	ar, ok := mm.CheckIORange(addr, int64(len(dst)))
	if !ok {
		return 0, linuxerr.EFAULT
	}
	if len(dst) == 0 {
		return 0, nil
	}
	srcs, err := mm.blocks(hostarch.AddrRangeSeqOf(ar), hostarch.Read, opts)
	n, _ := safemem.CopySeq(safemem.BlockSeqOf(safemem.BlockFromSafeSlice(dst)), srcs)
	return int(n), err
}

// CopyOutFrom implements usermem.IO.CopyOutFrom.
func (mm *MemoryManager) CopyOutFrom(ctx context.Context, ars hostarch.AddrRangeSeq, src safemem.Reader, opts usermem.IOOpts) (int64, error) {
	if !mm.checkIOVec(ars) {
		return 0, linuxerr.EFAULT
	}
	if ars.NumBytes() == 0 {
		return 0, nil
	}
	dsts, rngErr := mm.blocks(ars, hostarch.Write, opts)
	if dsts.IsEmpty() {
		return 0, rngErr
	}
	n, err := src.ReadToBlocks(dsts)
	if err != nil {
		return int64(n), err
	}
	if n < dsts.NumBytes() {
		// src stopped before reaching the inaccessible suffix.
		return int64(n), nil
	}
	return int64(n), rngErr
}

// CopyInTo implements usermem.IO.CopyInTo.
func (mm *MemoryManager) CopyInTo(ctx context.Context, ars hostarch.AddrRangeSeq, dst safemem.Writer, opts usermem.IOOpts) (int64, error) {
	if !mm.checkIOVec(ars) {
		return 0, linuxerr.EFAULT
	}
	if ars.NumBytes() == 0 {
		return 0, nil
	}
	srcs, rngErr := mm.blocks(ars, hostarch.Read, opts)
	if srcs.IsEmpty() {
		return 0, rngErr
	}
	n, err := dst.WriteFromBlocks(srcs)
	if err != nil {
		return int64(n), err
	}
	if n < srcs.NumBytes() {
		return int64(n), nil
	}
	return int64(n), rngErr
}

