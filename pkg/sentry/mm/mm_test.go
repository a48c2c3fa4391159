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
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/context/contexttest"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/hostarch"
	"gvisor.dev/readpath/pkg/safemem"
	"gvisor.dev/readpath/pkg/usermem"
)

func testMemoryManager(t *testing.T) (context.Context, *MemoryManager) {
	t.Helper()
	return contexttest.Context(t), NewMemoryManager()
}

// mapTwoPages maps two read/write pages and returns their start address.
func mapTwoPages(ctx context.Context, t *testing.T, mm *MemoryManager) hostarch.Addr {
	t.Helper()
	addr, err := mm.MMap(ctx, MMapOpts{
		Length: 2 * hostarch.PageSize,
		Perms:  hostarch.ReadWrite,
	})
	if err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	return addr
}

func TestMMapInvalid(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	if _, err := mm.MMap(ctx, MMapOpts{Length: 0, Perms: hostarch.Read}); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("MMap(length 0) got err %v, want EINVAL", err)
	}
	if _, err := mm.MMap(ctx, MMapOpts{Length: hostarch.PageSize, Addr: 0x10001, Fixed: true}); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("MMap(unaligned fixed) got err %v, want EINVAL", err)
	}
}

func TestMMapDistinct(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	a := mapTwoPages(ctx, t, mm)
	b := mapTwoPages(ctx, t, mm)
	if a == b {
		t.Fatalf("two mappings at the same address %v", a)
	}
	if got, want := mm.VirtualMemorySize(), uint64(4*hostarch.PageSize); got != want {
		t.Errorf("VirtualMemorySize got %d, want %d", got, want)
	}
}

func TestMProtectSplitsAndMerges(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	addr := mapTwoPages(ctx, t, mm)
	second := addr + hostarch.PageSize

	if err := mm.MProtect(ctx, second, hostarch.PageSize, hostarch.NoAccess); err != nil {
		t.Fatalf("MProtect failed: %v", err)
	}
	if got := mm.NumVMAs(); got != 2 {
		t.Errorf("NumVMAs after MProtect got %d, want 2", got)
	}
	ar, perms, ok := mm.MappingAt(second)
	if !ok || ar.Start != second || perms != hostarch.NoAccess {
		t.Errorf("MappingAt(%v) got (%v, %v, %t)", second, ar, perms, ok)
	}

	if err := mm.MProtect(ctx, second, hostarch.PageSize, hostarch.ReadWrite); err != nil {
		t.Fatalf("MProtect failed: %v", err)
	}
	if got := mm.NumVMAs(); got != 1 {
		t.Errorf("NumVMAs after restoring permissions got %d, want 1", got)
	}
}

func TestMProtectUnmapped(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	addr := mapTwoPages(ctx, t, mm)
	if err := mm.MUnmap(ctx, addr+hostarch.PageSize, hostarch.PageSize); err != nil {
		t.Fatalf("MUnmap failed: %v", err)
	}
	if err := mm.MProtect(ctx, addr, 2*hostarch.PageSize, hostarch.Read); !linuxerr.Equals(linuxerr.ENOMEM, err) {
		t.Errorf("MProtect over a hole got err %v, want ENOMEM", err)
	}
	if _, perms, _ := mm.MappingAt(addr); perms != hostarch.ReadWrite {
		t.Errorf("failed MProtect changed permissions to %v", perms)
	}
}

func TestMUnmapSplits(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	addr, err := mm.MMap(ctx, MMapOpts{Length: 3 * hostarch.PageSize, Perms: hostarch.ReadWrite})
	if err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if err := mm.MUnmap(ctx, addr+hostarch.PageSize, hostarch.PageSize); err != nil {
		t.Fatalf("MUnmap failed: %v", err)
	}
	if got := mm.NumVMAs(); got != 2 {
		t.Errorf("NumVMAs got %d, want 2", got)
	}
	if got, want := mm.VirtualMemorySize(), uint64(2*hostarch.PageSize); got != want {
		t.Errorf("VirtualMemorySize got %d, want %d", got, want)
	}
	if _, _, ok := mm.MappingAt(addr + hostarch.PageSize); ok {
		t.Errorf("middle page still mapped")
	}
}

func TestMUnmapZeroLength(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	addr := mapTwoPages(ctx, t, mm)
	if err := mm.MUnmap(ctx, addr+hostarch.PageSize, 0); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("MUnmap with length 0 got err %v, want EINVAL", err)
	}
	if got := mm.NumVMAs(); got != 1 {
		t.Errorf("NumVMAs got %d, want 1", got)
	}
	if got, want := mm.VirtualMemorySize(), uint64(2*hostarch.PageSize); got != want {
		t.Errorf("VirtualMemorySize got %d, want %d", got, want)
	}
}

func TestCopyRoundTripAcrossVMAs(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	addr := mapTwoPages(ctx, t, mm)
	// Split the mapping without changing what is accessible.
	if err := mm.MProtect(ctx, addr+hostarch.PageSize, hostarch.PageSize, hostarch.AnyAccess); err != nil {
		t.Fatalf("MProtect failed: %v", err)
	}

	start := addr + hostarch.PageSize - 3
	if n, err := mm.CopyOut(ctx, start, []byte("abcdef"), usermem.IOOpts{}); n != 6 || err != nil {
		t.Fatalf("CopyOut got (%d, %v), want (6, nil)", n, err)
	}
	got := make([]byte, 6)
	if n, err := mm.CopyIn(ctx, start, got, usermem.IOOpts{}); n != 6 || err != nil {
		t.Fatalf("CopyIn got (%d, %v), want (6, nil)", n, err)
	}
	if string(got) != "abcdef" {
		t.Errorf("CopyIn got %q, want %q", got, "abcdef")
	}
}

func TestCopyOutStopsAtProtectedPage(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	addr := mapTwoPages(ctx, t, mm)
	if err := mm.MProtect(ctx, addr+hostarch.PageSize, hostarch.PageSize, hostarch.NoAccess); err != nil {
		t.Fatalf("MProtect failed: %v", err)
	}
	n, err := mm.CopyOut(ctx, addr+hostarch.PageSize-2, []byte("wxyz"), usermem.IOOpts{})
	if n != 2 || !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CopyOut got (%d, %v), want (2, EFAULT)", n, err)
	}
	// The protection only binds the application.
	buf := make([]byte, 1)
	if n, err := mm.CopyIn(ctx, addr+hostarch.PageSize, buf, usermem.IOOpts{IgnorePermissions: true}); n != 1 || err != nil {
		t.Errorf("CopyIn ignoring permissions got (%d, %v), want (1, nil)", n, err)
	}
}

func TestCheckIORange(t *testing.T) {
	mm := NewMemoryManager()
	if _, ok := mm.CheckIORange(defaultMaxAddr-1, 2); ok {
		t.Errorf("CheckIORange past the end of the address space succeeded")
	}
	if _, ok := mm.CheckIORange(^hostarch.Addr(0), 2); ok {
		t.Errorf("CheckIORange with overflow succeeded")
	}
	if ar, ok := mm.CheckIORange(0x1000, 0); !ok || ar.Length() != 0 {
		t.Errorf("CheckIORange(0x1000, 0) got (%v, %t)", ar, ok)
	}
}

func TestCopyOutFromPrefix(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	addr := mapTwoPages(ctx, t, mm)
	if err := mm.MUnmap(ctx, addr+hostarch.PageSize, hostarch.PageSize); err != nil {
		t.Fatalf("MUnmap failed: %v", err)
	}
	ars := hostarch.AddrRangeSeqOf(hostarch.AddrRange{Start: addr + hostarch.PageSize - 4, End: addr + hostarch.PageSize + 4})

	for _, test := range []struct {
		name    string
		src     string
		wantN   int64
		wantErr error
	}{
		{
			name:    "source fills the prefix",
			src:     "abcdefgh",
			wantN:   4,
			wantErr: linuxerr.EFAULT,
		},
		{
			name:  "source runs dry first",
			src:   "ab",
			wantN: 2,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			r := &safemem.BlockSeqReader{Blocks: safemem.BlockSeqOf(safemem.BlockFromSafeSlice([]byte(test.src)))}
			n, err := mm.CopyOutFrom(ctx, ars, r, usermem.IOOpts{})
			if n != test.wantN {
				t.Errorf("CopyOutFrom got n=%d, want %d", n, test.wantN)
			}
			if test.wantErr == nil && err != nil && err != io.EOF {
				t.Errorf("CopyOutFrom got err %v, want nil", err)
			}
			if test.wantErr != nil && !linuxerr.Equals(linuxerr.EFAULT, err) {
				t.Errorf("CopyOutFrom got err %v, want EFAULT", err)
			}
		})
	}
}

func TestCopyOutFromSameMemoryManager(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	addr := mapTwoPages(ctx, t, mm)
	if _, err := mm.CopyOut(ctx, addr, []byte("hello"), usermem.IOOpts{}); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}

	// A source that reads from mm while mm is the destination must not
	// deadlock.
	src := safemem.ReaderFunc(func(dsts safemem.BlockSeq) (uint64, error) {
		buf := make([]byte, 5)
		if _, err := mm.CopyIn(ctx, addr, buf, usermem.IOOpts{}); err != nil {
			return 0, err
		}
		return safemem.CopySeq(dsts, safemem.BlockSeqOf(safemem.BlockFromSafeSlice(buf)))
	})
	dst := addr + hostarch.PageSize
	n, err := mm.CopyOutFrom(ctx, hostarch.AddrRangeSeqOf(hostarch.AddrRange{Start: dst, End: dst + 5}), src, usermem.IOOpts{})
	if n != 5 || err != nil {
		t.Fatalf("CopyOutFrom got (%d, %v), want (5, nil)", n, err)
	}
	got := make([]byte, 5)
	if _, err := mm.CopyIn(ctx, dst, got, usermem.IOOpts{}); err != nil {
		t.Fatalf("CopyIn failed: %v", err)
	}
	if diff := cmp.Diff("hello", string(got)); diff != "" {
		t.Errorf("copied bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestTransferIntoProtectedSecondPage(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	addr := mapTwoPages(ctx, t, mm)
	if err := mm.MProtect(ctx, addr+hostarch.PageSize, hostarch.PageSize, hostarch.NoAccess); err != nil {
		t.Fatalf("MProtect failed: %v", err)
	}
	data := bytes.Repeat([]byte{'x'}, 2*hostarch.PageSize)
	src := &safemem.BlockSeqReader{Blocks: safemem.BlockSeqOf(safemem.BlockFromSafeSlice(data))}
	seq := usermem.IOSequence{
		IO:    mm,
		Addrs: hostarch.AddrRangeSeqOf(hostarch.AddrRange{Start: addr, End: addr + 2*hostarch.PageSize}),
	}
	res, err := seq.Transfer(ctx, src, seq.TransferOpts)
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	want := usermem.TransferResult{
		Reported:        hostarch.PageSize,
		Physical:        hostarch.PageSize,
		CompletedUnits:  1,
		CompletedRanges: 0,
		Fault:           true,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Transfer result mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMapsDataInto(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	addr, err := mm.MMap(ctx, MMapOpts{
		Length: 2 * hostarch.PageSize,
		Perms:  hostarch.ReadWrite,
		Hint:   "[buffer]",
	})
	if err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if err := mm.MProtect(ctx, addr+hostarch.PageSize, hostarch.PageSize, hostarch.NoAccess); err != nil {
		t.Fatalf("MProtect failed: %v", err)
	}
	var buf bytes.Buffer
	mm.ReadMapsDataInto(ctx, &buf)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("ReadMapsDataInto got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], " rw-p ") || !strings.Contains(lines[1], " ---p ") {
		t.Errorf("unexpected permissions:\n%s", buf.String())
	}
	for _, line := range lines {
		if got := strings.Index(line, "[buffer]"); got != vmaNameColumn {
			t.Errorf("name at column %d, want %d: %q", got, vmaNameColumn, line)
		}
	}
}
