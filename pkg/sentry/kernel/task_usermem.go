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

package kernel

import (
	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/hostarch"
	"gvisor.dev/readpath/pkg/usermem"
)

// CopyInBytes is a fast version of CopyIn if the caller can serialize the
// data without reflection and pass in a byte slice.
func (t *Task) CopyInBytes(addr hostarch.Addr, dst []byte) (int, error) {
	return t.mm.CopyIn(t, addr, dst, usermem.IOOpts{})
}

// CopyOutBytes is a fast version of CopyOut if the caller can serialize the
// data without reflection and pass in a byte slice.
func (t *Task) CopyOutBytes(addr hostarch.Addr, src []byte) (int, error) {
	return t.mm.CopyOut(t, addr, src, usermem.IOOpts{})
}

// ioSequence returns an IOSequence over ars in t's address space, using the
// kernel's transfer options.
func (t *Task) ioSequence(ars hostarch.AddrRangeSeq) usermem.IOSequence {
	return usermem.IOSequence{
		IO:           t.mm,
		Addrs:        ars,
		TransferOpts: t.k.args.Transfer,
	}
}

// SingleIOSequence returns a usermem.IOSequence representing [addr,
// addr+length) in t's address space. If this contains addresses outside the
// application address range, it returns EFAULT. If length exceeds
// MAX_RW_COUNT, the range is silently truncated.
//
// SingleIOSequence is analogous to Linux's
// lib/iov_iter.c:import_single_range(). (Note that the non-vectorized read and
// write syscalls in Linux do not use import_single_range(). However they check
// access_ok() in fs/read_write.c:vfs_read/vfs_write, and overflowing address
// ranges are truncated to MAX_RW_COUNT by fs/read_write.c:rw_verify_area().)
func (t *Task) SingleIOSequence(addr hostarch.Addr, length int) (usermem.IOSequence, error) {
	if length > linux.MAX_RW_COUNT {
		length = linux.MAX_RW_COUNT
	}
	ar, ok := t.mm.CheckIORange(addr, int64(length))
	if !ok {
		return usermem.IOSequence{}, linuxerr.EFAULT
	}
	return t.ioSequence(hostarch.AddrRangeSeqOf(ar)), nil
}

// IovecsIOSequence returns a usermem.IOSequence representing the array of
// iovcnt struct iovecs at addr in t's address space. If this contains
// addresses outside the application address range, it returns EFAULT.
//
// IovecsIOSequence is analogous to Linux's lib/iov_iter.c:import_iovec().
func (t *Task) IovecsIOSequence(addr hostarch.Addr, iovcnt int) (usermem.IOSequence, error) {
	if iovcnt < 0 || iovcnt > linux.UIO_MAXIOV {
		return usermem.IOSequence{}, linuxerr.EINVAL
	}
	if iovcnt == 0 {
		return t.ioSequence(hostarch.AddrRangeSeq{}), nil
	}
	b := make([]byte, iovcnt*linux.SizeOfIovec)
	if _, err := t.CopyInBytes(addr, b); err != nil {
		return usermem.IOSequence{}, err
	}
	iovs := linux.UnmarshalIovecs(b)
	return t.rangesIOSequence(len(iovs), func(i int) (hostarch.Addr, int64) {
		return hostarch.Addr(iovs[i].Base), int64(iovs[i].Len)
	})
}

// RangesIOSequence returns a usermem.IOSequence over an explicit list of
// destination ranges in t's address space, subject to the same checks as
// IovecsIOSequence.
func (t *Task) RangesIOSequence(ranges []hostarch.AddrRange) (usermem.IOSequence, error) {
	if len(ranges) > linux.UIO_MAXIOV {
		return usermem.IOSequence{}, linuxerr.EINVAL
	}
	for _, ar := range ranges {
		if !ar.WellFormed() {
			return usermem.IOSequence{}, linuxerr.EINVAL
		}
	}
	return t.rangesIOSequence(len(ranges), func(i int) (hostarch.Addr, int64) {
		return ranges[i].Start, int64(ranges[i].Length())
	})
}

// rangesIOSequence validates the n ranges returned by get. The total length
// is truncated to MAX_RW_COUNT, as by Linux's lib/iov_iter.c:import_iovec().
func (t *Task) rangesIOSequence(n int, get func(i int) (hostarch.Addr, int64)) (usermem.IOSequence, error) {
	ars := make([]hostarch.AddrRange, 0, n)
	var total int64
	for i := 0; i < n; i++ {
		base, length := get(i)
		if length < 0 {
			return usermem.IOSequence{}, linuxerr.EINVAL
		}
		if rem := int64(linux.MAX_RW_COUNT) - total; length > rem {
			length = rem
		}
		ar, ok := t.mm.CheckIORange(base, length)
		if !ok {
			return usermem.IOSequence{}, linuxerr.EFAULT
		}
		total += length
		ars = append(ars, ar)
	}
	return t.ioSequence(hostarch.AddrRangeSeqFromSlice(ars)), nil
}
