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
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/hostarch"
	"gvisor.dev/readpath/pkg/metric"
	"gvisor.dev/readpath/pkg/sentry/kernel"
	"gvisor.dev/readpath/pkg/sentry/vfs"
	"gvisor.dev/readpath/pkg/usermem"
)

var readSyscalls = metric.NewField("syscall", []string{"read", "readv", "pread64", "preadv"})

var (
	readsMetric      = metric.MustCreateNewUint64Metric("/readpath/reads", false /* sync */, "Number of read system calls made, by system call.", readSyscalls)
	shortReadsMetric = metric.MustCreateNewUint64Metric("/readpath/short_reads", false /* sync */, "Number of read system calls that returned fewer bytes than requested.", readSyscalls)
	faultsMetric     = metric.MustCreateNewUint64Metric("/readpath/faults", false /* sync */, "Number of read system calls that failed because no complete transfer unit of the destination was accessible.", readSyscalls)
)

// Read implements Linux syscall read(2).
func Read(t *kernel.Task, fd int32, addr hostarch.Addr, size int) (int64, error) {
	file := t.GetFile(fd)
	if file == nil {
		return 0, linuxerr.EBADF
	}
	defer file.DecRef(t)

	// Check that the file is readable.
	if !file.IsReadable() {
		return 0, linuxerr.EBADF
	}

	// Check that the size is legitimate.
	if size < 0 {
		return 0, linuxerr.EINVAL
	}

	// Get the destination of the read.
	dst, err := t.SingleIOSequence(addr, size)
	if err != nil {
		return 0, err
	}

	n, err := read(t, file, dst, "read")
	return n, handleIOError(t, n != 0, err, "read", file)
}

// Readv implements Linux syscall readv(2).
func Readv(t *kernel.Task, fd int32, addr hostarch.Addr, iovcnt int) (int64, error) {
	file := t.GetFile(fd)
	if file == nil {
		return 0, linuxerr.EBADF
	}
	defer file.DecRef(t)

	// Check that the file is readable.
	if !file.IsReadable() {
		return 0, linuxerr.EBADF
	}

	// Read the iovecs that specify the destination of the read.
	dst, err := t.IovecsIOSequence(addr, iovcnt)
	if err != nil {
		return 0, err
	}

	n, err := read(t, file, dst, "readv")
	return n, handleIOError(t, n != 0, err, "readv", file)
}

// ReadvRanges is readv(2) with the destination ranges given directly rather
// than as an array of struct iovec in task memory.
func ReadvRanges(t *kernel.Task, fd int32, ranges []hostarch.AddrRange) (int64, error) {
	file := t.GetFile(fd)
	if file == nil {
		return 0, linuxerr.EBADF
	}
	defer file.DecRef(t)

	// Check that the file is readable.
	if !file.IsReadable() {
		return 0, linuxerr.EBADF
	}

	dst, err := t.RangesIOSequence(ranges)
	if err != nil {
		return 0, err
	}

	n, err := read(t, file, dst, "readv")
	return n, handleIOError(t, n != 0, err, "readv", file)
}

func read(t *kernel.Task, file *vfs.FileDescription, dst usermem.IOSequence, op string) (int64, error) {
	n, err := file.Read(t, dst)
	accountRead(t, op, dst.NumBytes(), n, err)
	return n, err
}

// Pread64 implements Linux syscall pread64(2).
func Pread64(t *kernel.Task, fd int32, addr hostarch.Addr, size int, offset int64) (int64, error) {
	file := t.GetFile(fd)
	if file == nil {
		return 0, linuxerr.EBADF
	}
	defer file.DecRef(t)

	// Check that the offset is legitimate and does not overflow.
	if offset < 0 || offset+int64(size) < 0 {
		return 0, linuxerr.EINVAL
	}

	// Check that the file is readable.
	if !file.IsReadable() {
		return 0, linuxerr.EBADF
	}

	// Check that the file is seekable.
	if file.Capability() != vfs.Seekable {
		return 0, linuxerr.ESPIPE
	}

	// Check that the size is legitimate.
	if size < 0 {
		return 0, linuxerr.EINVAL
	}

	// Get the destination of the read.
	dst, err := t.SingleIOSequence(addr, size)
	if err != nil {
		return 0, err
	}

	n, err := pread(t, file, dst, offset, "pread64")
	return n, handleIOError(t, n != 0, err, "pread64", file)
}

// Preadv implements Linux syscall preadv(2).
func Preadv(t *kernel.Task, fd int32, addr hostarch.Addr, iovcnt int, offset int64) (int64, error) {
	file := t.GetFile(fd)
	if file == nil {
		return 0, linuxerr.EBADF
	}
	defer file.DecRef(t)

	// Check that the offset is legitimate.
	if offset < 0 {
		return 0, linuxerr.EINVAL
	}

	// Check that the file is readable.
	if !file.IsReadable() {
		return 0, linuxerr.EBADF
	}

	// Check that the file is seekable.
	if file.Capability() != vfs.Seekable {
		return 0, linuxerr.ESPIPE
	}

	// Read the iovecs that specify the destination of the read.
	dst, err := t.IovecsIOSequence(addr, iovcnt)
	if err != nil {
		return 0, err
	}

	n, err := pread(t, file, dst, offset, "preadv")
	return n, handleIOError(t, n != 0, err, "preadv", file)
}

func pread(t *kernel.Task, file *vfs.FileDescription, dst usermem.IOSequence, offset int64, op string) (int64, error) {
	n, err := file.PRead(t, dst, offset)
	accountRead(t, op, dst.NumBytes(), n, err)
	return n, err
}

// accountRead updates the read metrics for a read of n out of want bytes
// that ended with err.
func accountRead(t *kernel.Task, op string, want, n int64, err error) {
	readsMetric.Increment(op)
	if n < want {
		shortReadsMetric.Increment(op)
		t.Debugf("%s: %d of %d bytes: %v", op, n, want, err)
	}
	if linuxerr.Equals(linuxerr.EFAULT, err) {
		faultsMetric.Increment(op)
	}
}
