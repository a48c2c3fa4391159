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
	"gvisor.dev/readpath/pkg/sentry/kernel"
)

// Openat implements Linux syscall openat(2) relative to the root directory.
func Openat(t *kernel.Task, path string, flags uint32) (int32, error) {
	file, err := t.Kernel().OpenAt(t, path, flags)
	if err != nil {
		return 0, err
	}
	defer file.DecRef(t)

	return t.NewFDFrom(0, file, kernel.FDFlagsFromOpenFlags(flags))
}

// Close implements Linux syscall close(2).
func Close(t *kernel.Task, fd int32) error {
	// Note that Remove provides a reference on the file. It is still active
	// until we drop the final reference below.
	file := t.FDTable().Remove(fd)
	if file == nil {
		return linuxerr.EBADF
	}
	file.DecRef(t)
	return nil
}

// Write implements Linux syscall write(2).
func Write(t *kernel.Task, fd int32, addr hostarch.Addr, size int) (int64, error) {
	file := t.GetFile(fd)
	if file == nil {
		return 0, linuxerr.EBADF
	}
	defer file.DecRef(t)

	// Check that the file is writable.
	if !file.IsWritable() {
		return 0, linuxerr.EBADF
	}

	// Check that the size is legitimate.
	if size < 0 {
		return 0, linuxerr.EINVAL
	}

	// Get the source of the write.
	src, err := t.SingleIOSequence(addr, size)
	if err != nil {
		return 0, err
	}

	n, err := file.Write(t, src)
	return n, handleIOError(t, n != 0, err, "write", file)
}
