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

// Package linux contains the constants and types needed to interface with a
// Linux kernel.
package linux

import (
	"encoding/binary"
)

// Constants for open(2).
const (
	O_RDONLY   = 00000000
	O_WRONLY   = 00000001
	O_RDWR     = 00000002
	O_ACCMODE  = 00000003
	O_CREAT    = 00000100
	O_TRUNC    = 00001000
	O_NONBLOCK = 00004000
	O_CLOEXEC  = 02000000
)

// Whence argument to lseek(2), from include/uapi/linux/fs.h.
const (
	SEEK_SET = 0
	SEEK_CUR = 1
	SEEK_END = 2
)

// UIO_MAXIOV is the maximum number of iovecs accepted by readv(2) and
// friends, from include/uapi/linux/uio.h.
const UIO_MAXIOV = 1024

// MAX_RW_COUNT is the maximum size in bytes of a single read or write.
// Reads and writes that exceed this size may be silently truncated.
// (Linux: include/linux/fs.h:MAX_RW_COUNT)
const MAX_RW_COUNT = 0x7ffff000

// SizeOfIovec is the size of struct iovec on 64-bit architectures.
const SizeOfIovec = 16

// Iovec is struct iovec, from include/uapi/linux/uio.h.
type Iovec struct {
	Base uint64
	Len  uint64
}

// UnmarshalIovecs decodes little-endian struct iovecs from src.
//
// Preconditions: len(src) is a multiple of SizeOfIovec.
func UnmarshalIovecs(src []byte) []Iovec {
	iovs := make([]Iovec, len(src)/SizeOfIovec)
	for i := range iovs {
		b := src[i*SizeOfIovec:]
		iovs[i] = Iovec{
			Base: binary.LittleEndian.Uint64(b[0:8]),
			Len:  binary.LittleEndian.Uint64(b[8:16]),
		}
	}
	return iovs
}

// MarshalIovecs encodes iovs as little-endian struct iovecs.
func MarshalIovecs(iovs []Iovec) []byte {
	dst := make([]byte, len(iovs)*SizeOfIovec)
	for i, iov := range iovs {
		b := dst[i*SizeOfIovec:]
		binary.LittleEndian.PutUint64(b[0:8], iov.Base)
		binary.LittleEndian.PutUint64(b[8:16], iov.Len)
	}
	return dst
}
