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

// Package hostfd provides I/O with host file descriptors.
package hostfd

import (
	"io"
	"sync"

	"golang.org/x/sys/unix"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/safemem"
)

// ReaderAt implements safemem.Reader by reading from a host file descriptor.
// ReaderAts should be obtained by calling GetReaderAt.
type ReaderAt struct {
	fd     int32
	offset int64
}

var rpool = sync.Pool{
	New: func() any {
		return &ReaderAt{}
	},
}

// GetReaderAt returns a ReaderAt that reads from the given host file
// descriptor, starting at the given offset. If offset is -1, the host file
// descriptor's offset is used instead. Users are responsible for ensuring
// that fd remains valid for the lifetime of the returned ReaderAt, and must
// call PutReaderAt when it is no longer needed.
func GetReaderAt(fd int32, offset int64) *ReaderAt {
	r := rpool.Get().(*ReaderAt)
	*r = ReaderAt{
		fd:     fd,
		offset: offset,
	}
	return r
}

// PutReaderAt releases a ReaderAt returned by a previous call to GetReaderAt
// that is no longer in use.
func PutReaderAt(r *ReaderAt) {
	rpool.Put(r)
}

// ReadToBlocks implements safemem.Reader.ReadToBlocks. It returns io.EOF if
// the host reports end of file before any byte is read.
func (r *ReaderAt) ReadToBlocks(dsts safemem.BlockSeq) (uint64, error) {
	if dsts.IsEmpty() {
		return 0, nil
	}
	n, err := safemem.FromVecReaderFunc{ReadVec: r.readVec}.ReadToBlocks(dsts)
	if r.offset >= 0 {
		r.offset += int64(n)
	}
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func (r *ReaderAt) readVec(dsts [][]byte) (int64, error) {
	for {
		var (
			n   int
			err error
		)
		if r.offset >= 0 {
			n, err = unix.Preadv(int(r.fd), dsts, r.offset)
		} else {
			n, err = unix.Readv(int(r.fd), dsts)
		}
		if err == unix.EINTR {
			continue
		}
		if errno, ok := err.(unix.Errno); ok {
			if errno == unix.EAGAIN {
				return int64(n), linuxerr.ErrWouldBlock
			}
			return int64(n), linuxerr.ErrorFromUnix(errno)
		}
		return int64(n), err
	}
}
