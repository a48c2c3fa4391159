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

// Package vfs implements open file descriptions: the per-open read cursor,
// the way each kind of file supplies its bytes, and the accounting that ties
// the two together.
//
// Lock order:
//
//	FileDescription.mu
//		mm.MemoryManager.mappingMu
//		pipe.Pipe.mu
package vfs

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/usermem"
)

// Capability describes how a FileDescription's source may be addressed.
type Capability int

const (
	// Seekable sources have a read cursor and can be read at any offset.
	Seekable Capability = iota

	// StreamOnly sources have no cursor; each read consumes what it returns.
	StreamOnly
)

// String implements fmt.Stringer.String.
func (c Capability) String() string {
	switch c {
	case Seekable:
		return "seekable"
	case StreamOnly:
		return "stream"
	default:
		return fmt.Sprintf("Capability(%d)", int(c))
	}
}

// readMode selects how a FileDescription obtains the bytes for a read. It is
// chosen once, in NewFileDescription, from the interfaces impl implements.
type readMode int

const (
	// readRendered reads from a buffer produced by DynamicBytesSource.Generate,
	// consistent with Linux's fs/seq_file.c.
	readRendered readMode = iota

	// readPositional reads at an absolute offset with
	// PositionalReader.ReadToBlocksAt.
	readPositional

	// readStream reads with StreamReader.ReadToBlocks.
	readStream
)

func (m readMode) String() string {
	switch m {
	case readRendered:
		return "rendered"
	case readPositional:
		return "positional"
	case readStream:
		return "stream"
	default:
		return fmt.Sprintf("readMode(%d)", int(m))
	}
}

// FileDescriptionOptions contains options to NewFileDescription.
type FileDescriptionOptions struct {
	// Name is used in log messages.
	Name string

	// Flags is the set of flags passed to open(2). Only the access mode
	// (O_RDONLY, O_WRONLY or O_RDWR) is interpreted.
	Flags uint32
}

// A FileDescription represents an open file description, which is the entity
// referred to by a file descriptor (POSIX.1-2017 3.258 "Open File
// Description").
//
// FileDescriptions are reference-counted. Unless otherwise specified, all
// FileDescription methods require that a reference is held.
//
// FileDescription is analogous to Linux's struct file.
type FileDescription struct {
	// refs is the reference count. When it reaches zero, impl is released.
	refs atomic.Int64

	// name, flags, mode, caps and impl are immutable.
	name  string
	flags uint32
	mode  readMode
	caps  Capability
	impl  any

	// mu serializes reads, writes and seeks, so that computing and storing
	// the new cursor is a single critical section.
	mu sync.Mutex

	// off is the read cursor. It is unused for StreamOnly descriptions.
	//
	// off is protected by mu.
	off int64

	// buf holds the rendered contents of a readRendered description, and
	// lastRead is the offset at which the last Read, PRead, or Seek ended.
	//
	// buf and lastRead are protected by mu.
	buf      bytes.Buffer
	lastRead int64

	// released is set once the last reference is dropped.
	//
	// released is protected by mu.
	released bool
}

// NewFileDescription returns a FileDescription for impl with a single
// reference. impl must implement at least one of DynamicBytesSource,
// PositionalReader and StreamReader, checked in that order; otherwise
// NewFileDescription returns EINVAL.
func NewFileDescription(impl any, opts FileDescriptionOptions) (*FileDescription, error) {
	fd := &FileDescription{
		name:  opts.Name,
		flags: opts.Flags,
		impl:  impl,
	}
	switch impl.(type) {
	case DynamicBytesSource:
		fd.mode, fd.caps = readRendered, Seekable
	case PositionalReader:
		fd.mode, fd.caps = readPositional, Seekable
	case StreamReader:
		fd.mode, fd.caps = readStream, StreamOnly
	default:
		return nil, linuxerr.EINVAL
	}
	fd.refs.Store(1)
	return fd, nil
}

// Name returns the name fd was created with.
func (fd *FileDescription) Name() string {
	return fd.name
}

// Capability returns whether fd is Seekable or StreamOnly.
func (fd *FileDescription) Capability() Capability {
	return fd.caps
}

// Impl returns the object fd was created with.
func (fd *FileDescription) Impl() any {
	return fd.impl
}

// IsReadable returns true if fd was opened for reading.
func (fd *FileDescription) IsReadable() bool {
	return fd.flags&linux.O_ACCMODE != linux.O_WRONLY
}

// IsWritable returns true if fd was opened for writing.
func (fd *FileDescription) IsWritable() bool {
	return fd.flags&linux.O_ACCMODE != linux.O_RDONLY
}

// IncRef increments fd's reference count.
func (fd *FileDescription) IncRef() {
	if fd.refs.Add(1) <= 1 {
		panic(fmt.Sprintf("FileDescription %q: IncRef on released file", fd.name))
	}
}

// TryIncRef increments fd's reference count if it is not zero.
func (fd *FileDescription) TryIncRef() bool {
	for {
		r := fd.refs.Load()
		if r <= 0 {
			return false
		}
		if fd.refs.CompareAndSwap(r, r+1) {
			return true
		}
	}
}

// DecRef decrements fd's reference count, releasing impl when it reaches
// zero.
func (fd *FileDescription) DecRef(ctx context.Context) {
	switch r := fd.refs.Add(-1); {
	case r < 0:
		panic(fmt.Sprintf("FileDescription %q: DecRef below zero", fd.name))
	case r > 0:
		return
	}
	fd.mu.Lock()
	fd.released = true
	fd.buf.Reset()
	fd.mu.Unlock()
	if r, ok := fd.impl.(Releaser); ok {
		r.Release(ctx)
	}
	ctx.Debugf("Released %s file %q", fd.mode, fd.name)
}

// Offset returns fd's read cursor.
func (fd *FileDescription) Offset() int64 {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.off
}

// Read reads from fd into dst at the cursor, and advances the cursor by the
// number of bytes reported. It is analogous to read(2) and readv(2).
func (fd *FileDescription) Read(ctx context.Context, dst usermem.IOSequence) (int64, error) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if fd.released {
		return 0, linuxerr.EBADF
	}
	if fd.mode == readStream {
		return fd.readStreamLocked(ctx, dst)
	}
	before := fd.off
	n, err := fd.preadLocked(ctx, dst, before)
	fd.reconcileCursorLocked(before, n)
	return n, err
}

// PRead reads from fd into dst at offset without using or changing the
// cursor. It is analogous to pread64(2) and preadv(2).
func (fd *FileDescription) PRead(ctx context.Context, dst usermem.IOSequence, offset int64) (int64, error) {
	if fd.caps == StreamOnly {
		return 0, linuxerr.ESPIPE
	}
	if offset < 0 {
		return 0, linuxerr.EINVAL
	}
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if fd.released {
		return 0, linuxerr.EBADF
	}
	return fd.preadLocked(ctx, dst, offset)
}

// preadLocked reads from a Seekable fd at offset.
//
// Preconditions: fd.mu must be locked. fd.mode != readStream.
func (fd *FileDescription) preadLocked(ctx context.Context, dst usermem.IOSequence, offset int64) (int64, error) {
	switch fd.mode {
	case readRendered:
		return fd.preadRenderedLocked(ctx, dst, offset)
	case readPositional:
		return dst.CopyOutFrom(ctx, &positionalReader{
			ctx: ctx,
			src: fd.impl.(PositionalReader),
			off: offset,
		})
	default:
		panic(fmt.Sprintf("unexpected read mode %v", fd.mode))
	}
}

// readStreamLocked reads from a StreamOnly fd. There is no cursor: the
// stream drops exactly the bytes it copies, including bytes that land in a
// transfer unit that later faults.
//
// Preconditions: fd.mu must be locked.
func (fd *FileDescription) readStreamLocked(ctx context.Context, dst usermem.IOSequence) (int64, error) {
	return dst.CopyOutFrom(ctx, &streamReader{
		ctx: ctx,
		src: fd.impl.(StreamReader),
	})
}

// reconcileCursorLocked moves the cursor of a Seekable fd to before +
// reported. Bytes that were physically written to the destination but not
// reported are read again by the next read.
//
// Preconditions: fd.mu must be locked.
func (fd *FileDescription) reconcileCursorLocked(before, reported int64) {
	if fd.caps != Seekable {
		return
	}
	fd.off = before + reported
}

// Seek changes fd's cursor and returns the new offset. It is analogous to
// lseek(2).
func (fd *FileDescription) Seek(ctx context.Context, offset int64, whence int32) (int64, error) {
	if fd.caps == StreamOnly {
		return 0, linuxerr.ESPIPE
	}
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if fd.released {
		return 0, linuxerr.EBADF
	}
	if fd.mode == readRendered {
		return fd.seekRenderedLocked(ctx, offset, whence)
	}

	switch whence {
	case linux.SEEK_SET:
		// Use offset as given.
	case linux.SEEK_CUR:
		offset += fd.off
	case linux.SEEK_END:
		sz, ok := fd.impl.(Sizer)
		if !ok {
			return 0, linuxerr.EINVAL
		}
		size, err := sz.Size(ctx)
		if err != nil {
			return 0, err
		}
		offset += size
	default:
		return 0, linuxerr.EINVAL
	}
	if offset < 0 {
		return 0, linuxerr.EINVAL
	}
	fd.off = offset
	return offset, nil
}

// Write writes src to fd. Stream sources consume src from the front;
// positional sources are written at the cursor, which is then advanced. It
// is analogous to write(2).
func (fd *FileDescription) Write(ctx context.Context, src usermem.IOSequence) (int64, error) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if fd.released {
		return 0, linuxerr.EBADF
	}
	switch w := fd.impl.(type) {
	case StreamWriter:
		return src.CopyInTo(ctx, &streamWriter{ctx: ctx, dst: w})
	case PositionalWriter:
		n, err := src.CopyInTo(ctx, &positionalWriter{ctx: ctx, dst: w, off: fd.off})
		fd.off += n
		return n, err
	default:
		return 0, linuxerr.EINVAL
	}
}
