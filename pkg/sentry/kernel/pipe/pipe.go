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

// Package pipe provides an in-memory implementation of a unidirectional
// pipe.
//
// Pipes never block: a read from an empty pipe that still has writers, and a
// write to a full pipe, return linuxerr.ErrWouldBlock.
package pipe

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/safemem"
	"gvisor.dev/readpath/pkg/sentry/vfs"
)

const (
	// DefaultPipeSize is the system-wide default size of a pipe in bytes.
	DefaultPipeSize = 65536

	// atomicIOBytes is the maximum number of bytes that the pipe will
	// guarantee atomic reads or writes atomically.
	// (Linux: include/uapi/linux/limits.h:PIPE_BUF)
	atomicIOBytes = 4096
)

// Pipe is an encapsulation of a platform-independent pipe.
// It manages a buffered byte queue shared between a reader/writer
// pair.
type Pipe struct {
	// max is the maximum size of the pipe in bytes. When this max has been
	// reached, writers will get ErrWouldBlock.
	max int

	// The number of active readers and writers for this pipe.
	readers atomic.Int32
	writers atomic.Int32

	// mu protects all pipe internal state below.
	mu sync.Mutex

	// data is the buffered byte queue.
	data []byte
}

// NewPipe initializes and returns a pipe.
//
// N.B. The size will be bounded.
func NewPipe(sizeBytes int) *Pipe {
	if sizeBytes < atomicIOBytes {
		sizeBytes = atomicIOBytes
	}
	return &Pipe{max: sizeBytes}
}

// ReaderWriterPair returns read-only and write-only FileDescriptions for a
// new pipe, as for pipe(2).
func ReaderWriterPair(sizeBytes int) (*vfs.FileDescription, *vfs.FileDescription, error) {
	p := NewPipe(sizeBytes)
	r, err := p.Open(linux.O_RDONLY)
	if err != nil {
		return nil, nil, err
	}
	w, err := p.Open(linux.O_WRONLY)
	if err != nil {
		return nil, nil, err
	}
	return r, w, nil
}

// Open returns a new FileDescription for p with the access mode in flags.
func (p *Pipe) Open(flags uint32) (*vfs.FileDescription, error) {
	end := &FD{pipe: p}
	switch flags & linux.O_ACCMODE {
	case linux.O_RDONLY:
		end.readable = true
	case linux.O_WRONLY:
		end.writable = true
	case linux.O_RDWR:
		end.readable, end.writable = true, true
	default:
		return nil, linuxerr.EINVAL
	}
	fd, err := vfs.NewFileDescription(end, vfs.FileDescriptionOptions{
		Name:  fmt.Sprintf("pipe:[%p]", p),
		Flags: flags,
	})
	if err != nil {
		return nil, err
	}
	if end.readable {
		p.rOpen()
	}
	if end.writable {
		p.wOpen()
	}
	return fd, nil
}

// read reads data from the pipe into dsts and returns the number of bytes
// read, or returns ErrWouldBlock if the pipe is empty. Every byte copied to
// dsts is removed from the pipe.
func (p *Pipe) read(dsts safemem.BlockSeq) (uint64, error) {
	// Don't block for a zero-length read even if the pipe is empty.
	if dsts.NumBytes() == 0 {
		return 0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// If there is nothing to read at the moment but there is a writer, tell the
	// caller to block.
	if len(p.data) == 0 {
		if !p.HasWriters() {
			// There are no writers, return EOF.
			return 0, io.EOF
		}
		return 0, linuxerr.ErrWouldBlock
	}
	n, err := safemem.CopySeq(dsts, safemem.BlockSeqOf(safemem.BlockFromSafeSlice(p.data)))
	p.data = p.data[n:]
	if len(p.data) == 0 {
		p.data = nil
	}
	return n, err
}

// write writes data from srcs into the pipe and returns the number of bytes
// written. If no bytes are written because the pipe is full (or has less than
// atomicIOBytes free capacity), write returns ErrWouldBlock.
func (p *Pipe) write(srcs safemem.BlockSeq) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.HasReaders() {
		return 0, linuxerr.EPIPE
	}

	// POSIX requires that a write smaller than atomicIOBytes (PIPE_BUF) be
	// atomic, but requires no atomicity for writes larger than this. We
	// write at most atomicIOBytes at a time if we can't service the write
	// in its entirety.
	free := uint64(p.max - len(p.data))
	canWrite := srcs.NumBytes()
	if canWrite > free {
		if free < atomicIOBytes {
			return 0, linuxerr.ErrWouldBlock
		}
		canWrite = atomicIOBytes
	}

	buf := make([]byte, canWrite)
	n, err := safemem.CopySeq(safemem.BlockSeqOf(safemem.BlockFromSafeSlice(buf)), srcs)
	p.data = append(p.data, buf[:n]...)
	if n < srcs.NumBytes() && err == nil {
		// Partial write due to full pipe.
		err = linuxerr.ErrWouldBlock
	}
	return n, err
}

// rOpen signals a new reader of the pipe.
func (p *Pipe) rOpen() {
	p.readers.Add(1)
}

// wOpen signals a new writer of the pipe.
func (p *Pipe) wOpen() {
	p.writers.Add(1)
}

// rClose signals that a reader has closed their end of the pipe.
func (p *Pipe) rClose() {
	if newReaders := p.readers.Add(-1); newReaders < 0 {
		panic(fmt.Sprintf("Refcounting bug, pipe has negative readers: %v", newReaders))
	}
}

// wClose signals that a writer has closed their end of the pipe.
func (p *Pipe) wClose() {
	if newWriters := p.writers.Add(-1); newWriters < 0 {
		panic(fmt.Sprintf("Refcounting bug, pipe has negative writers: %v.", newWriters))
	}
}

// HasReaders returns whether the pipe has any active readers.
func (p *Pipe) HasReaders() bool {
	return p.readers.Load() > 0
}

// HasWriters returns whether the pipe has any active writers.
func (p *Pipe) HasWriters() bool {
	return p.writers.Load() > 0
}

// QueuedSize returns the number of bytes buffered in the pipe.
func (p *Pipe) QueuedSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.data)
}

// FD is one end of a Pipe. It is the implementation behind the
// vfs.FileDescriptions returned by Pipe.Open.
type FD struct {
	pipe     *Pipe
	readable bool
	writable bool
}

// ReadToBlocks implements vfs.StreamReader.ReadToBlocks.
func (fd *FD) ReadToBlocks(ctx context.Context, dsts safemem.BlockSeq) (uint64, error) {
	if !fd.readable {
		return 0, linuxerr.EBADF
	}
	return fd.pipe.read(dsts)
}

// WriteFromBlocks implements vfs.StreamWriter.WriteFromBlocks.
func (fd *FD) WriteFromBlocks(ctx context.Context, srcs safemem.BlockSeq) (uint64, error) {
	if !fd.writable {
		return 0, linuxerr.EBADF
	}
	return fd.pipe.write(srcs)
}

// Release implements vfs.Releaser.Release.
func (fd *FD) Release(ctx context.Context) {
	if fd.readable {
		fd.pipe.rClose()
	}
	if fd.writable {
		fd.pipe.wClose()
	}
	ctx.Debugf("pipe end closed: readers=%d writers=%d queued=%d", fd.pipe.readers.Load(), fd.pipe.writers.Load(), fd.pipe.QueuedSize())
}

// Pipe returns the pipe fd is an end of.
func (fd *FD) Pipe() *Pipe {
	return fd.pipe
}
