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

package vfs

import (
	"bytes"
	"io"

	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/safemem"
	"gvisor.dev/readpath/pkg/usermem"
)

// DynamicBytesSource represents a data source whose contents are produced in
// full by Generate, and regenerated when necessary, consistent with Linux's
// fs/seq_file.c:single_open().
type DynamicBytesSource interface {
	// Generate writes the file's contents to buf.
	Generate(ctx context.Context, buf *bytes.Buffer) error
}

// StaticData implements DynamicBytesSource over a static string.
type StaticData struct {
	Data string
}

// Generate implements DynamicBytesSource.
func (s *StaticData) Generate(ctx context.Context, buf *bytes.Buffer) error {
	buf.WriteString(s.Data)
	return nil
}

// PositionalReader represents a data source that can be read at any offset
// without rendering it first.
type PositionalReader interface {
	// ReadToBlocksAt reads up to dsts.NumBytes() bytes starting at offset
	// into dsts. It returns io.EOF, or a count shorter than dsts.NumBytes()
	// with a nil error, when offset reaches the end of the source.
	ReadToBlocksAt(ctx context.Context, dsts safemem.BlockSeq, offset uint64) (uint64, error)
}

// StreamReader represents a data source without a position.
type StreamReader interface {
	// ReadToBlocks reads up to dsts.NumBytes() bytes into dsts. Every byte it
	// returns is consumed from the stream.
	ReadToBlocks(ctx context.Context, dsts safemem.BlockSeq) (uint64, error)
}

// StreamWriter represents a data sink without a position.
type StreamWriter interface {
	// WriteFromBlocks writes up to srcs.NumBytes() bytes from srcs.
	WriteFromBlocks(ctx context.Context, srcs safemem.BlockSeq) (uint64, error)
}

// PositionalWriter represents a data sink that can be written at any offset.
type PositionalWriter interface {
	// WriteFromBlocksAt writes up to srcs.NumBytes() bytes from srcs starting
	// at offset.
	WriteFromBlocksAt(ctx context.Context, srcs safemem.BlockSeq, offset uint64) (uint64, error)
}

// Sizer is implemented by positional sources that support SEEK_END.
type Sizer interface {
	// Size returns the current size of the source in bytes.
	Size(ctx context.Context) (int64, error)
}

// Releaser is implemented by sources that hold resources which must be
// released when the last reference on their FileDescription is dropped.
type Releaser interface {
	// Release is called when the last reference on the FileDescription is
	// dropped.
	Release(ctx context.Context)
}

// positionalReader adapts a PositionalReader to safemem.Reader. off advances
// by every byte read, whether or not the caller later reports it.
type positionalReader struct {
	ctx context.Context
	src PositionalReader
	off int64
}

// ReadToBlocks implements safemem.Reader.ReadToBlocks.
func (r *positionalReader) ReadToBlocks(dsts safemem.BlockSeq) (uint64, error) {
	n, err := r.src.ReadToBlocksAt(r.ctx, dsts, uint64(r.off))
	r.off += int64(n)
	return n, err
}

// streamReader adapts a StreamReader to safemem.Reader.
type streamReader struct {
	ctx context.Context
	src StreamReader
}

// ReadToBlocks implements safemem.Reader.ReadToBlocks.
func (r *streamReader) ReadToBlocks(dsts safemem.BlockSeq) (uint64, error) {
	return r.src.ReadToBlocks(r.ctx, dsts)
}

// streamWriter adapts a StreamWriter to safemem.Writer.
type streamWriter struct {
	ctx context.Context
	dst StreamWriter
}

// WriteFromBlocks implements safemem.Writer.WriteFromBlocks.
func (w *streamWriter) WriteFromBlocks(srcs safemem.BlockSeq) (uint64, error) {
	return w.dst.WriteFromBlocks(w.ctx, srcs)
}

// positionalWriter adapts a PositionalWriter to safemem.Writer.
type positionalWriter struct {
	ctx context.Context
	dst PositionalWriter
	off int64
}

// WriteFromBlocks implements safemem.Writer.WriteFromBlocks.
func (w *positionalWriter) WriteFromBlocks(srcs safemem.BlockSeq) (uint64, error) {
	n, err := w.dst.WriteFromBlocksAt(w.ctx, srcs, uint64(w.off))
	w.off += int64(n)
	return n, err
}

// preadRenderedLocked reads the rendered contents of fd at offset.
//
// Preconditions: fd.mu must be locked. fd.mode == readRendered.
func (fd *FileDescription) preadRenderedLocked(ctx context.Context, dst usermem.IOSequence, offset int64) (int64, error) {
	// Regenerate the buffer if it's empty, or before pread() at a new offset.
	// Compare fs/seq_file.c:seq_read() => traverse().
	switch {
	case offset != fd.lastRead:
		fd.buf.Reset()
		fallthrough
	case fd.buf.Len() == 0:
		if err := fd.impl.(DynamicBytesSource).Generate(ctx, &fd.buf); err != nil {
			fd.buf.Reset()
			// fd.off is not updated in this case.
			fd.lastRead = 0
			return 0, err
		}
	}
	bs := fd.buf.Bytes()
	if offset >= int64(len(bs)) {
		return 0, io.EOF
	}
	n, err := dst.CopyOutFrom(ctx, &safemem.BlockSeqReader{
		Blocks: safemem.BlockSeqOf(safemem.BlockFromSafeSlice(bs[offset:])),
	})
	fd.lastRead = offset + n
	return n, err
}

// seekRenderedLocked implements Seek for fd.mode == readRendered.
//
// Preconditions: fd.mu must be locked.
func (fd *FileDescription) seekRenderedLocked(ctx context.Context, offset int64, whence int32) (int64, error) {
	switch whence {
	case linux.SEEK_SET:
		// Use offset as given.
	case linux.SEEK_CUR:
		offset += fd.off
	default:
		// fs/seq_file:seq_lseek() rejects SEEK_END etc.
		return 0, linuxerr.EINVAL
	}
	if offset < 0 {
		return 0, linuxerr.EINVAL
	}
	if offset != fd.lastRead {
		// Regenerate the file's contents immediately. Compare
		// fs/seq_file.c:seq_lseek() => traverse().
		fd.buf.Reset()
		if err := fd.impl.(DynamicBytesSource).Generate(ctx, &fd.buf); err != nil {
			fd.buf.Reset()
			fd.off = 0
			fd.lastRead = 0
			return 0, err
		}
		fd.lastRead = offset
	}
	fd.off = offset
	return offset, nil
}
