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

// Package host provides read-only access to files on the host.
//
// Regular host files are read with preadv(2) at the description's cursor.
// Other host files (pipes, character devices) are read as streams with
// readv(2).
package host

import (
	"golang.org/x/sys/unix"
	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/log"
	"gvisor.dev/readpath/pkg/safemem"
	"gvisor.dev/readpath/pkg/sentry/hostfd"
	"gvisor.dev/readpath/pkg/sentry/vfs"
)

// Open opens the host file at path for reading and returns a
// FileDescription for it. Only read-only access is supported.
func Open(ctx context.Context, path string, flags uint32) (*vfs.FileDescription, error) {
	if flags&linux.O_ACCMODE != linux.O_RDONLY {
		return nil, linuxerr.EACCES
	}
	// O_NONBLOCK keeps both the open of a FIFO without writers and reads
	// from an empty stream from blocking. It has no effect on regular files.
	hfd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, translate(err)
	}
	fd, err := NewFD(ctx, hfd, path)
	if err != nil {
		_ = unix.Close(hfd)
		return nil, err
	}
	return fd, nil
}

// NewFD returns a FileDescription that takes ownership of the host file
// descriptor hfd.
func NewFD(ctx context.Context, hfd int, name string) (*vfs.FileDescription, error) {
	var st unix.Stat_t
	if err := unix.Fstat(hfd, &st); err != nil {
		return nil, translate(err)
	}
	base := fileDescription{fd: int32(hfd), name: name}
	var impl any
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		impl = &regularFD{base}
	case unix.S_IFDIR:
		return nil, linuxerr.EISDIR
	default:
		// Reads from an empty stream return ErrWouldBlock rather than
		// blocking the calling task.
		if err := unix.SetNonblock(hfd, true); err != nil {
			return nil, translate(err)
		}
		impl = &streamFD{base}
	}
	ctx.Debugf("host: imported %q (fd %d, mode %#o)", name, hfd, st.Mode)
	return vfs.NewFileDescription(impl, vfs.FileDescriptionOptions{
		Name:  name,
		Flags: linux.O_RDONLY,
	})
}

// fileDescription holds a host file descriptor.
type fileDescription struct {
	// fd is the host file descriptor. fd is immutable.
	fd   int32
	name string
}

// Release implements vfs.Releaser.Release.
func (f *fileDescription) Release(ctx context.Context) {
	if err := unix.Close(int(f.fd)); err != nil {
		log.Warningf("host: failed to close %q (fd %d): %v", f.name, f.fd, err)
	}
}

// regularFD implements vfs.PositionalReader and vfs.Sizer for a regular host
// file.
type regularFD struct {
	fileDescription
}

// ReadToBlocksAt implements vfs.PositionalReader.ReadToBlocksAt.
func (f *regularFD) ReadToBlocksAt(ctx context.Context, dsts safemem.BlockSeq, offset uint64) (uint64, error) {
	if int64(offset) < 0 {
		return 0, linuxerr.EINVAL
	}
	r := hostfd.GetReaderAt(f.fd, int64(offset))
	n, err := r.ReadToBlocks(dsts)
	hostfd.PutReaderAt(r)
	return n, err
}

// Size implements vfs.Sizer.Size.
func (f *regularFD) Size(ctx context.Context) (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.fd), &st); err != nil {
		return 0, translate(err)
	}
	return st.Size, nil
}

// streamFD implements vfs.StreamReader for a host pipe, socket or device.
type streamFD struct {
	fileDescription
}

// ReadToBlocks implements vfs.StreamReader.ReadToBlocks.
func (f *streamFD) ReadToBlocks(ctx context.Context, dsts safemem.BlockSeq) (uint64, error) {
	r := hostfd.GetReaderAt(f.fd, -1)
	n, err := r.ReadToBlocks(dsts)
	hostfd.PutReaderAt(r)
	return n, err
}

func translate(err error) error {
	if errno, ok := err.(unix.Errno); ok {
		return linuxerr.ErrorFromUnix(errno)
	}
	return err
}
