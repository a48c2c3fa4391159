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

// Package memfs provides a flat in-memory filesystem of regular files. The
// files map is the sole source of truth for the state of the filesystem.
//
// Lock order:
//
//	Filesystem.mu
//		regularFile.dataMu
package memfs

import (
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/safemem"
	"gvisor.dev/readpath/pkg/sentry/vfs"
)

// Filesystem is a set of named regular files.
type Filesystem struct {
	// mu serializes changes to files.
	mu sync.RWMutex

	// files maps paths to regular files. Paths are opaque strings.
	files map[string]*regularFile

	nextIno atomic.Uint64
}

// NewFilesystem returns an empty Filesystem.
func NewFilesystem() *Filesystem {
	return &Filesystem{files: make(map[string]*regularFile)}
}

// regularFile is a regular file's contents.
type regularFile struct {
	ino uint64

	// dataMu protects data.
	dataMu sync.RWMutex
	data   []byte
}

// SetContents creates the file at path, or replaces its contents if it
// already exists.
func (fs *Filesystem) SetContents(path string, data []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := fs.lookupOrCreateLocked(path)
	f.dataMu.Lock()
	f.data = append([]byte(nil), data...)
	f.dataMu.Unlock()
}

// Contents returns a copy of the contents of the file at path.
func (fs *Filesystem) Contents(path string) ([]byte, error) {
	fs.mu.RLock()
	f, ok := fs.files[path]
	fs.mu.RUnlock()
	if !ok {
		return nil, linuxerr.ENOENT
	}
	f.dataMu.RLock()
	defer f.dataMu.RUnlock()
	return append([]byte(nil), f.data...), nil
}

// Paths returns the paths of all files in fs in sorted order.
func (fs *Filesystem) Paths() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	paths := make([]string, 0, len(fs.files))
	for p := range fs.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Preconditions: fs.mu must be locked for writing.
func (fs *Filesystem) lookupOrCreateLocked(path string) *regularFile {
	f, ok := fs.files[path]
	if !ok {
		f = &regularFile{ino: fs.nextIno.Add(1)}
		fs.files[path] = f
	}
	return f
}

// Open opens the file at path, consistent with open(2) for regular files.
// O_CREAT and O_TRUNC are honored.
func (fs *Filesystem) Open(ctx context.Context, path string, flags uint32) (*vfs.FileDescription, error) {
	var f *regularFile
	if flags&linux.O_CREAT != 0 {
		fs.mu.Lock()
		f = fs.lookupOrCreateLocked(path)
		fs.mu.Unlock()
	} else {
		fs.mu.RLock()
		f = fs.files[path]
		fs.mu.RUnlock()
		if f == nil {
			return nil, linuxerr.ENOENT
		}
	}
	if flags&linux.O_TRUNC != 0 && flags&linux.O_ACCMODE != linux.O_RDONLY {
		f.dataMu.Lock()
		f.data = nil
		f.dataMu.Unlock()
	}
	ctx.Debugf("memfs: open %q ino %d flags %#o", path, f.ino, flags)
	return vfs.NewFileDescription(&regularFileFD{file: f}, vfs.FileDescriptionOptions{
		Name:  path,
		Flags: flags,
	})
}

// regularFileFD implements vfs.PositionalReader, vfs.PositionalWriter and
// vfs.Sizer for a regularFile.
type regularFileFD struct {
	file *regularFile
}

// ReadToBlocksAt implements vfs.PositionalReader.ReadToBlocksAt.
func (fd *regularFileFD) ReadToBlocksAt(ctx context.Context, dsts safemem.BlockSeq, offset uint64) (uint64, error) {
	fd.file.dataMu.RLock()
	defer fd.file.dataMu.RUnlock()
	size := uint64(len(fd.file.data))
	if offset >= size {
		return 0, io.EOF
	}
	return safemem.CopySeq(dsts, safemem.BlockSeqOf(safemem.BlockFromSafeSlice(fd.file.data[offset:])))
}

// WriteFromBlocksAt implements vfs.PositionalWriter.WriteFromBlocksAt.
// Writing past the end of the file zero-fills the gap.
func (fd *regularFileFD) WriteFromBlocksAt(ctx context.Context, srcs safemem.BlockSeq, offset uint64) (uint64, error) {
	if srcs.NumBytes() == 0 {
		return 0, nil
	}
	end := offset + srcs.NumBytes()
	if end < offset {
		return 0, linuxerr.EFBIG
	}
	fd.file.dataMu.Lock()
	defer fd.file.dataMu.Unlock()
	if uint64(len(fd.file.data)) < end {
		grown := make([]byte, end)
		copy(grown, fd.file.data)
		fd.file.data = grown
	}
	return safemem.CopySeq(safemem.BlockSeqOf(safemem.BlockFromSafeSlice(fd.file.data[offset:end])), srcs)
}

// Size implements vfs.Sizer.Size.
func (fd *regularFileFD) Size(ctx context.Context) (int64, error) {
	fd.file.dataMu.RLock()
	defer fd.file.dataMu.RUnlock()
	return int64(len(fd.file.data)), nil
}
