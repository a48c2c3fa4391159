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
	"bytes"
	"fmt"
	"sort"
	"sync"

	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/sentry/vfs"
)

// DefaultMaxFDs is the default limit on the number of open file descriptors
// per table, matching the usual RLIMIT_NOFILE soft limit.
const DefaultMaxFDs = 1024

// FDFlags define flags for an individual descriptor.
type FDFlags struct {
	// CloseOnExec indicates the descriptor should be closed on exec.
	CloseOnExec bool
}

// FDFlagsFromOpenFlags returns the descriptor flags requested by the flags
// passed to open(2).
func FDFlagsFromOpenFlags(flags uint32) FDFlags {
	return FDFlags{CloseOnExec: flags&linux.O_CLOEXEC != 0}
}

// descriptor holds the details about a file descriptor, namely a pointer to
// the file itself and the descriptor flags.
//
// Note that this is immutable and can only be changed via operations on the
// descriptorTable.
type descriptor struct {
	file  *vfs.FileDescription
	flags FDFlags
}

// FDTable is used to manage FileDescription references and flags.
type FDTable struct {
	// end is one past the largest descriptor the table will allocate. end is
	// immutable.
	end int32

	// mu protects below.
	mu sync.Mutex

	// descriptorTable holds descriptors. Each holds a reference on its file.
	descriptorTable map[int32]descriptor
}

// NewFDTable returns an empty table that allocates descriptors below
// maxFDs.
func NewFDTable(maxFDs int32) *FDTable {
	if maxFDs <= 0 {
		maxFDs = DefaultMaxFDs
	}
	return &FDTable{
		end:             maxFDs,
		descriptorTable: make(map[int32]descriptor),
	}
}

// Size returns the number of file descriptor slots currently allocated.
func (f *FDTable) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.descriptorTable)
}

// String is a stringer for FDTable.
func (f *FDTable) String() string {
	var b bytes.Buffer
	for _, fd := range f.GetFDs() {
		f.mu.Lock()
		d, ok := f.descriptorTable[fd]
		f.mu.Unlock()
		if ok {
			fmt.Fprintf(&b, "\tfd:%d => name %s\n", fd, d.file.Name())
		}
	}
	return b.String()
}

// NewFDs allocates new FDs guaranteed to be the lowest number available
// greater than or equal to the fd parameter. All files will share the set
// flags. Success is guaranteed to be all or none. On success the table holds
// a new reference on each file.
func (f *FDTable) NewFDs(ctx context.Context, fd int32, files []*vfs.FileDescription, flags FDFlags) (fds []int32, err error) {
	if fd < 0 {
		// Don't accept negative FDs.
		return nil, linuxerr.EINVAL
	}
	if fd >= f.end {
		return nil, linuxerr.EMFILE
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Install all entries.
	for i := fd; i < f.end && len(fds) < len(files); i++ {
		if _, ok := f.descriptorTable[i]; !ok {
			f.descriptorTable[i] = descriptor{file: files[len(fds)], flags: flags}
			fds = append(fds, i)
		}
	}

	// Failure? Unwind existing FDs.
	if len(fds) < len(files) {
		for _, i := range fds {
			delete(f.descriptorTable, i)
		}
		return nil, linuxerr.EMFILE
	}

	for _, file := range files {
		file.IncRef()
	}
	return fds, nil
}

// Get returns a reference to the file and the flags for the FD or nil if no
// file is defined for the given fd.
//
// N.B. Callers are required to use DecRef when they are done.
func (f *FDTable) Get(fd int32) (*vfs.FileDescription, FDFlags) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.descriptorTable[fd]
	if !ok {
		return nil, FDFlags{}
	}
	if !d.file.TryIncRef() {
		return nil, FDFlags{}
	}
	return d.file, d.flags
}

// GetFDs returns a sorted list of valid fds.
func (f *FDTable) GetFDs() []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	fds := make([]int32, 0, len(f.descriptorTable))
	for fd := range f.descriptorTable {
		fds = append(fds, fd)
	}
	sort.Slice(fds, func(i, j int) bool { return fds[i] < fds[j] })
	return fds
}

// Remove removes an FD from f. It returns the removed file, whose table
// reference the caller now owns, or nil if fd was not open.
func (f *FDTable) Remove(fd int32) *vfs.FileDescription {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.descriptorTable[fd]
	if !ok {
		return nil
	}
	delete(f.descriptorTable, fd)
	return d.file
}

// RemoveAll closes every descriptor in f.
func (f *FDTable) RemoveAll(ctx context.Context) {
	for _, fd := range f.GetFDs() {
		if file := f.Remove(fd); file != nil {
			file.DecRef(ctx)
		}
	}
}
