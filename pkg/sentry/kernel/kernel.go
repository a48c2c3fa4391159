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

// Package kernel provides an emulation of the pieces of the Linux kernel that
// read(2), readv(2) and lseek(2) depend on: tasks with an address space and
// a file descriptor table, and the files they can open.
//
// Lock order:
//
//	Kernel.mu
//		FDTable.mu
package kernel

import (
	"strings"
	"sync"
	"sync/atomic"

	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/sentry/fsimpl/host"
	"gvisor.dev/readpath/pkg/sentry/fsimpl/memfs"
	"gvisor.dev/readpath/pkg/sentry/fsimpl/proc"
	"gvisor.dev/readpath/pkg/sentry/kernel/pipe"
	"gvisor.dev/readpath/pkg/sentry/mm"
	"gvisor.dev/readpath/pkg/sentry/vfs"
	"gvisor.dev/readpath/pkg/usermem"
)

const (
	// procSelfPrefix names the calling task's /proc directory.
	procSelfPrefix = "/proc/self/"

	// HostPrefix is the path prefix under which host files are visible when
	// InitKernelArgs.HostFiles is set. /host/etc/hostname names the host's
	// /etc/hostname.
	HostPrefix = "/host"
)

// InitKernelArgs holds arguments to NewKernel.
type InitKernelArgs struct {
	// Transfer controls how reads copy into task memory.
	Transfer usermem.TransferOpts

	// PipeSize is the capacity of new pipes in bytes. If zero,
	// pipe.DefaultPipeSize is used.
	PipeSize int

	// MaxFDs limits the size of each task's file descriptor table. If zero,
	// DefaultMaxFDs is used.
	MaxFDs int32

	// HostFiles makes host files readable under HostPrefix.
	HostFiles bool
}

// Kernel represents an emulated Linux kernel.
type Kernel struct {
	// args is immutable.
	args InitKernelArgs

	// fs holds every file that is not a pipe, a host file or under /proc.
	fs *memfs.Filesystem

	// mu protects tasks.
	mu    sync.Mutex
	tasks map[int32]*Task

	lastTID atomic.Int32
}

// NewKernel returns a Kernel with an empty filesystem.
func NewKernel(args InitKernelArgs) *Kernel {
	if args.PipeSize <= 0 {
		args.PipeSize = pipe.DefaultPipeSize
	}
	if args.MaxFDs <= 0 {
		args.MaxFDs = DefaultMaxFDs
	}
	return &Kernel{
		args:  args,
		fs:    memfs.NewFilesystem(),
		tasks: make(map[int32]*Task),
	}
}

// Filesystem returns the in-memory filesystem.
func (k *Kernel) Filesystem() *memfs.Filesystem {
	return k.fs
}

// TransferOpts returns the options used for reads into task memory.
func (k *Kernel) TransferOpts() usermem.TransferOpts {
	return k.args.Transfer
}

// PipeSize returns the capacity of new pipes.
func (k *Kernel) PipeSize() int {
	return k.args.PipeSize
}

// NewTask creates a task with an empty address space and file descriptor
// table. Log messages from the task are emitted through ctx's logger.
func (k *Kernel) NewTask(ctx context.Context, name string) *Task {
	t := &Task{
		Context: ctx,
		k:       k,
		tid:     k.lastTID.Add(1),
		name:    name,
		mm:      mm.NewMemoryManager(),
		fdTable: NewFDTable(k.args.MaxFDs),
	}
	t.logPrefix = taskLogPrefix(t.tid, name)
	k.mu.Lock()
	k.tasks[t.tid] = t
	k.mu.Unlock()
	t.Debugf("task created")
	return t
}

// TaskWithID returns the task with the given thread ID, or nil.
func (k *Kernel) TaskWithID(tid int32) *Task {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tasks[tid]
}

// exitTask removes t from k.
func (k *Kernel) exitTask(t *Task) {
	k.mu.Lock()
	delete(k.tasks, t.tid)
	k.mu.Unlock()
}

// OpenAt resolves path for t and opens it with the given open(2) flags.
// Paths under /proc/self/ name t's proc entries, paths under HostPrefix name
// host files if enabled, and all other paths name files in k's filesystem.
func (k *Kernel) OpenAt(t *Task, path string, flags uint32) (*vfs.FileDescription, error) {
	switch {
	case strings.HasPrefix(path, procSelfPrefix):
		return proc.Open(t, t.mm, strings.TrimPrefix(path, procSelfPrefix), flags)
	case path == HostPrefix || strings.HasPrefix(path, HostPrefix+"/"):
		if !k.args.HostFiles {
			return nil, linuxerr.ENOENT
		}
		hostPath := strings.TrimPrefix(path, HostPrefix)
		if hostPath == "" {
			hostPath = "/"
		}
		return host.Open(t, hostPath, flags)
	default:
		return k.fs.Open(t, path, flags)
	}
}

// NewPipe returns the read and write ends of a new pipe.
func (k *Kernel) NewPipe() (*vfs.FileDescription, *vfs.FileDescription, error) {
	return pipe.ReaderWriterPair(k.args.PipeSize)
}
