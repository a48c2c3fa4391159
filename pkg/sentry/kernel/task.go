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
	"fmt"

	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/log"
	"gvisor.dev/readpath/pkg/sentry/mm"
	"gvisor.dev/readpath/pkg/sentry/vfs"
)

// Task represents a thread of execution with its own address space and file
// descriptor table.
//
// Task implements context.Context; log messages are prefixed with the
// task's thread ID and name.
type Task struct {
	// Context is the context the task was created with.
	context.Context

	// k, tid, name, mm and fdTable are immutable.
	k       *Kernel
	tid     int32
	name    string
	mm      *mm.MemoryManager
	fdTable *FDTable

	logPrefix string
}

func taskLogPrefix(tid int32, name string) string {
	return fmt.Sprintf("[% 4d:%s] ", tid, name)
}

// Kernel returns the Kernel containing t.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// ThreadID returns t's thread ID.
func (t *Task) ThreadID() int32 {
	return t.tid
}

// Name returns t's name.
func (t *Task) Name() string {
	return t.name
}

// MemoryManager returns t's MemoryManager.
func (t *Task) MemoryManager() *mm.MemoryManager {
	return t.mm
}

// FDTable returns t's FDTable.
func (t *Task) FDTable() *FDTable {
	return t.fdTable
}

// GetFile is a convenience wrapper for t.FDTable().Get.
//
// Precondition: same as FDTable.Get.
func (t *Task) GetFile(fd int32) *vfs.FileDescription {
	f, _ := t.fdTable.Get(fd)
	return f
}

// NewFDFrom is a convenience wrapper for t.FDTable().NewFDs with a single
// file.
func (t *Task) NewFDFrom(fd int32, file *vfs.FileDescription, flags FDFlags) (int32, error) {
	fds, err := t.fdTable.NewFDs(t, fd, []*vfs.FileDescription{file}, flags)
	if err != nil {
		return -1, err
	}
	return fds[0], nil
}

// Exit closes all of t's file descriptors and removes it from its kernel.
func (t *Task) Exit() {
	t.fdTable.RemoveAll(t)
	t.k.exitTask(t)
	t.Debugf("task exited")
}

// Debugf implements log.Logger.Debugf.
func (t *Task) Debugf(format string, v ...any) {
	if t.IsLogging(log.Debug) {
		t.Context.Debugf(t.logPrefix+format, v...)
	}
}

// Infof implements log.Logger.Infof.
func (t *Task) Infof(format string, v ...any) {
	if t.IsLogging(log.Info) {
		t.Context.Infof(t.logPrefix+format, v...)
	}
}

// Warningf implements log.Logger.Warningf.
func (t *Task) Warningf(format string, v ...any) {
	t.Context.Warningf(t.logPrefix+format, v...)
}
