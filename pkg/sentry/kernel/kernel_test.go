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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/context/contexttest"
	"gvisor.dev/readpath/pkg/errors"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/hostarch"
	"gvisor.dev/readpath/pkg/sentry/mm"
	"gvisor.dev/readpath/pkg/sentry/vfs"
)

func newTask(t *testing.T, args InitKernelArgs) *Task {
	t.Helper()
	k := NewKernel(args)
	task := k.NewTask(contexttest.Context(t), t.Name())
	t.Cleanup(task.Exit)
	return task
}

func newFile(t *testing.T) *vfs.FileDescription {
	t.Helper()
	fd, err := vfs.NewFileDescription(&vfs.StaticData{Data: "x"}, vfs.FileDescriptionOptions{Name: "static"})
	if err != nil {
		t.Fatalf("NewFileDescription failed: %v", err)
	}
	return fd
}

func TestFDTableAllocatesLowest(t *testing.T) {
	task := newTask(t, InitKernelArgs{})
	fdt := task.FDTable()

	files := []*vfs.FileDescription{newFile(t), newFile(t), newFile(t)}
	fds, err := fdt.NewFDs(task, 0, files, FDFlags{})
	if err != nil {
		t.Fatalf("NewFDs failed: %v", err)
	}
	if diff := cmp.Diff([]int32{0, 1, 2}, fds); diff != "" {
		t.Errorf("NewFDs mismatch (-want +got):\n%s", diff)
	}
	for _, f := range files {
		f.DecRef(task)
	}

	removed := fdt.Remove(1)
	if removed == nil {
		t.Fatalf("Remove(1) returned nil")
	}
	removed.DecRef(task)
	if fdt.Remove(1) != nil {
		t.Errorf("second Remove(1) returned a file")
	}

	fd, err := task.NewFDFrom(0, newFile(t), FDFlags{})
	if err != nil || fd != 1 {
		t.Errorf("NewFDFrom got (%d, %v), want (1, nil)", fd, err)
	}
	if got := fdt.Size(); got != 3 {
		t.Errorf("Size got %d, want 3", got)
	}
}

func TestFDTableLimit(t *testing.T) {
	task := newTask(t, InitKernelArgs{MaxFDs: 2})
	fdt := task.FDTable()
	if _, err := fdt.NewFDs(task, 0, []*vfs.FileDescription{newFile(t), newFile(t), newFile(t)}, FDFlags{}); !linuxerr.Equals(linuxerr.EMFILE, err) {
		t.Errorf("NewFDs past the limit got err %v, want EMFILE", err)
	}
	if got := fdt.Size(); got != 0 {
		t.Errorf("failed NewFDs left %d descriptors", got)
	}
	if _, err := fdt.NewFDs(task, -1, []*vfs.FileDescription{newFile(t)}, FDFlags{}); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("NewFDs(-1) got err %v, want EINVAL", err)
	}
}

func TestGetHoldsReference(t *testing.T) {
	task := newTask(t, InitKernelArgs{})
	file := newFile(t)
	fd, err := task.NewFDFrom(0, file, FDFlags{CloseOnExec: true})
	if err != nil {
		t.Fatalf("NewFDFrom failed: %v", err)
	}
	file.DecRef(task)

	got, flags := task.FDTable().Get(fd)
	if got != file || !flags.CloseOnExec {
		t.Fatalf("Get got (%v, %+v)", got, flags)
	}
	// Removing the descriptor leaves the reference taken by Get.
	task.FDTable().Remove(fd).DecRef(task)
	if _, err := got.Seek(task, 0, linux.SEEK_SET); err != nil {
		t.Errorf("Seek on a file held by Get failed: %v", err)
	}
	got.DecRef(task)
	if task.GetFile(fd) != nil {
		t.Errorf("GetFile returned a closed descriptor")
	}
}

func TestOpenAtRouting(t *testing.T) {
	dir := t.TempDir()
	hostFile := filepath.Join(dir, "f")
	if err := os.WriteFile(hostFile, []byte("host"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	for _, test := range []struct {
		name      string
		hostFiles bool
		path      string
		flags     uint32
		wantErr   *errors.Error
		wantCaps  vfs.Capability
	}{
		{name: "memfs create", path: "/tmp/a", flags: linux.O_RDWR | linux.O_CREAT, wantCaps: vfs.Seekable},
		{name: "memfs missing", path: "/tmp/b", flags: linux.O_RDONLY, wantErr: linuxerr.ENOENT},
		{name: "proc mem", path: "/proc/self/mem", flags: linux.O_RDONLY, wantCaps: vfs.Seekable},
		{name: "proc missing", path: "/proc/self/environ", flags: linux.O_RDONLY, wantErr: linuxerr.ENOENT},
		{name: "host disabled", path: HostPrefix + hostFile, flags: linux.O_RDONLY, wantErr: linuxerr.ENOENT},
		{name: "host enabled", hostFiles: true, path: HostPrefix + hostFile, flags: linux.O_RDONLY, wantCaps: vfs.Seekable},
	} {
		t.Run(test.name, func(t *testing.T) {
			task := newTask(t, InitKernelArgs{HostFiles: test.hostFiles})
			fd, err := task.Kernel().OpenAt(task, test.path, test.flags)
			if test.wantErr != nil {
				if !linuxerr.Equals(test.wantErr, err) {
					t.Errorf("OpenAt got err %v, want %v", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenAt failed: %v", err)
			}
			defer fd.DecRef(task)
			if fd.Capability() != test.wantCaps {
				t.Errorf("Capability got %v, want %v", fd.Capability(), test.wantCaps)
			}
		})
	}
}

func TestIovecsIOSequence(t *testing.T) {
	task := newTask(t, InitKernelArgs{})
	addr, err := task.MemoryManager().MMap(task, mm.MMapOpts{Length: hostarch.PageSize, Perms: hostarch.ReadWrite})
	if err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	iovs := []linux.Iovec{
		{Base: uint64(addr) + 64, Len: 4},
		{Base: uint64(addr) + 128, Len: 0},
		{Base: uint64(addr) + 256, Len: 8},
	}
	if _, err := task.CopyOutBytes(addr, linux.MarshalIovecs(iovs)); err != nil {
		t.Fatalf("CopyOutBytes failed: %v", err)
	}

	seq, err := task.IovecsIOSequence(addr, len(iovs))
	if err != nil {
		t.Fatalf("IovecsIOSequence failed: %v", err)
	}
	if got := seq.NumBytes(); got != 12 {
		t.Errorf("NumBytes got %d, want 12", got)
	}
	if got := seq.Addrs.NumRanges(); got != 3 {
		t.Errorf("NumRanges got %d, want 3", got)
	}

	if _, err := task.IovecsIOSequence(addr, linux.UIO_MAXIOV+1); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("IovecsIOSequence(UIO_MAXIOV+1) got err %v, want EINVAL", err)
	}
	if _, err := task.IovecsIOSequence(addr+hostarch.PageSize, 1); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("IovecsIOSequence of unmapped iovecs got err %v, want EFAULT", err)
	}
	bad := linux.MarshalIovecs([]linux.Iovec{{Base: uint64(addr), Len: 1 << 63}})
	if _, err := task.CopyOutBytes(addr, bad); err != nil {
		t.Fatalf("CopyOutBytes failed: %v", err)
	}
	if _, err := task.IovecsIOSequence(addr, 1); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("IovecsIOSequence with negative length got err %v, want EINVAL", err)
	}
}

func TestSingleIOSequence(t *testing.T) {
	task := newTask(t, InitKernelArgs{})
	if _, err := task.SingleIOSequence(^hostarch.Addr(0)-4, 16); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("SingleIOSequence with overflow got err %v, want EFAULT", err)
	}
	seq, err := task.SingleIOSequence(0x10000, 16)
	if err != nil || seq.NumBytes() != 16 {
		t.Errorf("SingleIOSequence got (%d bytes, %v), want (16, nil)", seq.NumBytes(), err)
	}
}

func TestTaskRegistry(t *testing.T) {
	k := NewKernel(InitKernelArgs{})
	ctx := contexttest.Context(t)
	a := k.NewTask(ctx, "a")
	b := k.NewTask(ctx, "b")
	if a.ThreadID() == b.ThreadID() {
		t.Fatalf("tasks share thread ID %d", a.ThreadID())
	}
	if k.TaskWithID(b.ThreadID()) != b {
		t.Errorf("TaskWithID did not find b")
	}
	b.Exit()
	if k.TaskWithID(b.ThreadID()) != nil {
		t.Errorf("TaskWithID found b after Exit")
	}
	a.Exit()
}
