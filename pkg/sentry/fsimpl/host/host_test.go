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

package host

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/context/contexttest"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/sentry/vfs"
	"gvisor.dev/readpath/pkg/usermem"
)

func TestReadRegularFile(t *testing.T) {
	ctx := contexttest.Context(t)
	path := filepath.Join(t.TempDir(), "data")
	want := bytes.Repeat([]byte("0123456789"), 1000)
	if err := os.WriteFile(path, want, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	fd, err := Open(ctx, path, linux.O_RDONLY)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer fd.DecRef(ctx)
	if fd.Capability() != vfs.Seekable {
		t.Errorf("Capability got %v, want %v", fd.Capability(), vfs.Seekable)
	}

	got := make([]byte, len(want)+10)
	n, err := fd.Read(ctx, usermem.BytesIOSequence(got))
	if n != int64(len(want)) || err != nil {
		t.Fatalf("Read got (%d, %v), want (%d, nil)", n, err, len(want))
	}
	if !bytes.Equal(got[:n], want) {
		t.Errorf("Read returned different bytes")
	}
	if off, err := fd.Seek(ctx, -10, linux.SEEK_END); off != int64(len(want)-10) || err != nil {
		t.Errorf("Seek got (%d, %v), want (%d, nil)", off, err, len(want)-10)
	}
	if n, err := fd.Read(ctx, usermem.BytesIOSequence(got)); n != 10 || err != nil {
		t.Errorf("Read at end got (%d, %v), want (10, nil)", n, err)
	}
	if n, err := fd.Read(ctx, usermem.BytesIOSequence(got)); n != 0 || err != nil {
		t.Errorf("Read past end got (%d, %v), want (0, nil)", n, err)
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := contexttest.Context(t)
	dir := t.TempDir()
	if _, err := Open(ctx, filepath.Join(dir, "missing"), linux.O_RDONLY); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Errorf("Open(missing) got err %v, want ENOENT", err)
	}
	if _, err := Open(ctx, dir, linux.O_RDONLY); !linuxerr.Equals(linuxerr.EISDIR, err) {
		t.Errorf("Open(dir) got err %v, want EISDIR", err)
	}
	if _, err := Open(ctx, dir, linux.O_RDWR); !linuxerr.Equals(linuxerr.EACCES, err) {
		t.Errorf("Open(O_RDWR) got err %v, want EACCES", err)
	}
}

func TestReadHostPipe(t *testing.T) {
	ctx := contexttest.Context(t)
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	if _, err := w.Write([]byte("abc")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	w.Close()

	hfd, err := unix.Dup(int(r.Fd()))
	if err != nil {
		t.Fatalf("dup failed: %v", err)
	}
	r.Close()
	fd, err := NewFD(ctx, hfd, "pipe")
	if err != nil {
		t.Fatalf("NewFD failed: %v", err)
	}
	defer fd.DecRef(ctx)
	if fd.Capability() != vfs.StreamOnly {
		t.Errorf("Capability got %v, want %v", fd.Capability(), vfs.StreamOnly)
	}
	buf := make([]byte, 8)
	if n, err := fd.Read(ctx, usermem.BytesIOSequence(buf)); n != 3 || err != nil || string(buf[:3]) != "abc" {
		t.Errorf("Read got (%d, %v, %q), want (3, nil, %q)", n, err, buf[:n], "abc")
	}
	if _, err := fd.Seek(ctx, 0, linux.SEEK_SET); !linuxerr.Equals(linuxerr.ESPIPE, err) {
		t.Errorf("Seek got err %v, want ESPIPE", err)
	}
}

func TestReadHostFIFODoesNotBlock(t *testing.T) {
	ctx := contexttest.Context(t)
	path := filepath.Join(t.TempDir(), "fifo")
	if err := unix.Mkfifo(path, 0600); err != nil {
		t.Fatalf("Mkfifo failed: %v", err)
	}
	// Hold a writer open so that an empty FIFO is not at EOF.
	w, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("Open writer failed: %v", err)
	}
	defer unix.Close(w)

	fd, err := Open(ctx, path, linux.O_RDONLY)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer fd.DecRef(ctx)
	if fd.Capability() != vfs.StreamOnly {
		t.Errorf("Capability got %v, want %v", fd.Capability(), vfs.StreamOnly)
	}

	buf := make([]byte, 16)
	if n, err := fd.Read(ctx, usermem.BytesIOSequence(buf)); n != 0 || !linuxerr.Equals(linuxerr.ErrWouldBlock, err) {
		t.Fatalf("Read of empty FIFO got (%d, %v), want (0, %v)", n, err, linuxerr.ErrWouldBlock)
	}
	if _, err := unix.Write(w, []byte("xy")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n, err := fd.Read(ctx, usermem.BytesIOSequence(buf)); n != 2 || err != nil || string(buf[:2]) != "xy" {
		t.Errorf("Read got (%d, %v, %q), want (2, nil, %q)", n, err, buf[:n], "xy")
	}
}
