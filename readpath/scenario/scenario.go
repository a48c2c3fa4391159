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

// Package scenario runs the read path end to end on an in-memory kernel:
// a read that stops at an inaccessible page, a vectored read from a pipe
// whose second iovec straddles a mapping boundary, a one-byte read of
// /proc/self/mem, and a reader that resumes after every short read.
package scenario

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/hostarch"
	"gvisor.dev/readpath/pkg/sentry/kernel"
	sys "gvisor.dev/readpath/pkg/sentry/syscalls/linux"
	"gvisor.dev/readpath/readpath/config"
)

// Report describes a scenario run that met all of its expectations.
type Report struct {
	// Name is the scenario name.
	Name string

	// Reads is the number of read system calls made.
	Reads int

	// Bytes is the sum of the byte counts those calls returned.
	Bytes int64

	// Details holds one line per observation worth printing.
	Details []string
}

func (r *Report) addRead(n int64) {
	r.Reads++
	r.Bytes += n
}

func (r *Report) notef(format string, v ...any) {
	r.Details = append(r.Details, fmt.Sprintf(format, v...))
}

// Func runs a scenario.
type Func func(ctx context.Context, conf *config.Config) (*Report, error)

// Scenario is a named Func.
type Scenario struct {
	Name     string
	Synopsis string
	Run      Func
}

// All lists every scenario, in the order they are run by default.
var All = []Scenario{
	{Name: "partial-read", Synopsis: "read two pages into a buffer whose second page is inaccessible", Run: PartialRead},
	{Name: "readv-fault", Synopsis: "readv from a pipe into an iovec that straddles an inaccessible page", Run: ReadvFault},
	{Name: "proc-mem", Synopsis: "read one byte of the task's own memory through /proc/self/mem", Run: ProcMem},
	{Name: "resume", Synopsis: "read a file to the end, resuming after every short read", Run: Resume},
}

// Lookup returns the scenario with the given name.
func Lookup(name string) (Scenario, bool) {
	for _, s := range All {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// env is a task on a fresh kernel.
type env struct {
	t *kernel.Task
}

func newEnv(ctx context.Context, conf *config.Config, name string) *env {
	k := kernel.NewKernel(conf.KernelArgs())
	return &env{t: k.NewTask(ctx, name)}
}

func (e *env) close() {
	e.t.Exit()
}

// mapPages maps n pages and makes the last inaccessible pages of them
// PROT_NONE.
func (e *env) mapPages(n, inaccessible int) (hostarch.Addr, error) {
	addr, err := sys.Mmap(e.t, 0, uint64(n*hostarch.PageSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, fmt.Errorf("mmap: %w", err)
	}
	if inaccessible > 0 {
		start := addr + hostarch.Addr((n-inaccessible)*hostarch.PageSize)
		if err := sys.Mprotect(e.t, start, uint64(inaccessible*hostarch.PageSize), unix.PROT_NONE); err != nil {
			return 0, fmt.Errorf("mprotect: %w", err)
		}
	}
	return addr, nil
}

// createFile creates a file with the given contents and opens it.
func (e *env) createFile(path string, data []byte) (int32, error) {
	e.t.Kernel().Filesystem().SetContents(path, data)
	fd, err := sys.Openat(e.t, path, linux.O_RDONLY)
	if err != nil {
		return 0, fmt.Errorf("open %q: %w", path, err)
	}
	return fd, nil
}

func (e *env) writeIovecs(iovs []linux.Iovec) (hostarch.Addr, error) {
	addr, err := e.mapPages(1, 0)
	if err != nil {
		return 0, err
	}
	if _, err := e.t.CopyOutBytes(addr, linux.MarshalIovecs(iovs)); err != nil {
		return 0, fmt.Errorf("writing iovecs: %w", err)
	}
	return addr, nil
}

func (e *env) copyIn(addr hostarch.Addr, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := e.t.CopyInBytes(addr, b); err != nil {
		return nil, fmt.Errorf("reading %d bytes at %v: %w", n, addr, err)
	}
	return b, nil
}

func (e *env) offset(fd int32) (int64, error) {
	off, err := sys.Lseek(e.t, fd, 0, linux.SEEK_CUR)
	if err != nil {
		return 0, fmt.Errorf("lseek: %w", err)
	}
	return off, nil
}

// describe returns the mapping containing addr, as /proc/self/maps would
// show it.
func (e *env) describe(addr hostarch.Addr) string {
	ar, perms, ok := e.t.MemoryManager().MappingAt(addr)
	if !ok {
		return fmt.Sprintf("%v unmapped", addr)
	}
	return fmt.Sprintf("%v in %08x-%08x %s", addr, uint64(ar.Start), uint64(ar.End), perms)
}

// completedUnits returns the number of bytes of an n-byte accessible prefix
// of a destination range that a read reports, given the unit size.
func completedUnits(n, unitSize int64) int64 {
	return n / unitSize * unitSize
}

// PartialRead reads two pages of a file into a buffer whose second page is
// inaccessible, first with read(2) and then, from the start of the file,
// with readv(2) and one iovec per page. Both must report the same count and
// leave the file offset equal to it.
func PartialRead(ctx context.Context, conf *config.Config) (*Report, error) {
	e := newEnv(ctx, conf, "partial-read")
	defer e.close()
	r := &Report{Name: "partial-read"}

	size := conf.FileSize
	if size < 2*hostarch.PageSize {
		size = 2 * hostarch.PageSize
	}
	data := pattern(int(size))
	fd, err := e.createFile("/partial-read", data)
	if err != nil {
		return nil, err
	}
	buf, err := e.mapPages(2, 1)
	if err != nil {
		return nil, err
	}
	r.notef("buffer %s", e.describe(buf))
	r.notef("buffer %s", e.describe(buf+hostarch.PageSize))

	want := completedUnits(hostarch.PageSize, conf.UnitSize)
	check := func(op string, n int64, err error) error {
		if want == 0 {
			if !errors.Is(err, unix.EFAULT) {
				return fmt.Errorf("%s: got (%d, %v), want EFAULT", op, n, err)
			}
			r.notef("%s: EFAULT, unit of %d bytes straddles the inaccessible page", op, conf.UnitSize)
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		r.addRead(n)
		if n != want {
			return fmt.Errorf("%s: got %d bytes, want %d", op, n, want)
		}
		off, err := e.offset(fd)
		if err != nil {
			return err
		}
		if off != n {
			return fmt.Errorf("%s: offset %d after reading %d bytes", op, off, n)
		}
		got, err := e.copyIn(buf, int(n))
		if err != nil {
			return err
		}
		if !bytes.Equal(got, data[:n]) {
			return fmt.Errorf("%s: buffer does not hold the first %d bytes of the file", op, n)
		}
		r.notef("%s: %d bytes, offset %d", op, n, off)
		return nil
	}

	n, err := sys.Read(e.t, fd, buf, 2*hostarch.PageSize)
	if err := check("read", n, err); err != nil {
		return nil, err
	}

	if _, err := sys.Lseek(e.t, fd, 0, linux.SEEK_SET); err != nil {
		return nil, fmt.Errorf("lseek: %w", err)
	}
	iovAddr, err := e.writeIovecs([]linux.Iovec{
		{Base: uint64(buf), Len: hostarch.PageSize},
		{Base: uint64(buf + hostarch.PageSize), Len: hostarch.PageSize},
	})
	if err != nil {
		return nil, err
	}
	n, err = sys.Readv(e.t, fd, iovAddr, 2)
	if err := check("readv", n, err); err != nil {
		return nil, err
	}
	return r, nil
}

// readvFaultMessage is written to the pipe by ReadvFault.
const readvFaultMessage = "abcdefgh\x00"

// ReadvFault fills a pipe, closes its write end, and reads it with two
// iovecs: four accessible bytes, then four bytes of which only the first two
// precede an inaccessible page. Only completed units are reported, but the
// pipe drops every byte it copied.
func ReadvFault(ctx context.Context, conf *config.Config) (*Report, error) {
	e := newEnv(ctx, conf, "readv-fault")
	defer e.close()
	r := &Report{Name: "readv-fault"}

	fds, err := sys.Pipe(e.t)
	if err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	buf, err := e.mapPages(2, 1)
	if err != nil {
		return nil, err
	}
	if _, err := e.t.CopyOutBytes(buf, []byte(readvFaultMessage)); err != nil {
		return nil, err
	}
	if n, err := sys.Write(e.t, fds[1], buf, len(readvFaultMessage)); err != nil || n != int64(len(readvFaultMessage)) {
		return nil, fmt.Errorf("write: got (%d, %v), want %d bytes", n, err, len(readvFaultMessage))
	}
	if err := sys.Close(e.t, fds[1]); err != nil {
		return nil, fmt.Errorf("close: %w", err)
	}

	// Clear what the write left in the buffer.
	if _, err := e.t.CopyOutBytes(buf, make([]byte, len(readvFaultMessage))); err != nil {
		return nil, err
	}
	straddle := buf + hostarch.PageSize - 2
	iovAddr, err := e.writeIovecs([]linux.Iovec{
		{Base: uint64(buf), Len: 4},
		{Base: uint64(straddle), Len: 4},
	})
	if err != nil {
		return nil, err
	}
	r.notef("second iovec %s", e.describe(straddle))

	n, err := sys.Readv(e.t, fds[0], iovAddr, 2)
	if err != nil {
		return nil, fmt.Errorf("readv: %w", err)
	}
	r.addRead(n)
	want := 4 + completedUnits(2, conf.UnitSize)
	if n != want {
		return nil, fmt.Errorf("readv: got %d bytes, want %d", n, want)
	}
	first, err := e.copyIn(buf, 4)
	if err != nil {
		return nil, err
	}
	second, err := e.copyIn(straddle, 2)
	if err != nil {
		return nil, err
	}
	if string(first) != "abcd" || string(second) != "ef" {
		return nil, fmt.Errorf("readv: iovecs hold %q and %q, want %q and %q", first, second, "abcd", "ef")
	}
	r.notef("readv: %d bytes reported, %q and %q written", n, first, second)

	// The six bytes copied are gone from the pipe; the rest follows.
	rest := buf + 64
	n, err = sys.Read(e.t, fds[0], rest, 16)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	r.addRead(n)
	got, err := e.copyIn(rest, int(n))
	if err != nil {
		return nil, err
	}
	if want := readvFaultMessage[6:]; string(got) != want {
		return nil, fmt.Errorf("read: got %q, want %q", got, want)
	}
	r.notef("read: %q left in the pipe", got)
	return r, nil
}

// ProcMem writes a byte into a buffer, seeks /proc/self/mem to it, and reads
// it back with a one-byte read.
func ProcMem(ctx context.Context, conf *config.Config) (*Report, error) {
	e := newEnv(ctx, conf, "proc-mem")
	defer e.close()
	r := &Report{Name: "proc-mem"}

	buf, err := e.mapPages(1, 0)
	if err != nil {
		return nil, err
	}
	target := buf + 0x123
	if _, err := e.t.CopyOutBytes(target, []byte{'!'}); err != nil {
		return nil, err
	}
	fd, err := sys.Openat(e.t, "/proc/self/mem", linux.O_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("open /proc/self/mem: %w", err)
	}
	defer sys.Close(e.t, fd)

	off, err := sys.Lseek(e.t, fd, int64(target), linux.SEEK_SET)
	if err != nil {
		return nil, fmt.Errorf("lseek: %w", err)
	}
	r.notef("seek to %s", e.describe(hostarch.Addr(off)))

	dst := buf + 0x800
	n, err := sys.Read(e.t, fd, dst, 1)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	r.addRead(n)
	if n != 1 {
		return nil, fmt.Errorf("read: got %d bytes, want 1", n)
	}
	got, err := e.copyIn(dst, 1)
	if err != nil {
		return nil, err
	}
	if got[0] != '!' {
		return nil, fmt.Errorf("read: got %q, want %q", got[0], '!')
	}
	r.notef("read: %q", got[0])
	return r, nil
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}
