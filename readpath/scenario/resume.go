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

package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sys/unix"
	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/hostarch"
	sys "gvisor.dev/readpath/pkg/sentry/syscalls/linux"
	"gvisor.dev/readpath/readpath/config"
)

// errShortRead asks backoff.Retry for another read.
var errShortRead = errors.New("short read")

// Resume reads a file through a buffer that accepts at most one page per
// call, resuming after each short read at the offset the previous read left
// behind, until read returns 0. It then does the same with readv(2) from
// offset 0. Both passes must reconstruct the file with no gap or repeat.
func Resume(ctx context.Context, conf *config.Config) (*Report, error) {
	e := newEnv(ctx, conf, "resume")
	defer e.close()
	r := &Report{Name: "resume"}

	if conf.UnitSize > hostarch.PageSize {
		// Every read would fault before delivering anything.
		return nil, fmt.Errorf("resume needs a unit size of at most %d, got %d", hostarch.PageSize, conf.UnitSize)
	}
	data := pattern(int(conf.FileSize))
	fd, err := e.createFile("/resume", data)
	if err != nil {
		return nil, err
	}
	buf, err := e.mapPages(2, 1)
	if err != nil {
		return nil, err
	}
	iovAddr, err := e.writeIovecs([]linux.Iovec{
		{Base: uint64(buf), Len: hostarch.PageSize},
		{Base: uint64(buf + hostarch.PageSize), Len: hostarch.PageSize},
	})
	if err != nil {
		return nil, err
	}

	for _, pass := range []struct {
		name string
		read func() (int64, error)
	}{
		{"read", func() (int64, error) { return sys.Read(e.t, fd, buf, 2*hostarch.PageSize) }},
		{"readv", func() (int64, error) { return sys.Readv(e.t, fd, iovAddr, 2) }},
	} {
		if _, err := sys.Lseek(e.t, fd, 0, linux.SEEK_SET); err != nil {
			return nil, fmt.Errorf("lseek: %w", err)
		}
		var got []byte
		reads := 0
		op := func() error {
			n, err := pass.read()
			if transient(err) {
				e.t.Debugf("%s at offset %d: %v, retrying", pass.name, len(got), err)
				return err
			}
			if err != nil {
				return backoff.Permanent(fmt.Errorf("%s at offset %d: %w", pass.name, len(got), err))
			}
			reads++
			r.addRead(n)
			if n == 0 {
				return nil
			}
			chunk, err := e.copyIn(buf, int(n))
			if err != nil {
				return backoff.Permanent(err)
			}
			got = append(got, chunk...)
			off, err := e.offset(fd)
			if err != nil {
				return backoff.Permanent(err)
			}
			if off != int64(len(got)) {
				return backoff.Permanent(fmt.Errorf("%s: offset %d after %d bytes", pass.name, off, len(got)))
			}
			e.t.Debugf("%s: %d bytes, offset %d", pass.name, n, off)
			return errShortRead
		}
		if err := backoff.Retry(op, newBackOff(ctx, conf.ResumeTimeout)); err != nil {
			if errors.Is(err, errShortRead) {
				return nil, fmt.Errorf("%s: still reading after %v and %d bytes: %w", pass.name, conf.ResumeTimeout, len(got), err)
			}
			return nil, err
		}
		if !bytes.Equal(got, data) {
			return nil, fmt.Errorf("%s: reconstructed %d bytes that differ from the %d-byte file", pass.name, len(got), len(data))
		}
		r.notef("%s: %d bytes in %d calls", pass.name, len(got), reads)
	}
	return r, nil
}

// transient reports whether err only asks the caller to try again.
func transient(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR)
}

// newBackOff returns the retry policy between short reads.
func newBackOff(ctx context.Context, timeout time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 10 * time.Millisecond
	b.MaxElapsedTime = timeout
	b.Reset()
	return backoff.WithContext(b, ctx)
}
