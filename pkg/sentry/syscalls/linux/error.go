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

// Package linux provides the syscall entry points of the read path: read(2),
// readv(2), pread64(2), preadv(2) and lseek(2), together with the calls used
// to set up their arguments.
package linux

import (
	"io"
	"sync"
	"time"

	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/log"
	"gvisor.dev/readpath/pkg/metric"
	"gvisor.dev/readpath/pkg/sentry/kernel"
	"gvisor.dev/readpath/pkg/sentry/vfs"
)

var (
	partialResultMetric = metric.MustCreateNewUint64Metric("/syscalls/partial_result", true /* sync */, "Whether or not a partial result has occurred for this sandbox.")
	partialResultOnce   sync.Once

	// partialResultLogger reports unexpected partial-result errors without
	// flooding the log when an application retries in a loop.
	partialResultLogger = log.BasicRateLimitedLogger(time.Minute)
)

// handleIOError handles special error cases for partial results. For some
// errors, we may consume the error and return only the partial read/write.
//
// op and f are used only for logging.
func handleIOError(t *kernel.Task, partialResult bool, err error, op string, f *vfs.FileDescription) error {
	switch err {
	case nil:
		// Typical successful syscall.
		return nil
	case io.EOF:
		// EOF is always consumed. If this is a partial read/write
		// (result != 0), the application will see that, otherwise
		// they will see 0.
		return nil
	}

	if !partialResult {
		// Typical syscall error.
		return err
	}

	switch {
	case linuxerr.Equals(linuxerr.EINTR, err):
		// Syscall interrupted, but completed a partial
		// read/write. Like ErrWouldBlock, since we have a
		// partial read/write, we consume the error and return
		// the partial result.
		return nil
	case linuxerr.Equals(linuxerr.EFAULT, err):
		// EFAULT is only shown the user if nothing was
		// read/written. If we read something (this case), they see
		// a partial read/write. They will then presumably try again
		// with an incremented buffer, which will EFAULT with
		// result == 0.
		return nil
	case linuxerr.Equals(linuxerr.EPIPE, err):
		// Writes to a pipe will return EPIPE if the other side is
		// gone. The partial write is returned. EPIPE will be
		// returned on the next call.
		return nil
	case linuxerr.Equals(linuxerr.ErrWouldBlock, err):
		// Syscall would block, but completed a partial read/write.
		// Since we have a partial read/write, we consume
		// ErrWouldBlock, returning the partial result.
		return nil
	}

	// An unknown error is encountered with a partial read/write.
	partialResultLogger.Warningf("Invalid request partialResult %v and err (type %T) %v for %s operation on %q, %T (task %d)", partialResult, err, err, op, f.Name(), f.Impl(), t.ThreadID())
	partialResultOnce.Do(func() { partialResultMetric.Increment() })
	return nil
}
