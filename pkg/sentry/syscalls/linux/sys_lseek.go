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

package linux

import (
	"gvisor.dev/readpath/pkg/abi/linux"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/sentry/kernel"
)

// Lseek implements linux syscall lseek(2).
func Lseek(t *kernel.Task, fd int32, offset int64, whence int32) (int64, error) {
	file := t.GetFile(fd)
	if file == nil {
		return 0, linuxerr.EBADF
	}
	defer file.DecRef(t)

	if whence < linux.SEEK_SET || whence > linux.SEEK_END {
		return 0, linuxerr.EINVAL
	}

	offset, serr := file.Seek(t, offset, whence)
	if err := handleIOError(t, false /* partialResult */, serr, "lseek", file); err != nil {
		return 0, err
	}
	return offset, nil
}
