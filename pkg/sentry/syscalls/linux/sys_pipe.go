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
	"gvisor.dev/readpath/pkg/sentry/kernel"
	"gvisor.dev/readpath/pkg/sentry/vfs"
)

// Pipe implements Linux syscall pipe(2). It returns the read end followed by
// the write end.
func Pipe(t *kernel.Task) ([2]int32, error) {
	r, w, err := t.Kernel().NewPipe()
	if err != nil {
		return [2]int32{}, err
	}
	defer r.DecRef(t)
	defer w.DecRef(t)

	fds, err := t.FDTable().NewFDs(t, 0, []*vfs.FileDescription{r, w}, kernel.FDFlags{})
	if err != nil {
		return [2]int32{}, err
	}
	return [2]int32{fds[0], fds[1]}, nil
}
