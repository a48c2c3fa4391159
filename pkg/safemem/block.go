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

// Package safemem provides the Block and BlockSeq types, which describe
// windows onto backing memory, and the Reader and Writer interfaces that
// move bytes between them.
package safemem

import (
	"fmt"
)

// A Block is a range of contiguous bytes, similar to []byte but with the
// added property that the memory it refers to may be owned by an address
// space rather than by the holder of the Block.
//
// Blocks are immutable and may be copied by value. The zero value of Block
// represents an empty range.
type Block struct {
	data []byte
}

// BlockFromSafeSlice returns a Block equivalent to slice.
func BlockFromSafeSlice(slice []byte) Block {
	return Block{data: slice}
}

// DropFirst returns a Block equivalent to b, but with the first n bytes
// omitted. If n > b.Len(), DropFirst returns an empty Block.
//
// Preconditions: n >= 0.
func (b Block) DropFirst(n int) Block {
	if n < 0 {
		panic(fmt.Sprintf("invalid n: %d", n))
	}
	return b.DropFirst64(uint64(n))
}

// DropFirst64 is equivalent to DropFirst but takes a uint64.
func (b Block) DropFirst64(n uint64) Block {
	if n >= uint64(len(b.data)) {
		return Block{}
	}
	return Block{data: b.data[n:]}
}

// TakeFirst returns a Block equivalent to the first n bytes of b. If n >
// b.Len(), TakeFirst returns a copy of b.
//
// Preconditions: n >= 0.
func (b Block) TakeFirst(n int) Block {
	if n < 0 {
		panic(fmt.Sprintf("invalid n: %d", n))
	}
	return b.TakeFirst64(uint64(n))
}

// TakeFirst64 is equivalent to TakeFirst but takes a uint64.
func (b Block) TakeFirst64(n uint64) Block {
	if n == 0 {
		return Block{}
	}
	if n >= uint64(len(b.data)) {
		return b
	}
	return Block{data: b.data[:n]}
}

// ToSlice returns a []byte equivalent to b.
func (b Block) ToSlice() []byte {
	return b.data
}

// Len returns the length of b in bytes.
func (b Block) Len() int {
	return len(b.data)
}

// String implements fmt.Stringer.String.
func (b Block) String() string {
	if len(b.data) == 0 {
		return "<nil>"
	}
	return fmt.Sprintf("[%p:%d]", &b.data[0], len(b.data))
}

// Copy copies src.Len() or dst.Len() bytes, whichever is less, from src to
// dst and returns the number of bytes copied.
//
// If src and dst overlap, the data stored in dst is unspecified.
func Copy(dst, src Block) (int, error) {
	return copy(dst.data, src.data), nil
}
