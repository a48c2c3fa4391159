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


package hostarch

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// collect walks ars with Head and Tail and returns every range it visits,
// checking the running byte and range counts on the way.
func collect(t *testing.T, ars AddrRangeSeq) []AddrRange {
	t.Helper()
	var (
		got       []AddrRange
		remaining = ars.NumBytes()
		ranges    = ars.NumRanges()
	)
	for ; !ars.IsEmpty(); ars = ars.Tail() {
		if ars.NumBytes() != remaining {
			t.Errorf("after %d ranges NumBytes got %d, want %d", len(got), ars.NumBytes(), remaining)
		}
		if n := ars.NumRanges(); n != ranges-len(got) {
			t.Errorf("after %d ranges NumRanges got %d, want %d", len(got), n, ranges-len(got))
		}
		head := ars.Head()
		got = append(got, head)
		remaining -= int64(head.Length())
	}
	if remaining != 0 {
		t.Errorf("walk left %d bytes unaccounted", remaining)
	}
	return got
}

func TestAddrRangeSeqWalk(t *testing.T) {
	for _, test := range []struct {
		name   string
		ranges []AddrRange
	}{
		{
			name: "no vectors",
		},
		{
			name:   "one zero-length vector",
			ranges: []AddrRange{{0x4000, 0x4000}},
		},
		{
			name:   "one byte",
			ranges: []AddrRange{{0x4000, 0x4001}},
		},
		{
			name:   "one page",
			ranges: []AddrRange{{0x4000, 0x5000}},
		},
		{
			name: "vector straddling a page boundary",
			ranges: []AddrRange{
				{0x4000, 0x4004},
				{0x5ffe, 0x6002},
				{0x7000, 0x7003},
			},
		},
		{
			name: "zero-length vectors interleaved",
			ranges: []AddrRange{
				{0x1000, 0x1000},
				{0x2000, 0x2008},
				{0x3000, 0x3000},
				{0x3000, 0x3000},
				{0x4000, 0x4010},
				{0x5000, 0x5000},
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			got := collect(t, AddrRangeSeqFromSlice(test.ranges))
			if diff := cmp.Diff(test.ranges, got); diff != "" {
				t.Errorf("walk mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAddrRangeSeqOf(t *testing.T) {
	ar := AddrRange{0x8000, 0x8100}
	ars := AddrRangeSeqOf(ar)
	if ars.NumRanges() != 1 || ars.NumBytes() != 0x100 || ars.Head() != ar {
		t.Errorf("AddrRangeSeqOf(%v) got %v", ar, ars)
	}
	if !ars.Tail().IsEmpty() {
		t.Errorf("Tail of a single range got %v, want empty", ars.Tail())
	}
}

// TestAddrRangeSeqDropFirst consumes a vector layout the way the copy path
// does after a partial transfer and checks what is left.
func TestAddrRangeSeqDropFirst(t *testing.T) {
	layout := []AddrRange{
		{0x1000, 0x1004},
		{0x2000, 0x2000},
		{0x3000, 0x3004},
		{0x4000, 0x4004},
	}
	for _, test := range []struct {
		drop int64
		want []AddrRange
	}{
		{
			drop: 0,
			want: layout,
		},
		{
			drop: 3,
			want: []AddrRange{{0x1003, 0x1004}, {0x2000, 0x2000}, {0x3000, 0x3004}, {0x4000, 0x4004}},
		},
		{
			drop: 4,
			want: []AddrRange{{0x2000, 0x2000}, {0x3000, 0x3004}, {0x4000, 0x4004}},
		},
		{
			drop: 6,
			want: []AddrRange{{0x3002, 0x3004}, {0x4000, 0x4004}},
		},
		{
			drop: 12,
			want: nil,
		},
		{
			drop: 100,
			want: nil,
		},
	} {
		ars := AddrRangeSeqFromSlice(layout).DropFirst64(test.drop)
		if diff := cmp.Diff(test.want, collect(t, ars)); diff != "" {
			t.Errorf("DropFirst64(%d) mismatch (-want +got):\n%s", test.drop, diff)
		}
	}

	var empty AddrRangeSeq
	if got := empty.DropFirst(1); !got.IsEmpty() {
		t.Errorf("DropFirst(1) of an empty sequence got %v", got)
	}
}

func TestAddrRangeSeqTakeFirst(t *testing.T) {
	layout := []AddrRange{
		{0x10, 0x11},
		{0x20, 0x22},
		{0x30, 0x30},
		{0x40, 0x44},
		{0x50, 0x55},
	}
	got := collect(t, AddrRangeSeqFromSlice(layout).TakeFirst(5))
	want := []AddrRange{
		{0x10, 0x11},
		{0x20, 0x22},
		{0x30, 0x30},
		{0x40, 0x42},
		{0x50, 0x50},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TakeFirst(5) mismatch (-want +got):\n%s", diff)
	}

	var empty AddrRangeSeq
	if got := empty.TakeFirst64(10); !got.IsEmpty() || got.NumBytes() != 0 {
		t.Errorf("TakeFirst64(10) of an empty sequence got %v", got)
	}
}

func TestAddrRoundingAndRanges(t *testing.T) {
	if got, want := Addr(0x1234).RoundDown(), Addr(0x1000); got != want {
		t.Errorf("RoundDown got %v, want %v", got, want)
	}
	if got, ok := Addr(0x1001).RoundUp(); !ok || got != 0x2000 {
		t.Errorf("RoundUp got (%v, %t), want (0x2000, true)", got, ok)
	}
	if _, ok := Addr(^uintptr(0)).RoundUp(); ok {
		t.Errorf("RoundUp of the last address should wrap")
	}
	ar, ok := Addr(0x1ffe).ToRange(4)
	if !ok || ar.Length() != 4 || ar.IsPageAligned() {
		t.Errorf("ToRange got (%v, %t)", ar, ok)
	}
	if !(AddrRange{0x1000, 0x3000}).IsSupersetOf(ar) || ar.IsSupersetOf(AddrRange{0x1000, 0x3000}) {
		t.Errorf("IsSupersetOf mismatch for %v", ar)
	}
	if got := ar.Intersect(AddrRange{0x2000, 0x3000}); got != (AddrRange{0x2000, 0x2002}) {
		t.Errorf("Intersect got %v", got)
	}
	if got := ar.Intersect(AddrRange{0x5000, 0x6000}); got.Length() != 0 {
		t.Errorf("Intersect of disjoint ranges got %v, want empty", got)
	}
}

func TestAccessTypeString(t *testing.T) {
	for _, test := range []struct {
		at   AccessType
		want string
	}{
		{NoAccess, "---"},
		{Read, "r--"},
		{ReadWrite, "rw-"},
		{AnyAccess, "rwx"},
	} {
		if got := test.at.String(); got != test.want {
			t.Errorf("%#v.String() got %q, want %q", test.at, got, test.want)
		}
		if got := AccessTypeFromProt(test.at.Prot()); got != test.at {
			t.Errorf("AccessTypeFromProt(%#x) got %v, want %v", test.at.Prot(), got, test.at)
		}
	}
	if !ReadWrite.SupersetOf(Write) || Read.SupersetOf(Write) {
		t.Errorf("SupersetOf mismatch")
	}
}

func TestAddrString(t *testing.T) {
	for _, test := range []struct {
		v    fmt.Stringer
		want string
	}{
		{Addr(0), "0x0"},
		{Addr(0x10000), "0x10000"},
		{AddrRange{0x10000, 0x11000}, "[0x10000, 0x11000)"},
		{AddrRangeSeqFromSlice([]AddrRange{{0x1000, 0x2000}, {0x3000, 0x3002}}), "[[0x1000, 0x2000) [0x3000, 0x3002)]"},
	} {
		if got := test.v.String(); got != test.want {
			t.Errorf("String() got %q, want %q", got, test.want)
		}
	}
	if got := fmt.Sprintf("mmap %v", AddrRange{0x10000, 0x12000}); got != "mmap [0x10000, 0x12000)" {
		t.Errorf("Sprintf got %q", got)
	}
}
