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

package usermem

import (
	"fmt"
	"io"

	"gvisor.dev/readpath/pkg/context"
	"gvisor.dev/readpath/pkg/errors/linuxerr"
	"gvisor.dev/readpath/pkg/hostarch"
	"gvisor.dev/readpath/pkg/log"
	"gvisor.dev/readpath/pkg/safemem"
)

// ShortSourcePolicy selects how a transfer that runs out of source bytes
// reports the bytes written into the unit in progress.
type ShortSourcePolicy int

const (
	// CountPartial reports every byte delivered before the source ran dry.
	CountPartial ShortSourcePolicy = iota

	// RoundToUnit drops the bytes of the incomplete unit, exactly as for a
	// destination fault.
	RoundToUnit
)

// String implements fmt.Stringer.String.
func (p ShortSourcePolicy) String() string {
	switch p {
	case CountPartial:
		return "count-partial"
	case RoundToUnit:
		return "round-to-unit"
	default:
		return fmt.Sprintf("ShortSourcePolicy(%d)", int(p))
	}
}

// ParseShortSourcePolicy parses the String form of a ShortSourcePolicy.
func ParseShortSourcePolicy(s string) (ShortSourcePolicy, error) {
	switch s {
	case "count-partial":
		return CountPartial, nil
	case "round-to-unit":
		return RoundToUnit, nil
	default:
		return 0, fmt.Errorf("unknown short source policy %q", s)
	}
}

// TransferOpts controls IOSequence.Transfer.
type TransferOpts struct {
	// UnitSize is the maximum size of a transfer unit. Each destination range
	// is split into units of at most UnitSize bytes, measured from the start
	// of the range. If UnitSize is 0, hostarch.PageSize is used.
	UnitSize int64

	// ShortSource is the accounting policy for source exhaustion.
	ShortSource ShortSourcePolicy
}

func (o TransferOpts) unitSize() int64 {
	if o.UnitSize <= 0 {
		return hostarch.PageSize
	}
	return o.UnitSize
}

// TransferResult describes the outcome of IOSequence.Transfer.
type TransferResult struct {
	// Reported is the number of bytes the caller is told were delivered.
	// The source cursor advances by exactly this amount.
	Reported int64

	// Physical is the number of bytes actually written into destination
	// memory. Physical >= Reported.
	Physical int64

	// CompletedUnits is the number of transfer units filled without a fault.
	CompletedUnits int

	// CompletedRanges is the number of destination ranges filled to their
	// full length.
	CompletedRanges int

	// Fault is true if the transfer stopped at an inaccessible destination
	// byte.
	Fault bool

	// Exhausted is true if the transfer stopped because the source had no
	// more bytes.
	Exhausted bool
}

// Short returns true if the transfer stopped before the destination was
// filled.
func (r TransferResult) Short() bool {
	return r.Fault || r.Exhausted
}

// rangeProgress is the outcome of transferRange for one destination range.
type rangeProgress struct {
	// whole is the number of bytes in fully completed units.
	whole int64

	// units is the number of fully completed units.
	units int

	// partial is the number of bytes written into the unit that stopped the
	// transfer.
	partial int64

	fault     bool
	exhausted bool
	err       error
}

func (p *rangeProgress) stopped() bool {
	return p.fault || p.exhausted || p.err != nil
}

// transferRange copies up to ar.Length() bytes from src into ar, one unit of
// at most unit bytes at a time. It stops at the first unit that comes up
// short. Bytes written into that unit stay in memory; nothing after them is
// attempted again.
func transferRange(ctx context.Context, uio IO, ar hostarch.AddrRange, src safemem.Reader, opts IOOpts, unit int64) rangeProgress {
	var p rangeProgress
	for start := ar.Start; start < ar.End; {
		end := ar.End
		if end-start > hostarch.Addr(unit) {
			end = start + hostarch.Addr(unit)
		}
		want := int64(end - start)
		n, err := uio.CopyOutFrom(ctx, hostarch.AddrRangeSeqOf(hostarch.AddrRange{Start: start, End: end}), src, opts)
		if n == want && (err == nil || err == io.EOF) {
			p.whole += n
			p.units++
			start = end
			continue
		}
		p.partial = n
		switch {
		case linuxerr.Equals(linuxerr.EFAULT, err):
			p.fault = true
		case err == nil || err == io.EOF:
			p.exhausted = true
		default:
			p.err = err
		}
		return p
	}
	return p
}

// rangeIterator walks the destination ranges of an IOSequence in order and
// feeds each of them to transferRange. It never moves on to a later range
// once one has stopped short.
type rangeIterator struct {
	ars  hostarch.AddrRangeSeq
	unit int64
	res  TransferResult

	// partial is the number of bytes written into the range that stopped
	// the transfer.
	partial int64

	err error
}

// next transfers into the next destination range. It returns false once the
// ranges are used up or a range stopped short.
func (it *rangeIterator) next(ctx context.Context, uio IO, src safemem.Reader, opts IOOpts) bool {
	if it.ars.IsEmpty() || it.res.Short() || it.err != nil {
		return false
	}
	ar := it.ars.Head()
	it.ars = it.ars.Tail()

	p := transferRange(ctx, uio, ar, src, opts, it.unit)
	it.res.Physical += p.whole + p.partial
	it.res.Reported += p.whole
	it.res.CompletedUnits += p.units
	if !p.stopped() {
		it.res.CompletedRanges++
		return true
	}
	it.partial = p.partial
	it.res.Fault = p.fault
	it.res.Exhausted = p.exhausted
	it.err = p.err
	return false
}

// Transfer copies bytes from src into the destination ranges of s, in order.
//
// Each range is split into units of at most opts.UnitSize bytes. The reported
// count covers only fully completed units, so when a unit faults part way,
// the bytes already written into it stay in memory but are not counted and a
// caller that resumes from the reported count rewrites them. If the source
// runs dry, opts.ShortSource decides whether the bytes of the last unit are
// counted.
//
// A fault before any byte is reported yields EFAULT. A fault after some bytes
// are reported is a successful short transfer, and so is exhaustion. If src
// returns linuxerr.ErrWouldBlock after bytes were delivered, the transfer is
// treated as exhausted. Other errors from src are returned with the result
// accumulated so far.
func (s IOSequence) Transfer(ctx context.Context, src safemem.Reader, opts TransferOpts) (TransferResult, error) {
	it := rangeIterator{
		ars:  s.Addrs,
		unit: opts.unitSize(),
	}
	for it.next(ctx, s.IO, src, s.Opts) {
	}
	res := it.res

	if it.err != nil {
		if !linuxerr.Equals(linuxerr.ErrWouldBlock, it.err) || res.Physical == 0 {
			return res, it.err
		}
		res.Exhausted = true
	}
	if res.Exhausted && opts.ShortSource == CountPartial {
		res.Reported += it.partial
	}
	if res.Short() && ctx.IsLogging(log.Debug) {
		ctx.Debugf("Short transfer: reported %d of %d bytes (physical %d, fault %t, exhausted %t)", res.Reported, s.NumBytes(), res.Physical, res.Fault, res.Exhausted)
	}
	if res.Fault && res.Reported == 0 {
		return res, linuxerr.EFAULT
	}
	return res, nil
}
