// Copyright 2023 The GridJoin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package join implements a data-parallel hash equi-join over columnar
// key sources.  The build side is inserted into a concurrent hash
// multimap, the probe side is scanned by parallel kernels, and the
// output size is discovered through an adaptive sampling estimator
// with a retry-on-overflow emit phase.
package join

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/parlake/gridjoin/pkg/common/moerr"
	"github.com/parlake/gridjoin/pkg/container/hashtable"
	"github.com/parlake/gridjoin/pkg/container/vector"
	"github.com/parlake/gridjoin/pkg/logutil"
	"github.com/parlake/gridjoin/pkg/vm/process"
)

// InnerJoin joins a (left) with b (right), returning every index pair
// (i, j) with a[i] == b[j].  The hash table is always built over the
// smaller column; when the sides are swapped for that, the output
// halves are flipped back so callers still see [a-indices|b-indices].
func InnerJoin(proc *process.Process, a, b vector.Keys, opts ...Option) (*Result, error) {
	o := makeOptions(opts)
	if b.Length() > a.Length() {
		o.swapSides()
		return genericJoin(proc, Inner, b, a, o, true)
	}
	return genericJoin(proc, Inner, a, b, o, false)
}

// LeftJoin joins a (left) with b (right) under left semantics: every
// row of a appears in the output at least once, with SentinelIndex on
// the right for unmatched rows.  The build side is always b.
func LeftJoin(proc *process.Process, a, b vector.Keys, opts ...Option) (*Result, error) {
	o := makeOptions(opts)
	return genericJoin(proc, Left, a, b, o, false)
}

func validateSides(a, b vector.Keys, o *joinOptions) error {
	if (o.a2 == nil) != (o.b2 == nil) {
		return moerr.NewInvalidInput("secondary keys must be supplied for both sides")
	}
	if (o.a3 == nil) != (o.b3 == nil) {
		return moerr.NewInvalidInput("tertiary keys must be supplied for both sides")
	}
	if o.a2 != nil && (o.a2.Length() != a.Length() || o.b2.Length() != b.Length()) {
		return moerr.NewInvalidInput("secondary key length does not match its side")
	}
	if o.a3 != nil && (o.a3.Length() != a.Length() || o.b3.Length() != b.Length()) {
		return moerr.NewInvalidInput("tertiary key length does not match its side")
	}
	if o.occupancy <= 0 || o.occupancy >= 100 {
		return moerr.NewInvalidArg("hash table occupancy", o.occupancy)
	}
	if o.skewRatio <= 0 {
		return moerr.NewInvalidArg("sample skew ratio", o.skewRatio)
	}
	return nil
}

// genericJoin runs the phase sequence: build the multimap over b,
// estimate the output size by count-probing a, emit pairs with
// geometric retry on overflow, then decouple pairs into the final
// index layout.  Every transient buffer is freed on every exit path.
func genericJoin(
	proc *process.Process,
	typ JoinType,
	a, b vector.Keys,
	o *joinOptions,
	flip bool,
) (*Result, error) {
	if err := validateSides(a, b, o); err != nil {
		return nil, err
	}

	s := o.stream
	if s == nil {
		s = proc.NewStream()
		defer s.Close()
	}
	m := proc.Mp()

	// size the table to the actual build side, never to a side chosen
	// before swapping
	ht, err := hashtable.NewJoinMultimap(m, b.Length(), o.occupancy)
	if err != nil {
		return nil, err
	}
	defer ht.Free()

	buildTable(s, ht, b)
	if err = s.Synchronize(); err != nil {
		return nil, err
	}

	counter, err := newDevCounter(m)
	if err != nil {
		return nil, err
	}
	defer counter.free()

	ps := &probeSpec{
		a:  a,
		ht: ht,
		a2: o.a2, b2: o.b2,
		a3: o.a3, b3: o.b3,
	}

	estimate, err := estimateJoinSize(s, ps, typ, a.Length(), b.Length(), o.skewRatio, counter)
	if err != nil {
		return nil, err
	}
	if o.estimateHook != nil {
		estimate = o.estimateHook(estimate)
	}
	if estimate <= 0 {
		// truly empty result, emit is pointless
		return &Result{m: m}, nil
	}

	cursor, err := newDevCounter(m)
	if err != nil {
		return nil, err
	}
	defer cursor.free()

	var pb *pairBuffer
	defer func() {
		if pb != nil {
			pb.free()
		}
	}()

	capPairs := estimate
	var found int64
	for {
		if pb, err = newPairBuffer(m, capPairs); err != nil {
			return nil, err
		}
		cursor.reset()
		emitProbe(s, ps, typ, a.Length(), pb, cursor)
		if found, err = cursor.read(s); err != nil {
			return nil, err
		}
		if found <= capPairs {
			break
		}
		// estimate was short: discard the partial buffer whole and
		// double
		logutil.Debug("join pair buffer overflow",
			zap.String("type", typ.String()),
			zap.Int64("cap", capPairs),
			zap.Int64("found", found))
		pb.free()
		pb = nil
		capPairs *= 2
	}

	if found == 0 {
		// the sample overestimated, nothing actually matched
		return &Result{m: m}, nil
	}

	outBuf, err := m.Alloc(int(found) * 8)
	if err != nil {
		return nil, err
	}
	indices := unsafe.Slice((*uint32)(unsafe.Pointer(&outBuf[0])), 2*found)
	pairsToDecoupled(s, indices, int(found), pb.pairs[:found], flip)
	if err = s.Synchronize(); err != nil {
		m.Free(outBuf)
		return nil, err
	}

	return &Result{
		buf:     outBuf,
		indices: indices,
		n:       int(found),
		m:       m,
	}, nil
}
