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

package join

import (
	"github.com/parlake/gridjoin/pkg/common/moerr"
	"github.com/parlake/gridjoin/pkg/container/hashtable"
	"github.com/parlake/gridjoin/pkg/container/vector"
	"github.com/parlake/gridjoin/pkg/vm/process"
)

// probeSpec bundles everything the probe kernels read: the probe
// column, the built table, and the optional extra predicate columns.
type probeSpec struct {
	a      vector.Keys
	ht     *hashtable.JoinMultimap
	a2, b2 vector.Keys
	a3, b3 vector.Keys
}

// matches applies the secondary/tertiary equality predicate to a
// candidate pair found through the primary key.
func (ps *probeSpec) matches(i int, j uint32) bool {
	if ps.a2 != nil && ps.a2.At(i) != ps.b2.At(int(j)) {
		return false
	}
	if ps.a3 != nil && ps.a3.At(i) != ps.b3.At(int(j)) {
		return false
	}
	return true
}

// buildTable inserts (B[j], j) for every build-side row.  Order does
// not matter; the multimap keeps duplicates.
func buildTable(s *process.Stream, ht *hashtable.JoinMultimap, b vector.Keys) {
	s.Launch(b.Length(), func(lo, hi int) error {
		for j := lo; j < hi; j++ {
			if err := ht.Insert(b.At(j), uint32(j)); err != nil {
				return err
			}
		}
		return nil
	})
}

// countProbe looks up rows [0, sample) of the probe column and adds
// the match count to c without emitting anything.  Each block
// accumulates locally and does a single atomic add.  For left joins an
// unmatched row counts as one, since emit will produce a sentinel pair
// for it.
func countProbe(s *process.Stream, ps *probeSpec, typ JoinType, sample int, c *devCounter) {
	s.Launch(sample, func(lo, hi int) error {
		var local int64
		for i := lo; i < hi; i++ {
			key := ps.a.At(i)
			if key == hashtable.SentinelKey {
				return moerr.NewInvalidInput("probe row %d holds the reserved sentinel key", i)
			}
			var found int64
			ps.ht.ForEachMatch(key, func(j uint32) {
				if ps.matches(i, j) {
					found++
				}
			})
			if typ == Left && found == 0 {
				found = 1
			}
			local += found
		}
		c.add(local)
		return nil
	})
}

// emitProbe walks the full probe column and writes matching pairs
// through an atomic cursor.  Writes past the buffer capacity are
// dropped; the cursor still counts them, so after synchronizing the
// stream the cursor holds the true match count and the driver can
// detect overflow.
func emitProbe(s *process.Stream, ps *probeSpec, typ JoinType, rows int, pb *pairBuffer, cursor *devCounter) {
	capPairs := int64(len(pb.pairs))
	s.Launch(rows, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			key := ps.a.At(i)
			if key == hashtable.SentinelKey {
				return moerr.NewInvalidInput("probe row %d holds the reserved sentinel key", i)
			}
			matched := false
			ps.ht.ForEachMatch(key, func(j uint32) {
				if !ps.matches(i, j) {
					return
				}
				matched = true
				slot := cursor.add(1) - 1
				if slot < capPairs {
					pb.pairs[slot] = joinPair{first: uint32(i), second: j}
				}
			})
			if typ == Left && !matched {
				slot := cursor.add(1) - 1
				if slot < capPairs {
					pb.pairs[slot] = joinPair{first: uint32(i), second: hashtable.SentinelIndex}
				}
			}
		}
		return nil
	})
}

// pairsToDecoupled transforms the array-of-pairs into the
// [A-indices | B-indices] layout, optionally flipping the two halves
// when the driver built on the opposite side.
func pairsToDecoupled(s *process.Stream, out []uint32, n int, pairs []joinPair, flip bool) {
	s.Launch(n, func(lo, hi int) error {
		for k := lo; k < hi; k++ {
			p := pairs[k]
			if flip {
				out[k] = p.second
				out[k+n] = p.first
			} else {
				out[k] = p.first
				out[k+n] = p.second
			}
		}
		return nil
	})
}
