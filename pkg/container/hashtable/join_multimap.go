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

package hashtable

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/parlake/gridjoin/pkg/common/moerr"
	"github.com/parlake/gridjoin/pkg/common/mpool"
)

const (
	// SentinelKey is the reserved key marking an empty slot.  Inputs
	// must never contain it.
	SentinelKey uint32 = math.MaxUint32
	// SentinelIndex marks an unoccupied slot, and unmatched probe rows
	// in left join output.
	SentinelIndex uint32 = math.MaxUint32

	// An empty slot is (SentinelKey, SentinelIndex) packed together.
	emptySlot uint64 = math.MaxUint64
)

// JoinMultimap is a fixed-capacity open-addressed hash multimap shared
// by concurrent insert workers during build and concurrent readers
// during probe.  A slot packs (key, rowIndex) into one uint64 so that a
// single compare-and-swap takes it from empty to occupied; no partially
// written slot is ever observable.  Insertion never overwrites and
// never deduplicates: equal keys land in distinct slots and probing
// walks them all, stopping at the first empty slot.
type JoinMultimap struct {
	buf      []byte
	slots    []uint64
	capacity uint64
	m        *mpool.MPool
}

func packSlot(key, value uint32) uint64 {
	return uint64(key)<<32 | uint64(value)
}

func unpackSlot(word uint64) (key, value uint32) {
	return uint32(word >> 32), uint32(word)
}

// NewJoinMultimap allocates a table sized for rows build-side entries
// at the given target occupancy percentage.  Capacity never changes
// afterwards.
func NewJoinMultimap(m *mpool.MPool, rows int, occupancy int64) (*JoinMultimap, error) {
	if rows < 0 {
		return nil, moerr.NewInvalidArg("build row count", rows)
	}
	if occupancy <= 0 || occupancy >= 100 {
		return nil, moerr.NewInvalidArg("hash table occupancy", occupancy)
	}
	capacity := (uint64(rows)*100 + uint64(occupancy) - 1) / uint64(occupancy)
	if capacity == 0 {
		// slot arithmetic stays defined for an empty build side
		capacity = 1
	}
	buf, err := m.Alloc(int(capacity) * 8)
	if err != nil {
		return nil, err
	}
	ht := &JoinMultimap{
		buf:      buf,
		slots:    unsafe.Slice((*uint64)(unsafe.Pointer(&buf[0])), capacity),
		capacity: capacity,
		m:        m,
	}
	for i := range ht.slots {
		ht.slots[i] = emptySlot
	}
	return ht, nil
}

func (ht *JoinMultimap) Capacity() uint64 {
	return ht.capacity
}

// Insert installs (key, value) into the first empty slot on the linear
// probe chain starting at the key's home slot.  Safe for concurrent
// use.  A full pass over the table without finding an empty slot is a
// sizing bug and fails with ErrCapacityExhausted.
func (ht *JoinMultimap) Insert(key, value uint32) error {
	if key == SentinelKey {
		return moerr.NewInvalidInput("key equals the reserved sentinel value")
	}
	word := packSlot(key, value)
	slot := HashKey(key) % ht.capacity
	for n := uint64(0); n < ht.capacity; n++ {
		if atomic.LoadUint64(&ht.slots[slot]) == emptySlot &&
			atomic.CompareAndSwapUint64(&ht.slots[slot], emptySlot, word) {
			return nil
		}
		// lost the CAS race or the slot was taken, step forward
		slot++
		if slot == ht.capacity {
			slot = 0
		}
	}
	return moerr.NewCapacityExhausted("no empty slot in %d for key %d", ht.capacity, key)
}

// ForEachMatch calls visit with the row index of every entry whose key
// equals key.  The walk stops at the first empty slot; build never
// leaves holes, so no match can live past it.
func (ht *JoinMultimap) ForEachMatch(key uint32, visit func(value uint32)) {
	slot := HashKey(key) % ht.capacity
	for n := uint64(0); n < ht.capacity; n++ {
		word := atomic.LoadUint64(&ht.slots[slot])
		if word == emptySlot {
			return
		}
		if k, v := unpackSlot(word); k == key {
			visit(v)
		}
		slot++
		if slot == ht.capacity {
			slot = 0
		}
	}
}

// Free returns the slot array to the pool.
func (ht *JoinMultimap) Free() {
	if ht.buf != nil {
		ht.m.Free(ht.buf)
		ht.buf = nil
		ht.slots = nil
	}
}
