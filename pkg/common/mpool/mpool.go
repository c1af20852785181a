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

package mpool

import (
	"sync/atomic"
	"unsafe"

	"github.com/parlake/gridjoin/pkg/common/moerr"
)

// Mpool stats.  Casual readers may just look at numCurrBytes.
type MPoolStats struct {
	NumAlloc      atomic.Int64 // number of allocations
	NumFree       atomic.Int64 // number of frees
	NumAllocBytes atomic.Int64 // bytes allocated over lifetime
	NumFreeBytes  atomic.Int64 // bytes freed over lifetime
	NumCurrBytes  atomic.Int64 // current live bytes
	HighWaterMark atomic.Int64 // max value of NumCurrBytes
}

func (s *MPoolStats) RecordAlloc(sz int64) int64 {
	s.NumAlloc.Add(1)
	s.NumAllocBytes.Add(sz)
	curr := s.NumCurrBytes.Add(sz)
	for {
		hwm := s.HighWaterMark.Load()
		if curr <= hwm {
			break
		}
		if s.HighWaterMark.CompareAndSwap(hwm, curr) {
			break
		}
	}
	return curr
}

func (s *MPoolStats) RecordFree(sz int64) int64 {
	s.NumFree.Add(1)
	s.NumFreeBytes.Add(sz)
	return s.NumCurrBytes.Add(-sz)
}

const (
	kMemHdrSz    = 16
	kMemHdrMagic = int32(0xdeadbeaf & 0x7fffffff)
	// NoFixed means no capacity limit.
	NoFixed = int64(0)
)

// Each allocation carries a header in front of the usable bytes so that
// Free can recover the size without a side table.
type memHdr struct {
	allocSz int64
	magic   int32
	offHeap int32
}

// MPool is a capacity-accounted allocator for buffers that model device
// memory.  Capacity is a hard limit; an allocation pushing the pool past
// it fails with ErrOOM rather than growing.
type MPool struct {
	tag   string
	cap   int64
	stats MPoolStats
}

// NewMPool creates a pool with the given tag and byte capacity.
// A capacity of NoFixed means unbounded.
func NewMPool(tag string, cap int64) (*MPool, error) {
	if cap < 0 {
		return nil, moerr.NewInvalidArg("mpool capacity", cap)
	}
	return &MPool{tag: tag, cap: cap}, nil
}

// MustNewZero creates an unbounded pool, panicking on failure.  Test and
// tooling convenience.
func MustNewZero() *MPool {
	mp, err := NewMPool("zero_pool", NoFixed)
	if err != nil {
		panic(err)
	}
	return mp
}

func MustNew(tag string, cap int64) *MPool {
	mp, err := NewMPool(tag, cap)
	if err != nil {
		panic(err)
	}
	return mp
}

func (mp *MPool) Tag() string {
	return mp.tag
}

func (mp *MPool) Cap() int64 {
	return mp.cap
}

func (mp *MPool) Stats() *MPoolStats {
	return &mp.stats
}

func (mp *MPool) CurrNB() int64 {
	return mp.stats.NumCurrBytes.Load()
}

// Alloc returns a zeroed byte slice of exactly sz bytes.
func (mp *MPool) Alloc(sz int) ([]byte, error) {
	if sz < 0 {
		return nil, moerr.NewInvalidArg("alloc size", sz)
	}
	if sz == 0 {
		return nil, nil
	}
	gross := int64(sz) + kMemHdrSz
	if mp.cap != NoFixed && mp.CurrNB()+gross > mp.cap {
		return nil, moerr.NewOOM("alloc %d bytes, pool %s at %d of cap %d",
			sz, mp.tag, mp.CurrNB(), mp.cap)
	}
	mp.stats.RecordAlloc(gross)

	buf := make([]byte, gross)
	hdr := (*memHdr)(unsafe.Pointer(&buf[0]))
	hdr.allocSz = gross
	hdr.magic = kMemHdrMagic
	return buf[kMemHdrSz:], nil
}

// Free returns bytes obtained from Alloc.  Freeing nil is a no-op.
// Freeing a slice that did not come from this pool panics: this is a
// correctness bug, not a runtime condition.
func (mp *MPool) Free(bs []byte) {
	if bs == nil || cap(bs) == 0 {
		return
	}
	bs = bs[:1]
	hdr := (*memHdr)(unsafe.Add(unsafe.Pointer(&bs[0]), -kMemHdrSz))
	if hdr.magic != kMemHdrMagic {
		panic("mpool free of bad buffer")
	}
	hdr.magic = 0
	mp.stats.RecordFree(hdr.allocSz)
}

// Realloc allocates a new buffer of size sz, copies old into it and
// frees old.
func (mp *MPool) Realloc(old []byte, sz int) ([]byte, error) {
	if sz <= cap(old) {
		return old[:sz], nil
	}
	bs, err := mp.Alloc(sz)
	if err != nil {
		return nil, err
	}
	copy(bs, old)
	mp.Free(old)
	return bs, nil
}
