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
	"sync/atomic"
	"unsafe"

	"github.com/parlake/gridjoin/pkg/common/mpool"
	"github.com/parlake/gridjoin/pkg/vm/process"
)

// devCounter is a pool-resident counter kernels bump with atomic adds.
// It is tiny and lives across estimator iterations; do not fuse it with
// the pair buffer, whose lifetime is one emit attempt.
type devCounter struct {
	buf []byte
	p   *int64
	m   *mpool.MPool
}

func newDevCounter(m *mpool.MPool) (*devCounter, error) {
	buf, err := m.Alloc(8)
	if err != nil {
		return nil, err
	}
	return &devCounter{
		buf: buf,
		p:   (*int64)(unsafe.Pointer(&buf[0])),
		m:   m,
	}, nil
}

// reset may only be called while no kernel using the counter is in
// flight; the driver resets between synchronized phases.
func (c *devCounter) reset() {
	atomic.StoreInt64(c.p, 0)
}

func (c *devCounter) add(n int64) int64 {
	return atomic.AddInt64(c.p, n)
}

// read synchronizes the stream, then copies the counter back to the
// host.
func (c *devCounter) read(s *process.Stream) (int64, error) {
	if err := s.Synchronize(); err != nil {
		return 0, err
	}
	return atomic.LoadInt64(c.p), nil
}

func (c *devCounter) free() {
	if c.buf != nil {
		c.m.Free(c.buf)
		c.buf = nil
		c.p = nil
	}
}

// pairBuffer holds emitted join pairs.  On overflow the whole buffer
// is discarded and a larger one allocated; partially filled contents
// are never reused.
type pairBuffer struct {
	buf   []byte
	pairs []joinPair
	m     *mpool.MPool
}

func newPairBuffer(m *mpool.MPool, capPairs int64) (*pairBuffer, error) {
	buf, err := m.Alloc(int(capPairs) * int(unsafe.Sizeof(joinPair{})))
	if err != nil {
		return nil, err
	}
	return &pairBuffer{
		buf:   buf,
		pairs: unsafe.Slice((*joinPair)(unsafe.Pointer(&buf[0])), capPairs),
		m:     m,
	}, nil
}

func (pb *pairBuffer) free() {
	if pb.buf != nil {
		pb.m.Free(pb.buf)
		pb.buf = nil
		pb.pairs = nil
	}
}
