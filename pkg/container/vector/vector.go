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

package vector

import (
	"unsafe"

	"github.com/parlake/gridjoin/pkg/common/moerr"
	"github.com/parlake/gridjoin/pkg/common/mpool"
)

// Keys is an opaque row-addressable source of fixed-width join keys.
// The join core only ever reads it; storage belongs to the caller.
type Keys interface {
	Length() int
	At(i int) uint32
}

// Vector is a fixed-width uint32 column backed by pool memory.
type Vector struct {
	buf []byte
	col []uint32
	m   *mpool.MPool
}

var _ Keys = new(Vector)

// New allocates a column of n rows from m.  Rows are zeroed.
func New(m *mpool.MPool, n int) (*Vector, error) {
	if n < 0 {
		return nil, moerr.NewInvalidArg("vector length", n)
	}
	v := &Vector{m: m}
	if n == 0 {
		return v, nil
	}
	buf, err := m.Alloc(n * 4)
	if err != nil {
		return nil, err
	}
	v.buf = buf
	v.col = unsafe.Slice((*uint32)(unsafe.Pointer(&buf[0])), n)
	return v, nil
}

// NewWithValues allocates a column holding a copy of vals.
func NewWithValues(m *mpool.MPool, vals []uint32) (*Vector, error) {
	v, err := New(m, len(vals))
	if err != nil {
		return nil, err
	}
	copy(v.col, vals)
	return v, nil
}

func (v *Vector) Length() int {
	return len(v.col)
}

func (v *Vector) At(i int) uint32 {
	return v.col[i]
}

// Col exposes the raw column for bulk writers (loaders, generators).
func (v *Vector) Col() []uint32 {
	return v.col
}

func (v *Vector) Free() {
	if v.buf != nil {
		v.m.Free(v.buf)
		v.buf = nil
		v.col = nil
	}
}
