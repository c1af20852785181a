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
	"github.com/parlake/gridjoin/pkg/common/mpool"
	"github.com/parlake/gridjoin/pkg/config"
	"github.com/parlake/gridjoin/pkg/container/hashtable"
	"github.com/parlake/gridjoin/pkg/container/vector"
	"github.com/parlake/gridjoin/pkg/vm/process"
)

type JoinType int

const (
	Inner JoinType = iota
	Left
)

func (t JoinType) String() string {
	switch t {
	case Inner:
		return "inner"
	case Left:
		return "left"
	}
	return "unknown"
}

// SentinelIndex fills the right half of left-join output rows that had
// no match.
const SentinelIndex = hashtable.SentinelIndex

// joinPair is the transient match record the emit kernel produces;
// the decoupler consumes it.
type joinPair struct {
	first, second uint32
}

// Result is the decoupled join output: 2N row indices, the first N
// into the probe-side (left) table, the next N into the build-side
// (right) table.  It owns pool memory; callers must Free it.
type Result struct {
	buf     []byte
	indices []uint32
	n       int
	m       *mpool.MPool
}

// Len returns N, the number of matched pairs.
func (r *Result) Len() int {
	return r.n
}

// Indices returns the full 2N index layout.
func (r *Result) Indices() []uint32 {
	return r.indices
}

// Left returns the N probe-side row indices.
func (r *Result) Left() []uint32 {
	return r.indices[:r.n]
}

// Right returns the N build-side row indices.
func (r *Result) Right() []uint32 {
	return r.indices[r.n:]
}

func (r *Result) Free() {
	if r.buf != nil {
		r.m.Free(r.buf)
		r.buf = nil
		r.indices = nil
	}
	r.n = 0
}

type joinOptions struct {
	occupancy int64
	skewRatio int64
	stream    *process.Stream
	a2, b2    vector.Keys
	a3, b3    vector.Keys
	// estimateHook lets tests distort the size estimate to force the
	// emit retry path
	estimateHook func(int64) int64
}

type Option func(*joinOptions)

func makeOptions(opts []Option) *joinOptions {
	o := &joinOptions{
		occupancy: 50,
		skewRatio: 5,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *joinOptions) swapSides() {
	o.a2, o.b2 = o.b2, o.a2
	o.a3, o.b3 = o.b3, o.a3
}

// WithOccupancy overrides the hash table target load factor percentage.
func WithOccupancy(pct int64) Option {
	return func(o *joinOptions) {
		o.occupancy = pct
	}
}

// WithSkewRatio overrides the probe/build size ratio beyond which the
// estimator samples a probe prefix.
func WithSkewRatio(r int64) Option {
	return func(o *joinOptions) {
		o.skewRatio = r
	}
}

// WithStream runs the join on a caller-owned stream instead of a
// per-call one.
func WithStream(s *process.Stream) Option {
	return func(o *joinOptions) {
		o.stream = s
	}
}

// WithSecondaryKeys adds a second equality column to the join
// predicate; a row pair matches only if these columns agree too.
func WithSecondaryKeys(a2, b2 vector.Keys) Option {
	return func(o *joinOptions) {
		o.a2, o.b2 = a2, b2
	}
}

// WithTertiaryKeys adds a third equality column to the join predicate.
func WithTertiaryKeys(a3, b3 vector.Keys) Option {
	return func(o *joinOptions) {
		o.a3, o.b3 = a3, b3
	}
}

func withEstimateHook(h func(int64) int64) Option {
	return func(o *joinOptions) {
		o.estimateHook = h
	}
}

// FromConfig turns engine parameters into join options.
func FromConfig(ep *config.EngineParameters) []Option {
	return []Option{
		WithOccupancy(ep.HashTableOccupancy),
		WithSkewRatio(ep.SampleSkewRatio),
	}
}
