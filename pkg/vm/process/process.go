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

package process

import (
	"context"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/parlake/gridjoin/pkg/common/moerr"
	"github.com/parlake/gridjoin/pkg/common/mpool"
)

// DefaultBlockSize is how many rows one kernel worker handles per
// block.
const DefaultBlockSize = 128

// Process is the execution context a join runs against: a buffer pool
// standing in for device memory, a shared worker pool that executes
// kernel grids, and a factory for execution streams.
type Process struct {
	Ctx context.Context

	mp        *mpool.MPool
	pool      *ants.Pool
	blockSize int

	// dispatcher goroutines of all streams created from this process
	streams  *errgroup.Group
	closing  chan struct{}
	freeOnce sync.Once
}

type Options struct {
	Workers   int
	BlockSize int
}

type Option func(*Options)

// WithWorkers sets how many kernel workers run concurrently.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithBlockSize sets the rows-per-block granularity of kernel grids.
func WithBlockSize(n int) Option {
	return func(o *Options) {
		o.BlockSize = n
	}
}

// New creates a Process owning a worker pool.  Callers must Free it.
func New(ctx context.Context, mp *mpool.MPool, opts ...Option) (*Process, error) {
	o := Options{
		Workers:   runtime.GOMAXPROCS(0),
		BlockSize: DefaultBlockSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Workers <= 0 {
		return nil, moerr.NewInvalidArg("worker count", o.Workers)
	}
	if o.BlockSize <= 0 {
		return nil, moerr.NewInvalidArg("block size", o.BlockSize)
	}
	pool, err := ants.NewPool(o.Workers)
	if err != nil {
		return nil, moerr.NewInternalError("create worker pool: %v", err)
	}
	proc := &Process{
		Ctx:       ctx,
		mp:        mp,
		pool:      pool,
		blockSize: o.BlockSize,
		streams:   new(errgroup.Group),
		closing:   make(chan struct{}),
	}
	return proc, nil
}

func (proc *Process) Mp() *mpool.MPool {
	return proc.mp
}

func (proc *Process) BlockSize() int {
	return proc.blockSize
}

// Free tears the process down: stops accepting launches, waits for all
// stream dispatchers to drain, and releases the worker pool.
func (proc *Process) Free() {
	proc.freeOnce.Do(func() {
		close(proc.closing)
		_ = proc.streams.Wait()
		proc.pool.Release()
	})
}
