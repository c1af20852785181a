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
	"sync"

	"github.com/parlake/gridjoin/pkg/common/moerr"
)

// Kernel is one data-parallel procedure.  The grid runner calls it
// once per block with a half-open row range [lo, hi).
type Kernel func(lo, hi int) error

type task struct {
	rows   int
	kernel Kernel
	sync   chan struct{}
}

// Stream is a serialized launch queue.  Kernels launched on the same
// stream execute in launch order; each kernel itself fans out over the
// process worker pool.  The first kernel failure makes the stream
// sticky-faulted: later launches are skipped and Synchronize reports
// the error.
type Stream struct {
	proc  *Process
	tasks chan task

	mu     sync.Mutex
	err    error
	closed bool
}

// NewStream creates a stream whose dispatcher runs until Close.
func (proc *Process) NewStream() *Stream {
	s := &Stream{
		proc:  proc,
		tasks: make(chan task, 64),
	}
	proc.streams.Go(s.run)
	return s
}

func (s *Stream) run() error {
	for {
		select {
		case t, ok := <-s.tasks:
			if !ok {
				return nil
			}
			if t.sync != nil {
				close(t.sync)
				continue
			}
			if s.Err() == nil {
				s.execute(t)
			}
		case <-s.proc.closing:
			return nil
		}
	}
}

// Launch enqueues a kernel over rows rows.  It returns once the kernel
// is queued, not once it ran.  Launching zero rows is a no-op.
func (s *Stream) Launch(rows int, kernel Kernel) {
	if rows <= 0 {
		return
	}
	s.tasks <- task{rows: rows, kernel: kernel}
}

// Synchronize blocks until everything launched so far has completed
// and returns the stream's sticky error, if any.
func (s *Stream) Synchronize() error {
	done := make(chan struct{})
	s.tasks <- task{sync: done}
	<-done
	return s.Err()
}

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Close shuts the dispatcher down.  The stream must be synchronized
// first; launching on a closed stream panics.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.tasks)
	}
}

func (s *Stream) execute(t task) {
	bs := s.proc.blockSize
	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		gridErr error
	)
	record := func(err error) {
		errOnce.Do(func() {
			gridErr = err
		})
	}
	for lo := 0; lo < t.rows; lo += bs {
		lo := lo
		hi := lo + bs
		if hi > t.rows {
			hi = t.rows
		}
		wg.Add(1)
		block := func() {
			defer wg.Done()
			defer func() {
				// a panic inside a kernel is the analog of an
				// asynchronous device fault
				if r := recover(); r != nil {
					record(moerr.NewDeviceFault(r))
				}
			}()
			if err := t.kernel(lo, hi); err != nil {
				record(err)
			}
		}
		if err := s.proc.pool.Submit(block); err != nil {
			wg.Done()
			record(moerr.NewInternalError("submit kernel block: %v", err))
			break
		}
	}
	wg.Wait()
	if gridErr != nil {
		s.setErr(gridErr)
	}
}
