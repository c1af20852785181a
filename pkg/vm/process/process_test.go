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
	"sync/atomic"
	"testing"

	"github.com/parlake/gridjoin/pkg/common/moerr"
	"github.com/parlake/gridjoin/pkg/common/mpool"
	"github.com/stretchr/testify/require"
)

func newTestProc(t *testing.T) *Process {
	proc, err := New(context.Background(), mpool.MustNewZero(), WithWorkers(4), WithBlockSize(16))
	require.NoError(t, err)
	return proc
}

func TestStreamGridCoversAllRows(t *testing.T) {
	proc := newTestProc(t)
	defer proc.Free()
	s := proc.NewStream()
	defer s.Close()

	const rows = 1000
	seen := make([]int32, rows)
	s.Launch(rows, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
		return nil
	})
	require.NoError(t, s.Synchronize())
	for i := 0; i < rows; i++ {
		require.Equal(t, int32(1), seen[i])
	}
}

func TestStreamOrdering(t *testing.T) {
	proc := newTestProc(t)
	defer proc.Free()
	s := proc.NewStream()
	defer s.Close()

	var phase atomic.Int32
	s.Launch(100, func(lo, hi int) error {
		if phase.Load() != 0 {
			return moerr.NewInternalError("second kernel ran first")
		}
		return nil
	})
	s.Launch(1, func(lo, hi int) error {
		phase.Store(1)
		return nil
	})
	require.NoError(t, s.Synchronize())
	require.Equal(t, int32(1), phase.Load())
}

func TestStreamStickyError(t *testing.T) {
	proc := newTestProc(t)
	defer proc.Free()
	s := proc.NewStream()
	defer s.Close()

	s.Launch(10, func(lo, hi int) error {
		return moerr.NewInternalError("boom")
	})
	var ran atomic.Bool
	s.Launch(10, func(lo, hi int) error {
		ran.Store(true)
		return nil
	})
	err := s.Synchronize()
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
	require.False(t, ran.Load(), "faulted stream must skip later kernels")
	// the fault stays sticky
	require.Error(t, s.Synchronize())
}

func TestStreamKernelPanicIsDeviceFault(t *testing.T) {
	proc := newTestProc(t)
	defer proc.Free()
	s := proc.NewStream()
	defer s.Close()

	s.Launch(10, func(lo, hi int) error {
		var xs []int
		_ = xs[3]
		return nil
	})
	err := s.Synchronize()
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrDeviceFault))
}

func TestStreamZeroRowsLaunch(t *testing.T) {
	proc := newTestProc(t)
	defer proc.Free()
	s := proc.NewStream()
	defer s.Close()

	s.Launch(0, func(lo, hi int) error {
		return moerr.NewInternalError("must not run")
	})
	require.NoError(t, s.Synchronize())
}

func TestProcessBadOptions(t *testing.T) {
	_, err := New(context.Background(), mpool.MustNewZero(), WithWorkers(0))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
	_, err = New(context.Background(), mpool.MustNewZero(), WithBlockSize(-1))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
}
