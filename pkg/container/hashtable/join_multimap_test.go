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
	"sort"
	"sync"
	"testing"

	"github.com/parlake/gridjoin/pkg/common/moerr"
	"github.com/parlake/gridjoin/pkg/common/mpool"
	"github.com/stretchr/testify/require"
)

func collect(ht *JoinMultimap, key uint32) []uint32 {
	var vs []uint32
	ht.ForEachMatch(key, func(v uint32) {
		vs = append(vs, v)
	})
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	return vs
}

func TestJoinMultimapBasic(t *testing.T) {
	m := mpool.MustNewZero()
	ht, err := NewJoinMultimap(m, 3, 50)
	require.NoError(t, err)
	require.GreaterOrEqual(t, ht.Capacity(), uint64(6))

	require.NoError(t, ht.Insert(7, 0))
	require.NoError(t, ht.Insert(9, 1))
	require.NoError(t, ht.Insert(7, 2))

	require.Equal(t, []uint32{0, 2}, collect(ht, 7))
	require.Equal(t, []uint32{1}, collect(ht, 9))
	require.Nil(t, collect(ht, 8))

	ht.Free()
	require.Equal(t, int64(0), m.Stats().NumCurrBytes.Load())
}

func TestJoinMultimapDuplicatesGetDistinctSlots(t *testing.T) {
	m := mpool.MustNewZero()
	ht, err := NewJoinMultimap(m, 8, 50)
	require.NoError(t, err)
	defer ht.Free()

	for i := uint32(0); i < 8; i++ {
		require.NoError(t, ht.Insert(42, i))
	}
	require.Equal(t, []uint32{0, 1, 2, 3, 4, 5, 6, 7}, collect(ht, 42))
}

func TestJoinMultimapSentinelRejected(t *testing.T) {
	m := mpool.MustNewZero()
	ht, err := NewJoinMultimap(m, 1, 50)
	require.NoError(t, err)
	defer ht.Free()

	err = ht.Insert(SentinelKey, 0)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
}

func TestJoinMultimapCapacityExhausted(t *testing.T) {
	m := mpool.MustNewZero()
	// capacity of exactly 2 slots: ceil(1*100/50)
	ht, err := NewJoinMultimap(m, 1, 50)
	require.NoError(t, err)
	defer ht.Free()
	require.Equal(t, uint64(2), ht.Capacity())

	require.NoError(t, ht.Insert(1, 0))
	require.NoError(t, ht.Insert(2, 1))
	err = ht.Insert(3, 2)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrCapacityExhausted))
}

func TestJoinMultimapEmptyBuildSide(t *testing.T) {
	m := mpool.MustNewZero()
	ht, err := NewJoinMultimap(m, 0, 50)
	require.NoError(t, err)
	defer ht.Free()
	require.Equal(t, uint64(1), ht.Capacity())
	require.Nil(t, collect(ht, 5))
}

func TestJoinMultimapBadOccupancy(t *testing.T) {
	m := mpool.MustNewZero()
	_, err := NewJoinMultimap(m, 10, 0)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
	_, err = NewJoinMultimap(m, 10, 100)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
}

// test race
func TestJoinMultimapConcurrentInsert(t *testing.T) {
	m := mpool.MustNewZero()
	const workers = 8
	const perWorker = 1000
	ht, err := NewJoinMultimap(m, workers*perWorker, 50)
	require.NoError(t, err)
	defer ht.Free()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				// keys collide across workers on purpose
				if err := ht.Insert(uint32(i), uint32(w*perWorker+i)); err != nil {
					panic(err)
				}
			}
		}(w)
	}
	wg.Wait()

	for i := uint32(0); i < perWorker; i++ {
		vs := collect(ht, i)
		require.Equal(t, workers, len(vs))
		for w := 0; w < workers; w++ {
			require.Equal(t, uint32(w*perWorker)+i, vs[w])
		}
	}
}
