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
	"testing"

	"github.com/parlake/gridjoin/pkg/common/moerr"
	"github.com/parlake/gridjoin/pkg/common/mpool"
	"github.com/stretchr/testify/require"
)

func TestVectorNew(t *testing.T) {
	m := mpool.MustNewZero()
	v, err := New(m, 4)
	require.NoError(t, err)
	require.Equal(t, 4, v.Length())
	for i := 0; i < 4; i++ {
		require.Equal(t, uint32(0), v.At(i))
	}
	v.Col()[2] = 9
	require.Equal(t, uint32(9), v.At(2))
	v.Free()
	require.Equal(t, int64(0), m.CurrNB())
}

func TestVectorNewWithValues(t *testing.T) {
	m := mpool.MustNewZero()
	vals := []uint32{3, 1, 4, 1, 5}
	v, err := NewWithValues(m, vals)
	require.NoError(t, err)
	for i, want := range vals {
		require.Equal(t, want, v.At(i))
	}
	// the column is a copy
	vals[0] = 99
	require.Equal(t, uint32(3), v.At(0))
	v.Free()
	require.Equal(t, int64(0), m.CurrNB())
}

func TestVectorEmpty(t *testing.T) {
	m := mpool.MustNewZero()
	v, err := New(m, 0)
	require.NoError(t, err)
	require.Equal(t, 0, v.Length())
	v.Free()

	_, err = New(m, -1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
}

func TestVectorFreeIdempotent(t *testing.T) {
	m := mpool.MustNewZero()
	v, err := New(m, 8)
	require.NoError(t, err)
	v.Free()
	v.Free()
	require.Equal(t, int64(0), m.CurrNB())
}
