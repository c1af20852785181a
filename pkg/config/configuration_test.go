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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parlake/gridjoin/pkg/common/moerr"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	ep := NewEngineParameters()
	require.Equal(t, int64(50), ep.HashTableOccupancy)
	require.Equal(t, int64(128), ep.KernelBlockSize)
	require.Equal(t, int64(5), ep.SampleSkewRatio)
	require.True(t, ep.KernelWorkers > 0)
	require.NoError(t, ep.Validate())
}

func TestValidate(t *testing.T) {
	kases := []struct {
		name   string
		mutate func(*EngineParameters)
	}{
		{"occupancy too high", func(ep *EngineParameters) { ep.HashTableOccupancy = 100 }},
		{"occupancy negative", func(ep *EngineParameters) { ep.HashTableOccupancy = -1 }},
		{"block size zero", func(ep *EngineParameters) { ep.KernelBlockSize = -3 }},
		{"workers negative", func(ep *EngineParameters) { ep.KernelWorkers = -1 }},
		{"pool limit negative", func(ep *EngineParameters) { ep.PoolLimitation = -1 }},
	}
	for _, k := range kases {
		t.Run(k.name, func(t *testing.T) {
			ep := NewEngineParameters()
			k.mutate(ep)
			err := ep.Validate()
			require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
		})
	}
}

func TestLoadEngineConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	content := `
hashTableOccupancy = 75
kernelBlockSize = 64

[log]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ep, err := LoadEngineConfig(path)
	require.NoError(t, err)
	require.Equal(t, int64(75), ep.HashTableOccupancy)
	require.Equal(t, int64(64), ep.KernelBlockSize)
	require.Equal(t, int64(5), ep.SampleSkewRatio)
	require.Equal(t, "debug", ep.Log.Level)
	require.Equal(t, "json", ep.Log.Format)
}

func TestProcessOptions(t *testing.T) {
	ep := NewEngineParameters()
	ep.KernelWorkers = 2
	ep.KernelBlockSize = 32
	require.Len(t, ep.ProcessOptions(), 2)
}

func TestLoadEngineConfigBadPath(t *testing.T) {
	_, err := LoadEngineConfig("/nonexistent/engine.toml")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}
