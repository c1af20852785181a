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
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/parlake/gridjoin/pkg/common/moerr"
	"github.com/parlake/gridjoin/pkg/logutil"
	"github.com/parlake/gridjoin/pkg/vm/process"
)

// EngineParameters of the join engine
type EngineParameters struct {
	//target load factor of the join hash table, in percent. default: 50
	HashTableOccupancy int64 `toml:"hashTableOccupancy"`

	//rows each worker block processes per kernel launch. default: 128
	KernelBlockSize int64 `toml:"kernelBlockSize"`

	//number of concurrent kernel workers. default: GOMAXPROCS
	KernelWorkers int64 `toml:"kernelWorkers"`

	//probe-to-build size ratio above which the estimator samples a
	//prefix of the probe column instead of scanning it whole. default: 5
	SampleSkewRatio int64 `toml:"sampleSkewRatio"`

	//pool limitation in bytes for transient join buffers. default: 0 (unbounded)
	PoolLimitation int64 `toml:"poolLimitation"`

	//logging configuration
	Log logutil.LogConfig `toml:"log"`
}

func (ep *EngineParameters) SetDefaultValues() {
	if ep.HashTableOccupancy == 0 {
		ep.HashTableOccupancy = 50
	}
	if ep.KernelBlockSize == 0 {
		ep.KernelBlockSize = 128
	}
	if ep.KernelWorkers == 0 {
		ep.KernelWorkers = int64(runtime.GOMAXPROCS(0))
	}
	if ep.SampleSkewRatio == 0 {
		ep.SampleSkewRatio = 5
	}
	ep.Log.SetDefaultValues()
}

func (ep *EngineParameters) Validate() error {
	if ep.HashTableOccupancy <= 0 || ep.HashTableOccupancy >= 100 {
		return moerr.NewBadConfig("hashTableOccupancy %d not in (0, 100)", ep.HashTableOccupancy)
	}
	if ep.KernelBlockSize <= 0 {
		return moerr.NewBadConfig("kernelBlockSize %d not positive", ep.KernelBlockSize)
	}
	if ep.KernelWorkers <= 0 {
		return moerr.NewBadConfig("kernelWorkers %d not positive", ep.KernelWorkers)
	}
	if ep.SampleSkewRatio <= 0 {
		return moerr.NewBadConfig("sampleSkewRatio %d not positive", ep.SampleSkewRatio)
	}
	if ep.PoolLimitation < 0 {
		return moerr.NewBadConfig("poolLimitation %d negative", ep.PoolLimitation)
	}
	return nil
}

// LoadEngineConfig reads parameters from a toml file, fills in defaults
// and validates the result.
func LoadEngineConfig(path string) (*EngineParameters, error) {
	ep := &EngineParameters{}
	if _, err := toml.DecodeFile(path, ep); err != nil {
		return nil, moerr.NewBadConfig("decode %s: %v", path, err)
	}
	ep.SetDefaultValues()
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	return ep, nil
}

// ProcessOptions renders the kernel execution knobs as process
// options.
func (ep *EngineParameters) ProcessOptions() []process.Option {
	return []process.Option{
		process.WithWorkers(int(ep.KernelWorkers)),
		process.WithBlockSize(int(ep.KernelBlockSize)),
	}
}

// NewEngineParameters returns the default parameter set.
func NewEngineParameters() *EngineParameters {
	ep := &EngineParameters{}
	ep.SetDefaultValues()
	return ep
}
