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
	"go.uber.org/zap"

	"github.com/parlake/gridjoin/pkg/logutil"
	"github.com/parlake/gridjoin/pkg/vm/process"
)

// estimateJoinSize approximates the join output cardinality by probing
// a prefix of the probe column.  When the probe side is much larger
// than the build side (beyond skewRatio), the sample starts at the
// build length and the count is scaled by |A|/|B|+1; otherwise the
// whole column is counted exactly.  A zero-match sample may just be
// bad luck, so the sample doubles and the scale halves until either a
// match shows up or the whole column was probed.  The iteration count
// is bounded by log2(|A|/sample)+1.
func estimateJoinSize(
	s *process.Stream,
	ps *probeSpec,
	typ JoinType,
	aCount, bCount int,
	skewRatio int64,
	c *devCounter,
) (int64, error) {
	sample := aCount
	ratio := int64(1)
	if bCount > 0 && int64(aCount) > skewRatio*int64(bCount) {
		sample = bCount
		ratio = int64(aCount)/int64(bCount) + 1
	}

	for {
		if sample > aCount {
			sample = aCount
		}
		// the previous read synchronized the stream, so nothing is
		// touching the counter here
		c.reset()
		countProbe(s, ps, typ, sample, c)
		found, err := c.read(s)
		if err != nil {
			return 0, err
		}
		estimate := found * ratio
		logutil.Debug("join size estimation round",
			zap.String("type", typ.String()),
			zap.Int("sample", sample),
			zap.Int64("ratio", ratio),
			zap.Int64("found", found),
			zap.Int64("estimate", estimate))
		if estimate > 0 || sample == aCount {
			return estimate, nil
		}
		// keep sample*ratio roughly stable while widening coverage
		sample *= 2
		ratio /= 2
		if ratio == 0 {
			ratio = 1
		}
	}
}
