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
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// HashKey maps a join key to its home slot distribution.  Build and
// probe must use the identical function; there is exactly one.
func HashKey(key uint32) uint64 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], key)
	return xxhash.Sum64(b[:])
}
