// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package typeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	set := NewSet[uint64]()
	assert.Equal(t, 0, set.Len())

	set.Insert(1, 2, 3)
	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Contain(1))
	assert.True(t, set.Contain(2))
	assert.False(t, set.Contain(4))

	// 重复插入不改变长度。
	set.Insert(2)
	assert.Equal(t, 3, set.Len())

	set.Remove(2)
	assert.False(t, set.Contain(2))
	assert.Equal(t, 2, set.Len())

	assert.ElementsMatch(t, []uint64{1, 3}, set.Collect())

	clone := set.Clone()
	clone.Insert(9)
	assert.False(t, set.Contain(9))
	assert.True(t, clone.Contain(9))
}

func TestSetRange(t *testing.T) {
	set := NewSet(1, 2, 3)

	count := 0
	set.Range(func(int) bool {
		count++
		return true
	})
	assert.Equal(t, 3, count)

	// 回调返回 false 时中断遍历。
	count = 0
	set.Range(func(int) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}
