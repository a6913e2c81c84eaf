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

package conc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

func TestPoolSubmit(t *testing.T) {
	pool, err := NewPool(4)
	assert.NoError(t, err)
	defer pool.Release()

	var counter atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			counter.Inc()
		})
		assert.NoError(t, err)
	}
	wg.Wait()

	assert.Equal(t, int64(100), counter.Load())
}

func TestPoolConcealPanic(t *testing.T) {
	pool, err := NewPool(1, WithConcealPanic(true))
	assert.NoError(t, err)
	defer pool.Release()

	var wg sync.WaitGroup
	wg.Add(1)
	assert.NoError(t, pool.Submit(func() {
		defer wg.Done()
		panic("boom")
	}))
	wg.Wait()

	// panic 被吞掉后，池仍然可用。
	wg.Add(1)
	assert.NoError(t, pool.Submit(wg.Done))
	wg.Wait()
}
