package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mingle-chat/mingle-go/pkg/util/merr"
)

func TestWaitingPoolEnqueue(t *testing.T) {
	p := NewWaitingPool()

	assert.NoError(t, p.Enqueue(1))
	assert.ErrorIs(t, p.Enqueue(1), merr.ErrPoolDuplicate)
	assert.Equal(t, 1, p.Len())
	assert.True(t, p.Contains(1))
}

func TestWaitingPoolDequeuePair(t *testing.T) {
	p := NewWaitingPool()

	_, _, ok := p.TryDequeuePair()
	assert.False(t, ok)

	assert.NoError(t, p.Enqueue(1))
	_, _, ok = p.TryDequeuePair()
	assert.False(t, ok)
	assert.Equal(t, 1, p.Len())

	assert.NoError(t, p.Enqueue(2))
	a, b, ok := p.TryDequeuePair()
	assert.True(t, ok)
	assert.NotEqual(t, a, b)
	assert.ElementsMatch(t, []uint64{1, 2}, []uint64{a, b})
	assert.Equal(t, 0, p.Len())
}

func TestWaitingPoolRemove(t *testing.T) {
	p := NewWaitingPool()

	assert.False(t, p.Remove(1))
	assert.NoError(t, p.Enqueue(1))
	assert.True(t, p.Remove(1))
	assert.False(t, p.Contains(1))

	// 出池后可以再次入池。
	assert.NoError(t, p.Enqueue(1))
}

func TestWaitingPoolConcurrent(t *testing.T) {
	p := NewWaitingPool()
	for id := uint64(1); id <= 100; id++ {
		assert.NoError(t, p.Enqueue(id))
	}

	// 并发取对：每个 id 最多被取出一次。
	var mu sync.Mutex
	taken := make(map[uint64]struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				a, b, ok := p.TryDequeuePair()
				if !ok {
					return
				}
				mu.Lock()
				_, dupA := taken[a]
				_, dupB := taken[b]
				taken[a] = struct{}{}
				taken[b] = struct{}{}
				mu.Unlock()
				assert.False(t, dupA)
				assert.False(t, dupB)
				assert.NotEqual(t, a, b)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, taken, 100)
	assert.Equal(t, 0, p.Len())
}
