package session

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mingle-chat/mingle-go/pkg/util/merr"
)

func TestBaseSessionSendOrder(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	sess := NewBaseSession(context.Background(), 1, server, 0)
	defer sess.Close()

	assert.Equal(t, uint64(1), sess.ID())
	assert.NoError(t, sess.Send("first"))
	assert.NoError(t, sess.Send("second"))

	r := bufio.NewReader(client)
	line, err := r.ReadString('\n')
	assert.NoError(t, err)
	assert.Equal(t, "first\n", line)

	line, err = r.ReadString('\n')
	assert.NoError(t, err)
	assert.Equal(t, "second\n", line)
}

func TestBaseSessionCloseIdempotent(t *testing.T) {
	_, server := net.Pipe()
	sess := NewBaseSession(context.Background(), 2, server, 0)

	assert.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())

	select {
	case <-sess.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("session context not canceled after Close")
	}

	err := sess.Send("after close")
	assert.ErrorIs(t, err, merr.ErrSendQueueClosed)
}

func TestBaseSessionManager(t *testing.T) {
	m := NewBaseSessionManager()
	_, server := net.Pipe()
	sess := NewBaseSession(context.Background(), 7, server, 0)
	defer sess.Close()

	assert.NoError(t, m.Register(sess))
	assert.ErrorIs(t, m.Register(sess), merr.ErrSessionDuplicate)

	got, ok := m.Get(7)
	assert.True(t, ok)
	assert.Equal(t, sess.ID(), got.ID())
	assert.Equal(t, 1, m.Count())

	assert.NoError(t, m.Unregister(7))
	assert.ErrorIs(t, m.Unregister(7), merr.ErrSessionNotFound)
	assert.Equal(t, 0, m.Count())
}

func TestIDAllocatorConcurrent(t *testing.T) {
	alloc := NewIDAllocator()

	var mu sync.Mutex
	seen := make(map[uint64]struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := alloc.Next()
				mu.Lock()
				_, dup := seen[id]
				seen[id] = struct{}{}
				mu.Unlock()
				assert.False(t, dup)
				assert.NotZero(t, id)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 800)
}
