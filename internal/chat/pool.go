package chat

import (
	"sync"

	"github.com/samber/lo"

	"github.com/mingle-chat/mingle-go/pkg/util/merr"
	"github.com/mingle-chat/mingle-go/pkg/util/typeutil"
)

// WaitingPool 维护等待配对的参与者集合。
//
// 语义：
//   - 集合语义，同一参与者最多出现一次，重复入池返回 merr.ErrPoolDuplicate；
//   - TryDequeuePair 随机取出两名不同的参与者并原子地移出池子，
//     保证同一参与者不会被取出两次；
//   - 所有方法并发安全。
type WaitingPool struct {
	mu      sync.Mutex
	waiting typeutil.Set[uint64]
}

// NewWaitingPool 创建一个空的等待池。
func NewWaitingPool() *WaitingPool {
	return &WaitingPool{
		waiting: typeutil.NewSet[uint64](),
	}
}

// Enqueue 将参与者放入等待池。
//
// 参与者已在池中时返回 merr.ErrPoolDuplicate。
func (p *WaitingPool) Enqueue(id uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.waiting.Contain(id) {
		return merr.WrapErrPoolDuplicate(id)
	}
	p.waiting.Insert(id)
	return nil
}

// TryDequeuePair 随机取出两名不同的等待者。
//
// 池中不足两人时返回 ok=false，且不改变池子状态。
// 取出的两人会同时从池中移除。
func (p *WaitingPool) TryDequeuePair() (a, b uint64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.waiting.Len() < 2 {
		return 0, 0, false
	}

	picked := lo.Samples(p.waiting.Collect(), 2)
	a, b = picked[0], picked[1]
	p.waiting.Remove(a)
	p.waiting.Remove(b)
	return a, b, true
}

// Remove 将参与者移出等待池，返回其之前是否在池中。
func (p *WaitingPool) Remove(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.waiting.Contain(id) {
		return false
	}
	p.waiting.Remove(id)
	return true
}

// Contains 返回参与者当前是否在等待池中。
func (p *WaitingPool) Contains(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiting.Contain(id)
}

// Len 返回当前等待人数。
func (p *WaitingPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiting.Len()
}
