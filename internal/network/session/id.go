package session

import "go.uber.org/atomic"

// IDAllocator 为会话分配进程内唯一的自增 ID。
//
// 分配出的 ID 从 1 开始，0 保留为“无效会话”。
type IDAllocator struct {
	last atomic.Uint64
}

// NewIDAllocator 创建一个新的 ID 分配器。
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next 返回下一个会话 ID。
func (a *IDAllocator) Next() uint64 {
	return a.last.Add(1)
}
