package chat

import "github.com/mingle-chat/mingle-go/internal/network/session"

// participant 表示一名已接入的聊天参与者。
//
// 除 sess 外的字段都由 Service.mu 保护，不能在锁外读写。
type participant struct {
	sess  session.Session
	state State
	pair  *Pair
}

// Pair 表示一段正在进行的一对一聊天。
//
// Pair 本身不做并发控制，状态流转统一由 Service 串行化。
type Pair struct {
	id   uint64
	a, b *participant
}

// partnerOf 返回 id 对应参与者在本次配对中的对方。
//
// id 不属于本次配对时返回 nil。
func (p *Pair) partnerOf(id uint64) *participant {
	switch id {
	case p.a.sess.ID():
		return p.b
	case p.b.sess.ID():
		return p.a
	default:
		return nil
	}
}
