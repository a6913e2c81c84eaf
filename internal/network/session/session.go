package session

import (
	"context"
	"net"
)

// Session 抽象了一条与客户端之间的文本行会话。
//
// 约定：
//   - 每个 Session 对应一条底层连接（一个 TCP 连接或一个 WebSocket 会话）；
//   - Session ID 使用 64 位无符号整型，在服务进程内保持全局唯一；
//   - 会话层只负责按行收发文本，不关心“聊天对象”等具体业务概念。
type Session interface {
	// ID 返回该会话的全局唯一标识。
	//
	// 说明：
	//   - 由接入层在连接建立时通过 IDAllocator 分配；
	//   - 业务层可以通过该 ID 建立 “Session <-> 聊天参与者” 的映射关系。
	ID() uint64

	// Context 返回与该会话关联的上下文。
	//
	// 说明：
	//   - 可用于级联取消：当会话关闭时，应触发 Context.Done()。
	Context() context.Context

	// RemoteAddr 返回远端地址（客户端地址）。
	RemoteAddr() net.Addr

	// LocalAddr 返回本端地址（服务器监听地址）。
	//
	// 说明：
	//   - 在同时开启 TCP 与 WebSocket 入口时，可用于区分会话来源。
	LocalAddr() net.Addr

	// Send 向该会话异步发送一行文本。
	//
	// 行为：
	//   - 仅负责将该行投递到会话级发送队列，由独立的发送协程按顺序写出；
	//   - 同一会话上多次 Send 的行按调用顺序送达对端；
	//   - 会话已关闭时返回 merr.ErrSendQueueClosed。
	Send(line string) error

	// Close 主动关闭该会话。
	//
	// 说明：
	//   - 关闭底层连接，并触发 Context 的取消；
	//   - 多次调用应是幂等的：对已关闭的会话再次调用 Close 不应引发 panic。
	Close() error
}
