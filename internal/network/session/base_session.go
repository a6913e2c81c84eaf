package session

import (
	"context"
	"net"
	"sync"

	"github.com/mingle-chat/mingle-go/internal/network/lineio"
	"github.com/mingle-chat/mingle-go/pkg/util/merr"
)

// BaseSession 提供了 Session 接口基于 net.Conn 的实现。
//
// 设计目标：
//   - 封装最小但完整的会话能力：ID、Context、地址信息、按行发送与关闭；
//   - 发送路径只在专职发送协程中写 conn，避免多协程并发写导致行交叉。
type BaseSession struct {
	id uint64

	ctx    context.Context
	cancel context.CancelFunc

	conn   net.Conn
	writer *lineio.Writer

	remoteAddr net.Addr
	localAddr  net.Addr

	// sendQueue 为待发送文本行的队列。
	//   - Send 仅负责将行投递到该队列；
	//   - 独立的发送协程从队列中取出行并写到底层连接。
	sendQueue chan string

	closeOnce sync.Once
}

// 确保 BaseSession 实现了 Session 接口。
var _ Session = (*BaseSession)(nil)

// defaultSendQueueSize 为每个会话的发送队列容量。
const defaultSendQueueSize = 256

// NewBaseSession 创建一个基于 net.Conn 的基础会话。
//
// 参数：
//   - parent       ：会话所属的上层上下文（例如 Acceptor 的 Serve ctx）；若为 nil，则使用 context.Background()；
//   - id           ：会话 ID，由调用侧保证全局唯一；
//   - conn         ：底层网络连接；
//   - sendQueueSize：发送队列容量，<= 0 时使用默认值。
func NewBaseSession(parent context.Context, id uint64, conn net.Conn, sendQueueSize int) *BaseSession {
	if parent == nil {
		parent = context.Background()
	}
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	ctx, cancel := context.WithCancel(parent)

	s := &BaseSession{
		id:         id,
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		writer:     lineio.NewWriter(conn),
		remoteAddr: conn.RemoteAddr(),
		localAddr:  conn.LocalAddr(),
		sendQueue:  make(chan string, sendQueueSize),
	}
	go s.sendLoop()

	return s
}

// ID 实现 Session.ID。
func (s *BaseSession) ID() uint64 {
	return s.id
}

// Context 实现 Session.Context。
func (s *BaseSession) Context() context.Context {
	return s.ctx
}

// RemoteAddr 实现 Session.RemoteAddr。
func (s *BaseSession) RemoteAddr() net.Addr {
	return s.remoteAddr
}

// LocalAddr 实现 Session.LocalAddr。
func (s *BaseSession) LocalAddr() net.Addr {
	return s.localAddr
}

// Send 实现 Session.Send。
//
// 内部仅将行投递到会话级发送队列。队列写入与会话关闭之间通过 ctx 联动：
// 会话关闭后 ctx 已取消，Send 立即返回错误而不会阻塞。
func (s *BaseSession) Send(line string) error {
	// 先做一次非阻塞检查，保证对已关闭会话的 Send 必定失败，
	// 而不是依赖 select 的随机选择落到缓冲队列上。
	select {
	case <-s.ctx.Done():
		return merr.WrapErrSendQueueClosed(s.id)
	default:
	}

	select {
	case <-s.ctx.Done():
		return merr.WrapErrSendQueueClosed(s.id)
	case s.sendQueue <- line:
		return nil
	}
}

// Close 实现 Session.Close。
func (s *BaseSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// 先取消上下文，再关闭连接，保证读写两侧都能及时解除阻塞。
		s.cancel()
		err = s.conn.Close()
	})
	return err
}

// sendLoop 为每个会话启动的专职发送协程。
//
// 行为：
//   - 从 sendQueue 中按顺序取出待发送行并写到底层连接；
//   - 写出失败视为会话异常，关闭会话以触发上层清理。
func (s *BaseSession) sendLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case line := <-s.sendQueue:
			if err := s.writer.WriteLine(line); err != nil {
				_ = s.Close()
				return
			}
		}
	}
}
