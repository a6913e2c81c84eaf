package acceptor

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	network "github.com/mingle-chat/mingle-go/internal/network"
	"github.com/mingle-chat/mingle-go/internal/network/lineio"
	"github.com/mingle-chat/mingle-go/internal/network/session"
	"github.com/mingle-chat/mingle-go/pkg/log"
	"github.com/mingle-chat/mingle-go/pkg/metrics"
	"github.com/mingle-chat/mingle-go/pkg/util/conc"
	"github.com/mingle-chat/mingle-go/pkg/util/merr"
)

// BaseAcceptor 是 Acceptor 接口的 TCP 实现。
//
// 设计目标：
//   - 对外只暴露 Acceptor 接口和 Handler 回调，不绑定具体业务逻辑；
//   - 内部负责：监听端口、接受连接、创建 Session、驱动按行读取并回调 Handler；
//   - 每个连接由协程池中的一个 worker 串行处理消息，保证同一 Session 上 Handler 串行执行。
type BaseAcceptor struct {
	ln       net.Listener
	cfg      Config
	sessions session.SessionManager
	idAlloc  *session.IDAllocator
	workers  *conc.Pool

	closeOnce sync.Once
}

// 确保 BaseAcceptor 实现了 Acceptor 接口。
var _ Acceptor = (*BaseAcceptor)(nil)

// perSessionQueueSize 为单个会话的待处理行队列容量。
const perSessionQueueSize = 256

// NewBaseAcceptor 使用已有的 Listener 创建一个基础接入器。
//
// 参数：
//   - ln ：已创建好的 net.Listener（例如 TCP 监听器）；
//   - cfg：会话层配置，零值字段使用默认值；
//   - sm ：SessionManager，可为 nil；非 nil 时会在连接建立/关闭时自动注册和移除 Session。
func NewBaseAcceptor(ln net.Listener, cfg Config, sm session.SessionManager) (*BaseAcceptor, error) {
	if ln == nil {
		return nil, errors.New("acceptor: listener is nil")
	}
	cfg = cfg.withDefaults()

	// 单条连接的 panic 只终止该连接的处理任务，不拖垮整个进程。
	workers, err := conc.NewPool(cfg.MaxConnections, conc.WithConcealPanic(true))
	if err != nil {
		return nil, err
	}
	return &BaseAcceptor{
		ln:       ln,
		cfg:      cfg,
		sessions: sm,
		idAlloc:  cfg.IDAllocator,
		workers:  workers,
	}, nil
}

// NewTCPAcceptor 在给定地址上监听 TCP，并创建一个基础接入器。
//
// 监听失败（端口被占用、地址非法）时返回 merr.ErrServerListen，
// 调用方应将其视为致命错误并终止启动。
func NewTCPAcceptor(addr string, cfg Config, sm session.SessionManager) (*BaseAcceptor, error) {
	if addr == "" {
		return nil, errors.New("acceptor: addr is empty")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, merr.WrapErrServerListen(addr, err.Error())
	}
	return NewBaseAcceptor(ln, cfg, sm)
}

// Serve 实现 Acceptor.Serve。
func (a *BaseAcceptor) Serve(ctx context.Context, h Handler) error {
	if h == nil {
		return errors.New("acceptor: handler is nil")
	}

	lg := log.With(zap.String("module", "acceptor"), zap.String("addr", a.ln.Addr().String()))

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := a.ln.Accept()
		if err != nil {
			// 上层已取消或接入器已关闭，视为正常退出。
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			// 单次 Accept 失败不终止接入循环。
			h.OnError(nil, network.StageAccept, err)
			lg.Warn("accept failed, keep serving", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		metrics.ConnectionsTotal.WithLabelValues("tcp").Inc()

		wg.Add(1)
		c := conn
		if err := a.workers.Submit(func() {
			defer wg.Done()
			a.handleConnection(ctx, c, h)
		}); err != nil {
			wg.Done()
			_ = c.Close()
			lg.Warn("submit connection to worker pool failed", zap.Error(err))
		}
	}
}

// Close 实现 Acceptor.Close。
func (a *BaseAcceptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.ln.Close()
		a.workers.Release()
	})
	return err
}

// Addr 实现 Acceptor.Addr。
func (a *BaseAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// handleConnection 处理单个连接的生命周期。
//
// 流程：
//  1. 分配会话 ID 并创建 Session；
//  2. 可选地将 Session 注册到 SessionManager；
//  3. 调用 Handler.OnSessionOpened；
//  4. 通过读协程循环按行读取文本，将结果投递到 per-session 行队列；
//  5. 在当前协程中按顺序从队列中取出行，并回调 Handler.OnLine；
//  6. 读取结束后，调用 Handler.OnSessionClosed 并关闭会话。
func (a *BaseAcceptor) handleConnection(parentCtx context.Context, conn net.Conn, h Handler) {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sess := session.NewBaseSession(ctx, a.idAlloc.Next(), conn, a.cfg.SendQueueSize)

	// 上下文取消时关闭会话，解除阻塞在 Read 上的读协程。
	go func() {
		<-ctx.Done()
		_ = sess.Close()
	}()

	if a.sessions != nil {
		if err := a.sessions.Register(sess); err != nil {
			h.OnError(sess, network.StageAccept, err)
			_ = sess.Close()
			return
		}
		defer func() {
			_ = a.sessions.Unregister(sess.ID())
		}()
	}

	h.OnSessionOpened(sess)

	// 在函数结束时负责通知断开和关闭。
	var cause error
	defer func() {
		h.OnSessionClosed(sess, cause)
		_ = sess.Close()
	}()

	// per-session 行队列：读协程负责投递，当前协程顺序消费。
	lines := make(chan string, perSessionQueueSize)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cause = a.readLoop(ctx, sess, conn, h, lines)
		close(lines)
	}()

	// 顺序消费行，确保同一 Session 上的业务 Handler 串行执行。
	for line := range lines {
		h.OnLine(sess, line)
	}

	wg.Wait()

	// 若没有显式错误原因，则使用上下文错误（排除正常取消）。
	if cause == nil && ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
		cause = ctx.Err()
	}
}

// readLoop 持续从连接中按行读取文本，将结果写入 lines 通道。
//
// 返回值：
//   - 非 nil error 表示读取过程中发生的错误（包括超限行与 OnTimeout 返回的错误）；
//   - nil 表示正常结束（对端关闭连接或本端 Close）。
func (a *BaseAcceptor) readLoop(ctx context.Context, sess session.Session, conn net.Conn, h Handler, lines chan<- string) error {
	r := lineio.NewReader(conn, a.cfg.MaxLineBytes)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if a.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(a.cfg.IdleTimeout))
		}

		line, err := r.ReadLine()
		if err != nil {
			// EOF/连接关闭视为正常断开。
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}

			// 空闲超时交由 OnTimeout 决定是否结束会话。
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if terr := h.OnTimeout(sess); terr != nil {
					return terr
				}
				continue
			}

			// 其他错误（包括超限行）交由 OnError 处理，并结束会话。
			h.OnError(sess, network.StageReadLine, err)
			return err
		}

		select {
		case lines <- line:
		case <-ctx.Done():
			return nil
		}
	}
}
