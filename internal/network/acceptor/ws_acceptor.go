package acceptor

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	network "github.com/mingle-chat/mingle-go/internal/network"
	"github.com/mingle-chat/mingle-go/internal/network/session"
	"github.com/mingle-chat/mingle-go/pkg/log"
	"github.com/mingle-chat/mingle-go/pkg/metrics"
	"github.com/mingle-chat/mingle-go/pkg/util/merr"
)

// WSAcceptor 是 Acceptor 接口的 WebSocket 实现。
//
// 线协议映射：一个文本帧对应一行文本（不含行尾换行符）。
// 浏览器侧客户端可以据此直接用 WebSocket 接入，无需自行拼行。
type WSAcceptor struct {
	ln       net.Listener
	cfg      Config
	sessions session.SessionManager
	idAlloc  *session.IDAllocator
	upgrader websocket.Upgrader

	closeOnce sync.Once
}

// 确保 WSAcceptor 实现了 Acceptor 接口。
var _ Acceptor = (*WSAcceptor)(nil)

// NewWSAcceptor 在给定地址上监听 HTTP，并在 cfg.Path 上处理 WebSocket 升级。
func NewWSAcceptor(addr string, cfg Config, sm session.SessionManager) (*WSAcceptor, error) {
	if addr == "" {
		return nil, errors.New("acceptor: addr is empty")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, merr.WrapErrServerListen(addr, err.Error())
	}
	cfg = cfg.withDefaults()

	var upgrader websocket.Upgrader
	if cfg.Upgrader != nil {
		upgrader = *cfg.Upgrader
	}
	return &WSAcceptor{
		ln:       ln,
		cfg:      cfg,
		sessions: sm,
		idAlloc:  cfg.IDAllocator,
		upgrader: upgrader,
	}, nil
}

// Serve 实现 Acceptor.Serve。
func (a *WSAcceptor) Serve(ctx context.Context, h Handler) error {
	if h == nil {
		return errors.New("acceptor: handler is nil")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(a.cfg.Path, func(w http.ResponseWriter, r *http.Request) {
		a.handleUpgrade(ctx, w, r, h)
	})

	srv := &http.Server{
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	err := srv.Serve(a.ln)
	if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close 实现 Acceptor.Close。
func (a *WSAcceptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.ln.Close()
	})
	return err
}

// Addr 实现 Acceptor.Addr。
func (a *WSAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// handleUpgrade 处理单个 WebSocket 连接的升级与整个生命周期。
//
// 与 TCP 路径不同，每个 WebSocket 连接本身就运行在独立的 http 处理协程中，
// 读取与业务回调直接在当前协程串行执行。
func (a *WSAcceptor) handleUpgrade(parentCtx context.Context, w http.ResponseWriter, r *http.Request, h Handler) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.OnError(nil, network.StageAccept, err)
		log.Warn("websocket upgrade failed",
			zap.String("module", "acceptor"),
			zap.String("remote", r.RemoteAddr),
			zap.Error(err))
		return
	}

	metrics.ConnectionsTotal.WithLabelValues("ws").Inc()

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sess := newWSSession(ctx, a.idAlloc.Next(), conn, a.cfg.SendQueueSize)

	// 上下文取消时关闭会话，解除阻塞在 ReadMessage 上的当前协程。
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

	var cause error
	defer func() {
		h.OnSessionClosed(sess, cause)
		_ = sess.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if a.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(a.cfg.IdleTimeout))
		}

		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(err, net.ErrClosed) {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if terr := h.OnTimeout(sess); terr != nil {
					cause = terr
					return
				}
				continue
			}
			h.OnError(sess, network.StageReadLine, err)
			cause = err
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if len(data) > a.cfg.MaxLineBytes {
			err := merr.WrapErrLineTooLong(a.cfg.MaxLineBytes)
			h.OnError(sess, network.StageReadLine, err)
			cause = err
			return
		}

		h.OnLine(sess, trimEOL(data))
	}
}

func trimEOL(data []byte) string {
	n := len(data)
	if n > 0 && data[n-1] == '\n' {
		n--
	}
	if n > 0 && data[n-1] == '\r' {
		n--
	}
	return string(data[:n])
}

// wsSession 提供了 Session 接口基于 *websocket.Conn 的实现。
//
// 发送路径与 BaseSession 一致：Send 投递到队列，由专职发送协程写帧。
type wsSession struct {
	id uint64

	ctx    context.Context
	cancel context.CancelFunc

	conn *websocket.Conn

	sendQueue chan string

	closeOnce sync.Once
}

var _ session.Session = (*wsSession)(nil)

func newWSSession(parent context.Context, id uint64, conn *websocket.Conn, sendQueueSize int) *wsSession {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	ctx, cancel := context.WithCancel(parent)

	s := &wsSession{
		id:        id,
		ctx:       ctx,
		cancel:    cancel,
		conn:      conn,
		sendQueue: make(chan string, sendQueueSize),
	}
	go s.sendLoop()

	return s
}

func (s *wsSession) ID() uint64 {
	return s.id
}

func (s *wsSession) Context() context.Context {
	return s.ctx
}

func (s *wsSession) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *wsSession) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *wsSession) Send(line string) error {
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

func (s *wsSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.conn.Close()
	})
	return err
}

func (s *wsSession) sendLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case line := <-s.sendQueue:
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				_ = s.Close()
				return
			}
		}
	}
}
