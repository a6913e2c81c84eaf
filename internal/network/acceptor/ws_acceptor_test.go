package acceptor

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/mingle-chat/mingle-go/internal/network/session"
	"github.com/mingle-chat/mingle-go/pkg/util/merr"
)

type WSAcceptorSuite struct {
	suite.Suite

	acc     *WSAcceptor
	handler *testHandler
	cancel  context.CancelFunc
	done    chan struct{}
}

func (s *WSAcceptorSuite) SetupTest() {
	acc, err := NewWSAcceptor("127.0.0.1:0", Config{MaxLineBytes: 64}, session.NewBaseSessionManager())
	s.Require().NoError(err)

	s.acc = acc
	s.handler = newTestHandler()
	s.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		_ = acc.Serve(ctx, s.handler)
	}()
}

func (s *WSAcceptorSuite) TearDownTest() {
	s.cancel()
	s.NoError(s.acc.Close())
	select {
	case <-s.done:
	case <-time.After(time.Second):
		s.Fail("acceptor did not stop")
	}
}

func (s *WSAcceptorSuite) dial() *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.acc.Addr().String()+"/ws", nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *WSAcceptorSuite) waitSession() session.Session {
	select {
	case sess := <-s.handler.opened:
		return sess
	case <-time.After(time.Second):
		s.Require().Fail("no session opened")
		return nil
	}
}

func (s *WSAcceptorSuite) TestEcho() {
	conn := s.dial()
	sess := s.waitSession()

	// 一个文本帧对应一行，行尾换行符被剥掉。
	s.NoError(conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	s.NoError(conn.WriteMessage(websocket.TextMessage, []byte("world\r\n")))
	s.Equal("hello", <-s.handler.lines)
	s.Equal("world", <-s.handler.lines)

	s.NoError(sess.Send("greetings"))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	mt, data, err := conn.ReadMessage()
	s.NoError(err)
	s.Equal(websocket.TextMessage, mt)
	s.Equal("greetings", string(data))
}

func (s *WSAcceptorSuite) TestClientGracefulClose() {
	conn := s.dial()
	sess := s.waitSession()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	s.NoError(conn.WriteMessage(websocket.CloseMessage, msg))

	select {
	case err := <-s.handler.closed:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("session close not observed")
	}

	select {
	case <-sess.Context().Done():
	case <-time.After(time.Second):
		s.Fail("session context not canceled")
	}
}

func (s *WSAcceptorSuite) TestFrameTooLong() {
	conn := s.dial()
	s.waitSession()

	s.NoError(conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 256))))

	select {
	case err := <-s.handler.errs:
		s.ErrorIs(err, merr.ErrLineTooLong)
	case <-time.After(time.Second):
		s.Fail("oversized frame not rejected")
	}

	select {
	case err := <-s.handler.closed:
		s.ErrorIs(err, merr.ErrLineTooLong)
	case <-time.After(time.Second):
		s.Fail("session not closed after oversized frame")
	}
}

// TCP 与 WebSocket 接入器共用同一个 SessionManager 时，
// 必须共用 ID 分配器，两侧的会话 ID 才不会冲突。
func (s *WSAcceptorSuite) TestSharedIDAllocatorAcrossAcceptors() {
	sm := session.NewBaseSessionManager()
	cfg := Config{IDAllocator: session.NewIDAllocator()}
	h := newTestHandler()

	tcpAcc, err := NewTCPAcceptor("127.0.0.1:0", cfg, sm)
	s.Require().NoError(err)
	wsAcc, err := NewWSAcceptor("127.0.0.1:0", cfg, sm)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tcpDone := make(chan struct{})
	wsDone := make(chan struct{})
	go func() {
		defer close(tcpDone)
		_ = tcpAcc.Serve(ctx, h)
	}()
	go func() {
		defer close(wsDone)
		_ = wsAcc.Serve(ctx, h)
	}()

	tcpConn, err := net.Dial("tcp", tcpAcc.Addr().String())
	s.Require().NoError(err)
	defer tcpConn.Close()
	wsConn, _, err := websocket.DefaultDialer.Dial("ws://"+wsAcc.Addr().String()+"/ws", nil)
	s.Require().NoError(err)
	defer wsConn.Close()

	seen := make(map[uint64]bool)
	for i := 0; i < 2; i++ {
		select {
		case sess := <-h.opened:
			s.False(seen[sess.ID()], "duplicate session id %d", sess.ID())
			seen[sess.ID()] = true
		case err := <-h.errs:
			s.Require().NoError(err)
		case <-time.After(time.Second):
			s.Require().Fail("session not opened")
		}
	}

	cancel()
	s.NoError(tcpAcc.Close())
	s.NoError(wsAcc.Close())
	for _, done := range []chan struct{}{tcpDone, wsDone} {
		select {
		case <-done:
		case <-time.After(time.Second):
			s.Fail("acceptor did not stop")
		}
	}
}

func TestWSAcceptorSuite(t *testing.T) {
	suite.Run(t, new(WSAcceptorSuite))
}
