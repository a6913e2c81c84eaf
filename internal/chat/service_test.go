package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mingle-chat/mingle-go/internal/network/acceptor"
	"github.com/mingle-chat/mingle-go/internal/network/session"
)

// testClient 包装一条客户端连接，按行读写并带超时。
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func (c *testClient) sendLine(line string) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err := c.conn.Write([]byte(line + "\n"))
	if err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

func (c *testClient) readLine() string {
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		c.t.Fatalf("read line: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

// expectEOF 断言连接已被服务端关闭。
func (c *testClient) expectEOF() {
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := c.r.ReadString('\n')
	if err != io.EOF {
		c.t.Fatalf("expected EOF, got err=%v", err)
	}
}

type ServiceSuite struct {
	suite.Suite

	svc    *Service
	acc    *acceptor.BaseAcceptor
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *ServiceSuite) SetupTest() {
	s.svc = NewService()

	acc, err := acceptor.NewTCPAcceptor("127.0.0.1:0", acceptor.Config{}, session.NewBaseSessionManager())
	s.Require().NoError(err)
	s.acc = acc

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_ = acc.Serve(ctx, s.svc)
	}()
}

func (s *ServiceSuite) TearDownTest() {
	s.cancel()
	s.NoError(s.acc.Close())
	select {
	case <-s.done:
	case <-time.After(time.Second):
		s.Fail("acceptor did not stop")
	}
}

// connect 建立一条客户端连接并消费 [CONNECTED] 通知。
func (s *ServiceSuite) connect() *testClient {
	conn, err := net.Dial("tcp", s.acc.Addr().String())
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })

	c := &testClient{t: s.T(), conn: conn, r: bufio.NewReader(conn)}
	s.Equal(NoticeConnected, c.readLine())
	return c
}

// connectPair 建立两条连接并等待双方配对成功。
func (s *ServiceSuite) connectPair() (*testClient, *testClient) {
	a := s.connect()
	b := s.connect()
	s.Equal(NoticeChatFound, a.readLine())
	s.Equal(NoticeChatFound, b.readLine())
	return a, b
}

func (s *ServiceSuite) TestSingleClientWaits() {
	c := s.connect()

	// 无人可配时发言得到提示，而不是被转发。
	c.sendLine("anyone here?")
	s.Equal(NoticeNoPartner, c.readLine())

	waiting, paired := s.svc.Stats()
	s.Equal(1, waiting)
	s.Equal(0, paired)
}

func (s *ServiceSuite) TestRelayBothDirections() {
	a, b := s.connectPair()

	a.sendLine("hello from a")
	s.Equal("hello from a", b.readLine())

	b.sendLine("hello from b")
	s.Equal("hello from b", a.readLine())

	// 同方向多行保序。
	a.sendLine("one")
	a.sendLine("two")
	a.sendLine("three")
	s.Equal("one", b.readLine())
	s.Equal("two", b.readLine())
	s.Equal("three", b.readLine())
}

func (s *ServiceSuite) TestHelpGoesToIssuerOnly() {
	a, b := s.connectPair()

	a.sendLine("/help")
	for _, want := range helpLines() {
		s.Equal(want, a.readLine())
	}

	// 帮助文本不会转发给对方；用一条后续消息验证顺序。
	a.sendLine("after help")
	s.Equal("after help", b.readLine())
}

func (s *ServiceSuite) TestDirectiveIsExactMatch() {
	a, b := s.connectPair()

	// 大小写或带参数的变体按聊天内容转发。
	a.sendLine("/EXIT")
	s.Equal("/EXIT", b.readLine())
	a.sendLine("/exit now")
	s.Equal("/exit now", b.readLine())
}

func (s *ServiceSuite) TestExitReturnsPartnerToPool() {
	a, b := s.connectPair()

	a.sendLine("/exit")
	a.expectEOF()

	// 幸存方收到通知，连接保持打开并回到等待池。
	s.Equal(NoticePartnerLeft, b.readLine())

	s.Eventually(func() bool {
		waiting, paired := s.svc.Stats()
		return waiting == 1 && paired == 0
	}, 2*time.Second, 10*time.Millisecond)

	// 新客户端接入后，幸存方应再次被配对。
	c := s.connect()
	s.Equal(NoticeChatFound, b.readLine())
	s.Equal(NoticeChatFound, c.readLine())

	b.sendLine("second round")
	s.Equal("second round", c.readLine())
}

func (s *ServiceSuite) TestDisconnectReturnsPartnerToPool() {
	a, b := s.connectPair()

	s.NoError(a.conn.Close())

	s.Equal(NoticePartnerLeft, b.readLine())
	s.Eventually(func() bool {
		waiting, paired := s.svc.Stats()
		return waiting == 1 && paired == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ServiceSuite) TestWaitingClientExit() {
	c := s.connect()

	c.sendLine("/exit")
	c.expectEOF()

	s.Eventually(func() bool {
		waiting, paired := s.svc.Stats()
		return waiting == 0 && paired == 0
	}, 2*time.Second, 10*time.Millisecond)
}

// matchResult 为并发接入场景中单个客户端的结果。
type matchResult struct {
	conn net.Conn
	err  error
}

// dialAndAwaitMatch 建立连接、等待配对成功，并校验配对通知恰好只到达一次。
// 在非测试协程中执行，错误通过返回值上报。
func dialAndAwaitMatch(addr string) matchResult {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return matchResult{err: err}
	}

	r := bufio.NewReader(conn)
	readLine := func(timeout time.Duration) (string, error) {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		line, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	for _, want := range []string{NoticeConnected, NoticeChatFound} {
		line, err := readLine(2 * time.Second)
		if err != nil {
			return matchResult{conn: conn, err: fmt.Errorf("waiting for %s: %w", want, err)}
		}
		if line != want {
			return matchResult{conn: conn, err: fmt.Errorf("want %s, got %q", want, line)}
		}
	}

	// 之后不应再有任何服务端主动消息，尤其不应出现第二次配对通知。
	line, err := readLine(150 * time.Millisecond)
	if err == nil {
		return matchResult{conn: conn, err: fmt.Errorf("unexpected extra line %q", line)}
	}
	if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
		return matchResult{conn: conn, err: err}
	}
	return matchResult{conn: conn}
}

func (s *ServiceSuite) TestConcurrentArrivalsPairEveryone() {
	const n = 20

	results := make(chan matchResult, n)
	for i := 0; i < n; i++ {
		go func() {
			results <- dialAndAwaitMatch(s.acc.Addr().String())
		}()
	}

	for i := 0; i < n; i++ {
		res := <-results
		if res.conn != nil {
			conn := res.conn
			s.T().Cleanup(func() { _ = conn.Close() })
		}
		s.NoError(res.err)
	}

	// 所有连接两两配对：等待池清空，无人落单，无人被重复配对。
	waiting, paired := s.svc.Stats()
	s.Equal(0, waiting)
	s.Equal(n, paired)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
