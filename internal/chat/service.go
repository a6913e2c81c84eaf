package chat

import (
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/mingle-chat/mingle-go/internal/chat/history"
	network "github.com/mingle-chat/mingle-go/internal/network"
	"github.com/mingle-chat/mingle-go/internal/network/acceptor"
	"github.com/mingle-chat/mingle-go/internal/network/session"
	"github.com/mingle-chat/mingle-go/pkg/log"
	"github.com/mingle-chat/mingle-go/pkg/metrics"
	"github.com/mingle-chat/mingle-go/pkg/util/merr"
)

// Service 实现接入层回调，驱动配对、转发与退出等状态流转。
//
// 并发模型：
//   - participants、等待池与所有状态流转由单把互斥锁 mu 串行化；
//   - 与状态流转绑定的通知（[CHAT_FOUND]、[PARTNER_LEFT]）在锁内下发，
//     保证通知与后续聊天内容之间的先后顺序；Send 本身只是异步入队，
//     不会在锁内等待网络写出；
//   - 连接关闭等其余副作用在锁外执行。
type Service struct {
	lg *log.MLogger

	mu           sync.Mutex
	participants map[uint64]*participant
	pool         *WaitingPool

	pairSeq  atomic.Uint64
	recorder history.Recorder
}

// 确保 Service 实现了接入层的 Handler 接口。
var _ acceptor.Handler = (*Service)(nil)

// Option 配置 Service 的可选行为。
type Option func(*Service)

// WithRecorder 指定聊天事件的记录后端。
func WithRecorder(r history.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService 创建一个聊天服务。
func NewService(opts ...Option) *Service {
	s := &Service{
		lg:           log.With(log.FieldModule("chat")),
		participants: make(map[uint64]*participant),
		pool:         NewWaitingPool(),
		recorder:     history.NopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnSessionOpened 实现 acceptor.Handler.OnSessionOpened。
//
// 新参与者先收到 [CONNECTED]，随后进入等待池并尝试配对。
// 先发通知再入池，保证 [CONNECTED] 一定先于 [CHAT_FOUND] 送达。
func (s *Service) OnSessionOpened(sess session.Session) {
	id := sess.ID()

	s.mu.Lock()
	s.participants[id] = &participant{sess: sess, state: StateWaiting}
	s.mu.Unlock()

	s.lg.Info("participant connected",
		log.FieldClient(id),
		zap.String("remote", sess.RemoteAddr().String()))

	if err := sess.Send(NoticeConnected); err != nil {
		s.lg.Warn("send connected notice failed", log.FieldClient(id), zap.Error(err))
	}

	s.mu.Lock()
	p, ok := s.participants[id]
	if ok && p.state == StateWaiting {
		_ = s.pool.Enqueue(id)
	}
	s.mu.Unlock()

	s.syncWaitingGauge()
	s.matchLoop()
}

// OnLine 实现 acceptor.Handler.OnLine。
func (s *Service) OnLine(sess session.Session, line string) {
	switch d := ParseDirective(line); d {
	case DirectiveHelp:
		metrics.Directives.WithLabelValues(d.String()).Inc()
		for _, l := range helpLines() {
			if err := sess.Send(l); err != nil {
				return
			}
		}
	case DirectiveExit:
		metrics.Directives.WithLabelValues(d.String()).Inc()
		s.leave(sess.ID(), "exit")
	default:
		s.relay(sess, line)
	}
}

// OnSessionClosed 实现 acceptor.Handler.OnSessionClosed。
//
// 覆盖两种路径：对端异常断开，以及 /exit 之后本端主动关闭。
// 后者在 leave 中已完成清理，这里会发现参与者不存在并直接返回。
func (s *Service) OnSessionClosed(sess session.Session, err error) {
	if err != nil {
		s.lg.Warn("session closed with error", log.FieldClient(sess.ID()), zap.Error(err))
	}
	s.leave(sess.ID(), "disconnect")
}

// OnError 实现 acceptor.Handler.OnError。
func (s *Service) OnError(sess session.Session, stage network.Stage, err error) {
	fields := []zap.Field{zap.String("stage", string(stage)), zap.Error(err)}
	if sess != nil {
		fields = append(fields, log.FieldClient(sess.ID()))
	}
	s.lg.RatedWarn(1, "session error", fields...)
}

// OnTimeout 实现 acceptor.Handler.OnTimeout。
//
// 空闲超时直接结束会话，让久置的连接归还资源。
func (s *Service) OnTimeout(sess session.Session) error {
	return errors.New("chat: session idle timeout")
}

// relay 将一行聊天内容转发给对方。
//
// 尚未配对的参与者会收到 [NO_PARTNER] 提示。
func (s *Service) relay(sess session.Session, line string) {
	id := sess.ID()

	s.mu.Lock()
	p, ok := s.participants[id]
	if !ok || p.state != StatePaired {
		s.mu.Unlock()
		s.lg.Debug("drop line from unpaired participant",
			zap.Error(merr.WrapErrClientNotPaired(id)))
		_ = sess.Send(NoticeNoPartner)
		return
	}
	pair := p.pair
	partner := pair.partnerOf(id)
	s.mu.Unlock()

	if err := partner.sess.Send(line); err != nil {
		// 对方发送队列已关闭，断开清理由其读循环触发，这里只记录。
		s.lg.Warn("relay line failed",
			log.FieldPair(pair.id),
			log.FieldClient(partner.sess.ID()),
			zap.Error(err))
		return
	}

	metrics.RelayedLines.Inc()
	s.recorder.Record(history.Event{
		Kind: history.EventMessage,
		Pair: pair.id,
		From: id,
		Line: line,
	})
}

// leave 将参与者移出服务：等待中的直接出池，已配对的结束配对并
// 把仍在线的一方放回等待池。reason 为 "exit" 或 "disconnect"。
func (s *Service) leave(id uint64, reason string) {
	s.mu.Lock()
	p, ok := s.participants[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	var (
		partner *participant
		pairID  uint64
	)
	switch p.state {
	case StateWaiting:
		s.pool.Remove(id)
	case StatePaired:
		pair := p.pair
		pairID = pair.id
		partner = pair.partnerOf(id)
		p.pair = nil
		partner.pair = nil
		partner.state = StateWaiting

		// 对方的连接保持打开。[PARTNER_LEFT] 必须先于重新入池：
		// 一旦回池，随时可能再次配对，不能让 [CHAT_FOUND] 抢在离开通知之前送达。
		if err := partner.sess.Send(NoticePartnerLeft); err != nil {
			s.lg.Warn("send partner-left notice failed",
				log.FieldClient(partner.sess.ID()), zap.Error(err))
		}
		_ = s.pool.Enqueue(partner.sess.ID())
	}
	p.state = StateClosed
	delete(s.participants, id)
	s.mu.Unlock()

	if partner != nil {
		metrics.ActivePairs.Dec()
		metrics.PairsEnded.WithLabelValues(reason).Inc()
		s.recorder.Record(history.Event{
			Kind:   history.EventPairEnded,
			Pair:   pairID,
			From:   id,
			Reason: reason,
		})
		s.lg.Info("pair ended",
			log.FieldPair(pairID),
			log.FieldClient(id),
			zap.String("reason", reason))
	}

	s.lg.Info("participant left", log.FieldClient(id), zap.String("reason", reason))
	_ = p.sess.Close()

	s.syncWaitingGauge()
	s.matchLoop()
}

// matchLoop 反复尝试从等待池中配对，直到剩余不足两人。
func (s *Service) matchLoop() {
	for {
		pair := s.tryMatch()
		if pair == nil {
			return
		}

		metrics.ActivePairs.Inc()
		s.syncWaitingGauge()
		s.recorder.Record(history.Event{
			Kind: history.EventPairStarted,
			Pair: pair.id,
		})
		s.lg.Info("pair started",
			log.FieldPair(pair.id),
			zap.Uint64("clientA", pair.a.sess.ID()),
			zap.Uint64("clientB", pair.b.sess.ID()))
	}
}

// tryMatch 在锁内取出两名等待者并建立配对。
func (s *Service) tryMatch() *Pair {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, b, ok := s.pool.TryDequeuePair()
	if !ok {
		return nil
	}

	pa := s.participants[a]
	pb := s.participants[b]

	pair := &Pair{id: s.pairSeq.Add(1), a: pa, b: pb}
	pa.state, pb.state = StatePaired, StatePaired
	pa.pair, pb.pair = pair, pair

	// [CHAT_FOUND] 在锁内下发：转发路径同样要过这把锁，
	// 保证对端的第一条聊天内容不会先于配对通知送达。
	for _, p := range []*participant{pa, pb} {
		if err := p.sess.Send(NoticeChatFound); err != nil {
			s.lg.Warn("send chat-found notice failed",
				log.FieldPair(pair.id),
				log.FieldClient(p.sess.ID()),
				zap.Error(err))
		}
	}
	return pair
}

// syncWaitingGauge 用等待池的真实长度刷新监控指标。
func (s *Service) syncWaitingGauge() {
	metrics.WaitingClients.Set(float64(s.pool.Len()))
}

// Stats 返回当前等待与配对数量，用于运维观测与测试。
func (s *Service) Stats() (waiting, paired int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.participants {
		switch p.state {
		case StateWaiting:
			waiting++
		case StatePaired:
			paired++
		}
	}
	return waiting, paired
}
