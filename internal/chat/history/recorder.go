// Package history 提供聊天事件的落盘记录能力。
//
// 记录是尽力而为的：落盘失败只记日志，绝不反压或中断聊天路径。
package history

import (
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/mingle-chat/mingle-go/pkg/log"
)

// 事件类型。
const (
	EventPairStarted = "pair_started"
	EventMessage     = "message"
	EventPairEnded   = "pair_ended"
)

// Event 表示一条可落盘的聊天事件。
//
// 说明：
//   - From 为发出方的会话 ID，对 pair_started/pair_ended 事件为 0；
//   - Line 仅在 message 事件中携带聊天内容；
//   - Reason 仅在 pair_ended 事件中携带结束原因（exit/disconnect）。
type Event struct {
	Time   time.Time `json:"time"`
	Kind   string    `json:"kind"`
	Pair   uint64    `json:"pair"`
	From   uint64    `json:"from,omitempty"`
	Line   string    `json:"line,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// Recorder 抽象了聊天事件的记录后端。
type Recorder interface {
	// Record 记录一条事件。实现必须是并发安全且尽力而为的。
	Record(ev Event)

	// Close 刷出并释放底层资源。
	Close() error
}

// NopRecorder 丢弃所有事件，用于未开启历史记录的部署。
type NopRecorder struct{}

var _ Recorder = NopRecorder{}

func (NopRecorder) Record(Event) {}

func (NopRecorder) Close() error { return nil }

// FileRecorder 将事件以 JSON Lines 格式追加写入单个文件。
//
// 每条事件一行，便于用常规日志工具检索与回放。
type FileRecorder struct {
	mu sync.Mutex
	f  *os.File
}

var _ Recorder = (*FileRecorder)(nil)

// NewFileRecorder 打开（必要时创建）path 指向的记录文件。
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileRecorder{f: f}, nil
}

// Record 实现 Recorder.Record。
func (r *FileRecorder) Record(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	data, err := sonic.Marshal(ev)
	if err != nil {
		log.Warn("marshal history event failed", zap.String("kind", ev.Kind), zap.Error(err))
		return
	}
	data = append(data, '\n')

	r.mu.Lock()
	_, err = r.f.Write(data)
	r.mu.Unlock()
	if err != nil {
		log.RatedWarn(1, "write history event failed", zap.Error(err))
	}
}

// Close 实现 Recorder.Close。
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
