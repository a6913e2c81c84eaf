package acceptor

import (
	"context"
	"net"
	"time"

	"github.com/gorilla/websocket"

	network "github.com/mingle-chat/mingle-go/internal/network"
	"github.com/mingle-chat/mingle-go/internal/network/lineio"
	"github.com/mingle-chat/mingle-go/internal/network/session"
)

// Config 描述 Acceptor 在会话层面的配置。
//
// 说明：
//   - SendQueueSize 控制每个连接的发送队列容量；
//   - MaxLineBytes 控制单行文本的字节上限，超限的行会导致会话被关闭；
//   - IdleTimeout 为连接空闲上限（为 0 表示不设置 read deadline）；
//   - MaxConnections 为同时服务的连接数上限，同时也是连接处理协程池的容量；
//   - Path 控制 WebSocket 的升级路径（如 "/ws"）。
type Config struct {
	SendQueueSize int
	MaxLineBytes  int

	IdleTimeout time.Duration

	MaxConnections int

	Path string

	// IDAllocator 为会话 ID 分配器。多个 Acceptor 共用同一个 SessionManager
	// 时必须共用同一个分配器，否则会话 ID 会相互冲突。
	// 若为 nil，则使用私有的分配器。
	IDAllocator *session.IDAllocator

	// Upgrader 允许调用方自定义 gorilla/websocket 的升级行为。
	// 若为 nil，则使用内部默认的 Upgrader。
	Upgrader *websocket.Upgrader
}

// 默认配置。
func defaultConfig() Config {
	return Config{
		SendQueueSize:  256,
		MaxLineBytes:   lineio.DefaultMaxLineBytes,
		MaxConnections: 4096,
		Path:           "/ws",
	}
}

func (c Config) withDefaults() Config {
	def := defaultConfig()
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = def.SendQueueSize
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = def.MaxLineBytes
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = def.MaxConnections
	}
	if c.Path == "" {
		c.Path = def.Path
	}
	if c.IDAllocator == nil {
		c.IDAllocator = session.NewIDAllocator()
	}
	return c
}

// Handler 由框架使用者实现，用于在服务器侧的各个阶段插入自定义逻辑。
//
// 说明：
//   - OnLine/OnSessionOpened/OnSessionClosed 在单个会话的收发协程中被串行调用，
//     应避免耗时操作阻塞网络收发；
//   - 不同会话之间的回调是并发的，实现方需要自行保证共享状态的并发安全。
type Handler interface {
	// OnSessionOpened 在连接建立并创建好会话后被调用。
	OnSessionOpened(sess session.Session)

	// OnLine 在成功读取到一行文本后被调用。
	//
	// line 已剥掉行尾的 '\r' 与 '\n'。
	OnLine(sess session.Session, line string)

	// OnSessionClosed 在会话生命周期结束时被调用。
	//
	// 参数 err 为关闭原因，正常关闭（对端主动断开或本端 Close）时为 nil。
	OnSessionClosed(sess session.Session, err error)

	// OnError 在会话处理的各个阶段发生错误时被调用。
	//
	// stage 用于标识错误发生的位置，便于监控与排查。
	OnError(sess session.Session, stage network.Stage, err error)

	// OnTimeout 在会话读空闲超过 IdleTimeout 时被调用。
	//
	// 返回非 nil 时结束该会话；返回 nil 则忽略本次超时，继续读取。
	OnTimeout(sess session.Session) error
}

// Acceptor 抽象了服务器侧的接入层。
//
// 职责：
//   - 在监听地址上接受新连接，为每个连接创建 Session；
//   - 驱动按行读取，并调用 Handler 的各阶段回调；
//   - 维护当前活跃会话列表，便于运维与监控。
type Acceptor interface {
	// Serve 启动接入循环，阻塞直至 ctx 取消或 Close 被调用。
	//
	// 单个连接的接受失败不会终止接入循环，只会被记录并跳过。
	Serve(ctx context.Context, h Handler) error

	// Close 停止接受新连接并关闭监听器。
	Close() error

	// Addr 返回实际监听的地址（例如监听 ":0" 时由系统分配的端口）。
	Addr() net.Addr
}
