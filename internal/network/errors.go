package network

// Stage 表示一条连接收发链路中的处理阶段。
//
// 主要用于在回调中标记错误发生的位置，便于监控与排查。
type Stage string

const (
	StageAccept   Stage = "accept"    // 接受新连接（TCP Accept / WebSocket 升级）
	StageReadLine Stage = "read_line" // 从底层连接读取一行文本
	StageDispatch Stage = "dispatch"  // 行文本 -> 业务处理
	StageSend     Stage = "send"      // 向对端写出一行文本
)
