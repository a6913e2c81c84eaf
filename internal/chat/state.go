package chat

// State 表示一名参与者在配对生命周期中的状态。
//
// 状态流转：
//   - 连接建立 -> StateWaiting；
//   - 配对成功 -> StatePaired；
//   - 对方离开 -> 回到 StateWaiting（连接保持打开）；
//   - 自己退出或断开 -> StateClosed（终态）。
type State int

const (
	StateWaiting State = iota
	StatePaired
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StatePaired:
		return "paired"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
