// Package chat 实现匿名一对一随机配对聊天的核心业务逻辑。
//
// 职责划分：
//   - WaitingPool 维护等待配对的参与者集合；
//   - Pair 表示一段正在进行的一对一会话；
//   - Service 作为接入层回调的实现，驱动配对、转发与退出等状态流转。
package chat

// 服务端下发给客户端的通知行。
//
// 这些是线协议的一部分：客户端按整行前缀识别通知，
// 任何改动都意味着协议层面的不兼容。
const (
	// NoticeConnected 在连接建立后立即下发。
	NoticeConnected = "[CONNECTED]"

	// NoticeChatFound 在配对成功后分别下发给双方。
	NoticeChatFound = "[CHAT_FOUND]"

	// NoticePartnerLeft 在对方退出或断开后下发给仍在线的一方。
	NoticePartnerLeft = "[PARTNER_LEFT]"

	// NoticeNoPartner 在尚未配对的参与者发送聊天内容时下发。
	NoticeNoPartner = "[NO_PARTNER]"

	// noticeHelpPrefix 为帮助文本每一行的前缀。
	noticeHelpPrefix = "[HELP] "
)

// helpLines 返回 /help 指令的应答行。
func helpLines() []string {
	return []string{
		noticeHelpPrefix + "/exit - leave the current chat",
		noticeHelpPrefix + "/help - show this message",
	}
}
