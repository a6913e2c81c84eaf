package chat

// Directive 表示客户端发来的控制指令。
type Directive int

const (
	// DirectiveNone 表示该行不是指令，应作为聊天内容转发。
	DirectiveNone Directive = iota

	// DirectiveExit 表示客户端请求离开当前聊天。
	DirectiveExit

	// DirectiveHelp 表示客户端请求帮助文本。
	DirectiveHelp
)

const (
	cmdExit = "/exit"
	cmdHelp = "/help"
)

// ParseDirective 判断一行文本是否为控制指令。
//
// 匹配规则是整行精确匹配且大小写敏感：
// "/EXIT"、"/exit now"、" /exit" 都不是指令，会被当作聊天内容转发。
func ParseDirective(line string) Directive {
	switch line {
	case cmdExit:
		return DirectiveExit
	case cmdHelp:
		return DirectiveHelp
	default:
		return DirectiveNone
	}
}

// String 返回指令的线协议形式，用于日志与监控标签。
func (d Directive) String() string {
	switch d {
	case DirectiveExit:
		return cmdExit
	case DirectiveHelp:
		return cmdHelp
	default:
		return "none"
	}
}
