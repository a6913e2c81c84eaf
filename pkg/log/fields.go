package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldClient 返回一个包含客户端连接 ID 的 zap 字段。
func FieldClient(id uint64) zap.Field {
	return zap.Uint64("client", id)
}

// FieldPair 返回一个包含配对会话 ID 的 zap 字段。
func FieldPair(id uint64) zap.Field {
	return zap.Uint64("pair", id)
}
