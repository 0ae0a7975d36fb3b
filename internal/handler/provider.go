// Package handler 提供 HTTP 请求处理器
// 本文件定义 Handler 聚合结构和构造函数
package handler

import (
	"chat_relay_server/internal/service"
)

// Handlers 聚合所有 Handler 实例
// Router 层通过此结构访问各个 Handler
type Handlers struct {
	Ws       *WsHandler
	Message  *MessageHandler
	Dispatch *DispatchHandler
	Presence *PresenceHandler
}

// NewHandlers 创建并注入所有 Handler 实例
func NewHandlers(svc *service.Services, allowAnonymous bool) *Handlers {
	return &Handlers{
		Ws:       NewWsHandler(svc.Gateway, allowAnonymous),
		Message:  NewMessageHandler(svc.Buffer),
		Dispatch: NewDispatchHandler(svc.Dispatch),
		Presence: NewPresenceHandler(svc.Presence),
	}
}
