// Package handler 提供 HTTP 请求处理器
// 本文件处理聊天历史查询
package handler

import (
	"chat_relay_server/internal/dto/request"
	"chat_relay_server/internal/dto/respond"
	"chat_relay_server/internal/service"

	"github.com/gin-gonic/gin"
)

// MessageHandler 聊天历史
type MessageHandler struct {
	historySvc service.HistoryService
}

// NewMessageHandler 创建历史消息处理器
func NewMessageHandler(historySvc service.HistoryService) *MessageHandler {
	return &MessageHandler{historySvc: historySvc}
}

// GetHistory 房间最近消息，含尚未落库的部分
// GET /api/chat/messages?roomKey=xxx&limit=50
// 响应: respond.ChatHistoryRespond，按时间升序
func (h *MessageHandler) GetHistory(c *gin.Context) {
	var req request.ChatHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	messages, err := h.historySvc.LoadRecent(c.Request.Context(), req.RoomKey, req.Limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.NewChatHistoryRespond(req.RoomKey, messages))
}
