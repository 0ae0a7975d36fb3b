package request

// ChatHistoryRequest 历史消息查询
// GET /api/chat/messages?roomKey=xxx&limit=50
type ChatHistoryRequest struct {
	RoomKey string `form:"roomKey" binding:"required,max=100"`
	Limit   int    `form:"limit" binding:"omitempty,min=1"`
}
