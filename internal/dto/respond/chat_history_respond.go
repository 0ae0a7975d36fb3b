package respond

import "chat_relay_server/internal/model"

// ChatHistoryRespond 历史消息，按时间升序
type ChatHistoryRespond struct {
	RoomKey  string             `json:"roomKey"`
	Messages []ChatMessageFrame `json:"messages"`
}

// NewChatHistoryRespond 构造历史消息响应
func NewChatHistoryRespond(roomKey string, messages []model.BufferedMessage) ChatHistoryRespond {
	frames := make([]ChatMessageFrame, 0, len(messages))
	for _, m := range messages {
		frames = append(frames, NewChatMessageFrame(m))
	}
	return ChatHistoryRespond{RoomKey: roomKey, Messages: frames}
}
