package respond

import (
	"strconv"

	"chat_relay_server/internal/model"
)

// 出站帧类型
const (
	FrameTypePong    = "pong"
	FrameTypeMessage = "chat.message"
	FrameTypeError   = "error"
)

// ChatMessageFrame 房间广播的聊天消息
type ChatMessageFrame struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	SenderID  string `json:"senderId"`
	Kind      string `json:"kind"`
	Content   string `json:"content,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	Ts        int64  `json:"ts"`
}

// NewChatMessageFrame 由缓冲消息构造广播帧
func NewChatMessageFrame(m model.BufferedMessage) ChatMessageFrame {
	return ChatMessageFrame{
		Type:      FrameTypeMessage,
		ID:        strconv.FormatInt(m.ID, 10),
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Kind:      string(m.Kind),
		Content:   m.Content,
		MediaType: m.MediaType,
		MediaURL:  m.MediaURL,
		Ts:        m.Ts,
	}
}

// PongFrame ping 的应答
type PongFrame struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
}

// ErrorFrame 仅回给发送方，说明其自身的帧被拒绝
type ErrorFrame struct {
	Type string `json:"type"`
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
