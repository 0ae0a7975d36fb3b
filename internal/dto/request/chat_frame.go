package request

// 入站帧类型
const (
	FrameTypePing  = "ping"
	FrameTypeJoin  = "chat.join"
	FrameTypeLeave = "chat.leave"
	FrameTypeSend  = "chat.send"
)

// ChatFrame 客户端通过 WebSocket 发送的一帧 JSON
// chat.send 的校验规则：必须有 roomId；content 与 mediaType+mediaUrl 至少其一
// 客户端携带的 senderId / ts 会被服务端覆盖
type ChatFrame struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId" validate:"required,max=100"`
	SenderID  string `json:"senderId,omitempty"`
	Content   string `json:"content" validate:"required_without=MediaURL,max=2000"`
	MediaType string `json:"mediaType" validate:"required_with=MediaURL,max=20"`
	MediaURL  string `json:"mediaUrl" validate:"required_with=MediaType,max=500"`
	Ts        int64  `json:"ts,omitempty"`
}
