package request

// ScheduleDispatchRequest 创建定时投递请求
// POST /api/notifications/scheduled
type ScheduleDispatchRequest struct {
	Type         string   `json:"type" binding:"required,oneof=CHAT_MESSAGE EMAIL"`
	RoomKey      string   `json:"roomKey" binding:"required_if=Type CHAT_MESSAGE,max=64"`
	SenderID     string   `json:"senderId" binding:"max=100"`
	Message      string   `json:"message" binding:"required_if=Type CHAT_MESSAGE,max=2000"`
	Recipients   []string `json:"recipients" binding:"required_if=Type EMAIL,dive,email"`
	EmailSubject string   `json:"emailSubject" binding:"max=255"`
	EmailBody    string   `json:"emailBody"`
	ScheduledAt  int64    `json:"scheduledAt" binding:"required,gt=0"` // 毫秒时间戳
}

// DispatchIDUri 路径参数 /:id
type DispatchIDUri struct {
	ID int64 `uri:"id" binding:"required"`
}
