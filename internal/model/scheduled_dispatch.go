package model

// DispatchType 定时投递类型
type DispatchType string

const (
	DispatchTypeChatMessage DispatchType = "CHAT_MESSAGE"
	DispatchTypeEmail       DispatchType = "EMAIL"
)

// Valid 是否为已知类型
func (t DispatchType) Valid() bool {
	return t == DispatchTypeChatMessage || t == DispatchTypeEmail
}

// DispatchStatus 定时投递状态
// PENDING -> SENT | CANCELLED，两个终态都不可逆
type DispatchStatus string

const (
	DispatchStatusPending   DispatchStatus = "PENDING"
	DispatchStatusSent      DispatchStatus = "SENT"
	DispatchStatusCancelled DispatchStatus = "CANCELLED"
)

// IsTerminal 是否为终态
func (s DispatchStatus) IsTerminal() bool {
	return s == DispatchStatusSent || s == DispatchStatusCancelled
}

// ScheduledDispatch 定时投递任务
// 对应数据库 scheduled_dispatch 表
type ScheduledDispatch struct {
	// ID 雪花 ID，由服务层生成
	ID int64 `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`

	Type   DispatchType   `gorm:"column:type;type:varchar(20);not null;comment:CHAT_MESSAGE/EMAIL" json:"type"`
	Status DispatchStatus `gorm:"column:status;type:varchar(20);not null;index:ix_dispatch_due,priority:1;comment:PENDING/SENT/CANCELLED" json:"status"`

	// 聊天投递
	RoomKey  string `gorm:"column:room_key;type:varchar(64);comment:目标房间" json:"roomKey,omitempty"`
	SenderID string `gorm:"column:sender_id;type:varchar(100);comment:发送者，为空时使用 system" json:"senderId,omitempty"`
	Message  string `gorm:"column:message;type:varchar(2000);comment:聊天内容" json:"message,omitempty"`

	// 邮件投递
	Recipients   []ScheduledDispatchRecipient `gorm:"foreignKey:DispatchID;constraint:OnDelete:CASCADE" json:"-"`
	EmailSubject string                       `gorm:"column:email_subject;type:varchar(255);comment:邮件主题" json:"emailSubject,omitempty"`
	EmailBody    string                       `gorm:"column:email_body;type:text;comment:邮件正文" json:"emailBody,omitempty"`

	CreatedBy   string `gorm:"column:created_by;type:varchar(100);comment:创建者" json:"createdBy,omitempty"`
	ScheduledAt int64  `gorm:"column:scheduled_at;not null;index:ix_dispatch_due,priority:2;comment:计划执行时间(毫秒)" json:"scheduledAt"`
	ExecutedAt  *int64 `gorm:"column:executed_at;comment:实际执行时间(毫秒)，仅 SENT 时有值" json:"executedAt"`
	CreatedAt   int64  `gorm:"column:created_at;autoCreateTime:milli" json:"createdAt"`
}

// TableName 指定表名
func (ScheduledDispatch) TableName() string {
	return "scheduled_dispatch"
}

// RecipientEmails 收件人地址列表
func (d *ScheduledDispatch) RecipientEmails() []string {
	emails := make([]string, 0, len(d.Recipients))
	for _, r := range d.Recipients {
		emails = append(emails, r.Email)
	}
	return emails
}

// ScheduledDispatchRecipient 邮件收件人
// 对应数据库 scheduled_dispatch_recipients 表
type ScheduledDispatchRecipient struct {
	ID         uint   `gorm:"primaryKey"`
	DispatchID int64  `gorm:"column:dispatch_id;index;not null"`
	Email      string `gorm:"column:email;type:varchar(255);not null"`
}

// TableName 指定表名
func (ScheduledDispatchRecipient) TableName() string {
	return "scheduled_dispatch_recipients"
}
