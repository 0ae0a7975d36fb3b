// Package model 定义数据库实体模型
// 本文件定义聊天消息：BufferedMessage 是缓冲层中的不可变记录，ChatMessage 是落库实体
package model

import "time"

// MessageKind 消息类别
type MessageKind string

const (
	MessageKindText  MessageKind = "TEXT"  // 纯文本
	MessageKindMedia MessageKind = "MEDIA" // 图片、视频、音频、文件等
)

// BufferedMessage 房间缓冲中的一条消息
// 每次成功的 chat.send 产生一条，只有 flush 会把它移出缓冲
type BufferedMessage struct {
	ID        int64       `json:"id,string"` // 雪花 ID，落库幂等键
	RoomID    string      `json:"roomId"`
	SenderID  string      `json:"senderId"`
	Kind      MessageKind `json:"kind"`
	Content   string      `json:"content,omitempty"`
	MediaType string      `json:"mediaType,omitempty"`
	MediaURL  string      `json:"mediaUrl,omitempty"`
	Ts        int64       `json:"ts"` // 毫秒时间戳
}

// KindOf 根据是否携带媒体地址判断消息类别
func KindOf(mediaURL string) MessageKind {
	if mediaURL != "" {
		return MessageKindMedia
	}
	return MessageKindText
}

// ChatMessage 聊天消息落库实体
// 对应数据库 chat_message 表，按 (room_id, ts) 建联合索引用于历史查询
type ChatMessage struct {
	ID uint `gorm:"primaryKey"`

	// Uuid 消息雪花 ID，唯一索引保证重复 flush 不会产生重复行
	Uuid int64 `gorm:"column:uuid;uniqueIndex;type:bigint;not null;comment:消息雪花ID"`

	RoomID   string `gorm:"column:room_id;type:varchar(100);not null;index:ix_chat_room_ts,priority:1;comment:房间key"`
	SenderID string `gorm:"column:sender_id;type:varchar(100);not null;comment:发送者ID"`
	MsgType  string `gorm:"column:msg_type;type:varchar(50);not null;comment:消息类别 TEXT/MEDIA"`

	// 可空字段使用指针，空串落库为 NULL
	Content   *string `gorm:"column:content;type:varchar(2000);comment:文本内容"`
	MediaType *string `gorm:"column:media_type;type:varchar(20);comment:媒体类型"`
	MediaURL  *string `gorm:"column:media_url;type:varchar(500);comment:媒体地址"`

	Ts        int64     `gorm:"column:ts;not null;index:ix_chat_room_ts,priority:2;comment:发送时间(毫秒)"`
	CreatedAt time.Time `gorm:"column:created_at;comment:落库时间"`
}

// TableName 指定表名
func (ChatMessage) TableName() string {
	return "chat_message"
}

// NewChatMessage 由缓冲消息构造落库实体
func NewChatMessage(m BufferedMessage) ChatMessage {
	return ChatMessage{
		Uuid:      m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		MsgType:   string(m.Kind),
		Content:   nullable(m.Content),
		MediaType: nullable(m.MediaType),
		MediaURL:  nullable(m.MediaURL),
		Ts:        m.Ts,
	}
}

// Buffered 转回缓冲消息形态，用于历史查询合并
func (e ChatMessage) Buffered() BufferedMessage {
	return BufferedMessage{
		ID:        e.Uuid,
		RoomID:    e.RoomID,
		SenderID:  e.SenderID,
		Kind:      MessageKind(e.MsgType),
		Content:   deref(e.Content),
		MediaType: deref(e.MediaType),
		MediaURL:  deref(e.MediaURL),
		Ts:        e.Ts,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
