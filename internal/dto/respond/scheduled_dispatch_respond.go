package respond

import (
	"strconv"

	"chat_relay_server/internal/model"
)

// ScheduledDispatchRespond 定时投递任务
type ScheduledDispatchRespond struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Status       string   `json:"status"`
	RoomKey      string   `json:"roomKey,omitempty"`
	SenderID     string   `json:"senderId,omitempty"`
	Message      string   `json:"message,omitempty"`
	Recipients   []string `json:"recipients,omitempty"`
	EmailSubject string   `json:"emailSubject,omitempty"`
	EmailBody    string   `json:"emailBody,omitempty"`
	CreatedBy    string   `json:"createdBy,omitempty"`
	ScheduledAt  int64    `json:"scheduledAt"`
	ExecutedAt   *int64   `json:"executedAt"`
	CreatedAt    int64    `json:"createdAt"`
}

// NewScheduledDispatchRespond 由实体构造响应
func NewScheduledDispatchRespond(d *model.ScheduledDispatch) ScheduledDispatchRespond {
	return ScheduledDispatchRespond{
		ID:           strconv.FormatInt(d.ID, 10),
		Type:         string(d.Type),
		Status:       string(d.Status),
		RoomKey:      d.RoomKey,
		SenderID:     d.SenderID,
		Message:      d.Message,
		Recipients:   d.RecipientEmails(),
		EmailSubject: d.EmailSubject,
		EmailBody:    d.EmailBody,
		CreatedBy:    d.CreatedBy,
		ScheduledAt:  d.ScheduledAt,
		ExecutedAt:   d.ExecutedAt,
		CreatedAt:    d.CreatedAt,
	}
}

// NewScheduledDispatchList 构造列表响应
func NewScheduledDispatchList(list []model.ScheduledDispatch) []ScheduledDispatchRespond {
	out := make([]ScheduledDispatchRespond, 0, len(list))
	for i := range list {
		out = append(out, NewScheduledDispatchRespond(&list[i]))
	}
	return out
}
