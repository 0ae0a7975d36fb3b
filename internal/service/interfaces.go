package service

import (
	"context"

	"chat_relay_server/internal/dto/request"
	"chat_relay_server/internal/model"
	"chat_relay_server/internal/service/chat"
	"chat_relay_server/internal/service/presence"
)

// ChatGateway WebSocket 连接接入
type ChatGateway interface {
	Serve(conn *chat.UserConn, identity string)
}

// HistoryService 历史消息查询
type HistoryService interface {
	// LoadRecent limit 非正时取默认值，超过上限时截断
	LoadRecent(ctx context.Context, roomID string, limit int) ([]model.BufferedMessage, error)
}

// DispatchService 定时投递管理
type DispatchService interface {
	Schedule(ctx context.Context, createdBy string, req *request.ScheduleDispatchRequest) (*model.ScheduledDispatch, error)
	Cancel(ctx context.Context, id int64) (*model.ScheduledDispatch, error)
	Get(ctx context.Context, id int64) (*model.ScheduledDispatch, error)
	List(ctx context.Context) ([]model.ScheduledDispatch, error)
}

// PresenceService 在线状态
type PresenceService interface {
	SetManualStatus(userID string, status presence.Status)
	Snapshot(userID string) presence.View
}
