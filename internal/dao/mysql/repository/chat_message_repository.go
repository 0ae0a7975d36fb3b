package repository

import (
	"context"

	"chat_relay_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// saveBatchSize 单条 INSERT 最多携带的行数
const saveBatchSize = 200

type chatMessageRepository struct {
	db *gorm.DB
}

// NewChatMessageRepository 创建聊天消息 Repository
func NewChatMessageRepository(db *gorm.DB) ChatMessageRepository {
	return &chatMessageRepository{db: db}
}

// SaveBatch 批量追加消息
// 失败后整批重新入队再次 flush 时，uuid 唯一索引 + ON CONFLICT DO NOTHING 避免重复行
func (r *chatMessageRepository) SaveBatch(ctx context.Context, messages []model.BufferedMessage) error {
	if len(messages) == 0 {
		return nil
	}
	entities := make([]model.ChatMessage, 0, len(messages))
	for _, m := range messages {
		entities = append(entities, model.NewChatMessage(m))
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&entities, saveBatchSize).Error
	return wrapDBErrorf(err, "批量保存消息 room=%s count=%d", messages[0].RoomID, len(messages))
}

// FindRecentByRoom 按 ts 倒序查询房间最近消息
func (r *chatMessageRepository) FindRecentByRoom(ctx context.Context, roomID string, limit int) ([]model.BufferedMessage, error) {
	var entities []model.ChatMessage
	if err := r.db.WithContext(ctx).Scopes(recentByRoom(roomID, limit)).Find(&entities).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询房间消息 room=%s", roomID)
	}
	messages := make([]model.BufferedMessage, 0, len(entities))
	for _, e := range entities {
		messages = append(messages, e.Buffered())
	}
	return messages, nil
}

// recentByRoom 房间最近消息查询条件，命中 ix_chat_room_ts
func recentByRoom(roomID string, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("room_id = ?", roomID).Order("ts DESC").Order("id DESC").Limit(limit)
	}
}
