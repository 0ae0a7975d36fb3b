// Package repository 定义数据访问层接口和聚合结构
// 所有 Repository 接口在此文件定义，具体实现在各自的文件中
package repository

import (
	"context"

	"chat_relay_server/internal/model"

	"gorm.io/gorm"
)

// ChatMessageRepository 聊天消息持久化接口
type ChatMessageRepository interface {
	// SaveBatch 批量追加消息，已存在的消息（同一雪花 ID）跳过
	SaveBatch(ctx context.Context, messages []model.BufferedMessage) error
	// FindRecentByRoom 查询房间最近 limit 条消息，按 ts 倒序
	FindRecentByRoom(ctx context.Context, roomID string, limit int) ([]model.BufferedMessage, error)
}

// ScheduledDispatchRepository 定时投递任务持久化接口
type ScheduledDispatchRepository interface {
	// Create 创建任务（连同收件人）
	Create(ctx context.Context, dispatch *model.ScheduledDispatch) error
	// FindByID 按 ID 查找任务，不存在返回 CodeNotFound
	FindByID(ctx context.Context, id int64) (*model.ScheduledDispatch, error)
	// FindDue 查询 scheduled_at <= nowMillis 的 PENDING 任务，按计划时间升序
	FindDue(ctx context.Context, nowMillis int64) ([]model.ScheduledDispatch, error)
	// FindAll 查询全部任务，按计划时间升序
	FindAll(ctx context.Context) ([]model.ScheduledDispatch, error)
	// UpdateStatus 仅当当前状态为 from 时更新为 to，返回是否命中
	UpdateStatus(ctx context.Context, id int64, from, to model.DispatchStatus, executedAt *int64) (bool, error)
}

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db                *gorm.DB
	ChatMessage       ChatMessageRepository       // 聊天消息 Repository
	ScheduledDispatch ScheduledDispatchRepository // 定时投递 Repository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:                db,
		ChatMessage:       NewChatMessageRepository(db),
		ScheduledDispatch: NewScheduledDispatchRepository(db),
	}
}

// Transaction 在数据库事务中执行函数
// fn 返回错误时自动回滚
func (r *Repositories) Transaction(ctx context.Context, fn func(txRepos *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// Close 关闭底层连接池
func (r *Repositories) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
