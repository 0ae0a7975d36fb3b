package repository

import (
	"context"

	"chat_relay_server/internal/model"

	"gorm.io/gorm"
)

type scheduledDispatchRepository struct {
	db *gorm.DB
}

// NewScheduledDispatchRepository 创建定时投递 Repository
func NewScheduledDispatchRepository(db *gorm.DB) ScheduledDispatchRepository {
	return &scheduledDispatchRepository{db: db}
}

// Create 创建任务，Recipients 通过关联一并写入
func (r *scheduledDispatchRepository) Create(ctx context.Context, dispatch *model.ScheduledDispatch) error {
	if err := r.db.WithContext(ctx).Create(dispatch).Error; err != nil {
		return wrapDBErrorf(err, "创建定时任务 id=%d", dispatch.ID)
	}
	return nil
}

// FindByID 按 ID 查找任务
func (r *scheduledDispatchRepository) FindByID(ctx context.Context, id int64) (*model.ScheduledDispatch, error) {
	var dispatch model.ScheduledDispatch
	if err := r.db.WithContext(ctx).Preload("Recipients").First(&dispatch, "id = ?", id).Error; err != nil {
		return nil, wrapDBErrorf(err, "定时任务 id=%d", id)
	}
	return &dispatch, nil
}

// FindDue 查询到期的 PENDING 任务
func (r *scheduledDispatchRepository) FindDue(ctx context.Context, nowMillis int64) ([]model.ScheduledDispatch, error) {
	var dispatches []model.ScheduledDispatch
	if err := r.db.WithContext(ctx).Preload("Recipients").Scopes(dueAt(nowMillis)).Find(&dispatches).Error; err != nil {
		return nil, wrapDBError(err, "查询到期定时任务")
	}
	return dispatches, nil
}

// FindAll 查询全部任务
func (r *scheduledDispatchRepository) FindAll(ctx context.Context) ([]model.ScheduledDispatch, error) {
	var dispatches []model.ScheduledDispatch
	if err := r.db.WithContext(ctx).Preload("Recipients").Order("scheduled_at ASC").Order("id ASC").Find(&dispatches).Error; err != nil {
		return nil, wrapDBError(err, "查询定时任务列表")
	}
	return dispatches, nil
}

// UpdateStatus 条件更新状态
// WHERE status = from 保证终态不会被覆盖，RowsAffected 为 0 表示状态已被其他流程改变
func (r *scheduledDispatchRepository) UpdateStatus(ctx context.Context, id int64, from, to model.DispatchStatus, executedAt *int64) (bool, error) {
	res := r.db.WithContext(ctx).Scopes(statusTransition(id, from)).
		Updates(map[string]any{"status": to, "executed_at": executedAt})
	if res.Error != nil {
		return false, wrapDBErrorf(res.Error, "更新定时任务状态 id=%d %s->%s", id, from, to)
	}
	return res.RowsAffected > 0, nil
}

// dueAt 到期任务查询条件，命中 ix_dispatch_due
func dueAt(nowMillis int64) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ? AND scheduled_at <= ?", model.DispatchStatusPending, nowMillis).
			Order("scheduled_at ASC").Order("id ASC")
	}
}

// statusTransition 条件状态迁移
func statusTransition(id int64, from model.DispatchStatus) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Model(&model.ScheduledDispatch{}).Where("id = ? AND status = ?", id, from)
	}
}
