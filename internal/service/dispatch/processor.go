// Package dispatch 定时投递：到期后向房间发聊天消息或发送邮件
package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"chat_relay_server/internal/dao/mysql/repository"
	"chat_relay_server/internal/dto/request"
	"chat_relay_server/internal/dto/respond"
	"chat_relay_server/internal/infrastructure/metrics"
	"chat_relay_server/internal/model"
	"chat_relay_server/pkg/constants"
	"chat_relay_server/pkg/errorx"
	"chat_relay_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

// Appender 写入房间消息缓冲
type Appender interface {
	Append(ctx context.Context, msg model.BufferedMessage) error
}

// Broadcaster 房间广播
type Broadcaster interface {
	Broadcast(roomID string, frame []byte) int
}

// Mailer 邮件发送协作者
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Processor 定时投递处理器
type Processor struct {
	repo        repository.ScheduledDispatchRepository
	buffer      Appender
	broadcaster Broadcaster
	mailer      Mailer
	now         func() time.Time
}

// NewProcessor 创建处理器，mailer 为 nil 时邮件任务只记录告警
func NewProcessor(repo repository.ScheduledDispatchRepository, buffer Appender, broadcaster Broadcaster, mailer Mailer) *Processor {
	return &Processor{
		repo:        repo,
		buffer:      buffer,
		broadcaster: broadcaster,
		mailer:      mailer,
		now:         time.Now,
	}
}

// Schedule 创建 PENDING 任务
// scheduledAt 只要求存在，过去的时间会在下一轮轮询立即执行
func (p *Processor) Schedule(ctx context.Context, createdBy string, req *request.ScheduleDispatchRequest) (*model.ScheduledDispatch, error) {
	typ := model.DispatchType(req.Type)
	if !typ.Valid() {
		return nil, errorx.Newf(errorx.CodeInvalidParam, "unknown dispatch type %q", req.Type)
	}
	if req.ScheduledAt <= 0 {
		return nil, errorx.New(errorx.CodeInvalidParam, "scheduledAt is required")
	}

	d := &model.ScheduledDispatch{
		ID:          snowflake.GenerateID(),
		Type:        typ,
		Status:      model.DispatchStatusPending,
		CreatedBy:   createdBy,
		ScheduledAt: req.ScheduledAt,
	}
	switch typ {
	case model.DispatchTypeChatMessage:
		if strings.TrimSpace(req.RoomKey) == "" {
			return nil, errorx.New(errorx.CodeInvalidParam, "roomKey is required for CHAT_MESSAGE")
		}
		d.RoomKey = req.RoomKey
		d.Message = req.Message
		d.SenderID = strings.TrimSpace(req.SenderID)
	case model.DispatchTypeEmail:
		if len(req.Recipients) == 0 {
			return nil, errorx.New(errorx.CodeInvalidParam, "recipients are required for EMAIL")
		}
		for _, email := range req.Recipients {
			d.Recipients = append(d.Recipients, model.ScheduledDispatchRecipient{DispatchID: d.ID, Email: email})
		}
		d.EmailSubject = req.EmailSubject
		d.EmailBody = req.EmailBody
	}

	if err := p.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	zap.L().Info("dispatch scheduled",
		zap.Int64("dispatch_id", d.ID),
		zap.String("type", string(d.Type)),
		zap.Int64("scheduled_at", d.ScheduledAt))
	return d, nil
}

// Cancel PENDING -> CANCELLED
// 只保证取消时尚未被标记 SENT，已被本轮轮询选中的任务仍可能执行
func (p *Processor) Cancel(ctx context.Context, id int64) (*model.ScheduledDispatch, error) {
	d, err := p.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status.IsTerminal() {
		return nil, errorx.Newf(errorx.CodeConflict, "dispatch %d is already %s", id, d.Status)
	}
	ok, err := p.repo.UpdateStatus(ctx, id, model.DispatchStatusPending, model.DispatchStatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorx.Newf(errorx.CodeConflict, "dispatch %d is no longer pending", id)
	}
	d.Status = model.DispatchStatusCancelled
	zap.L().Info("dispatch cancelled", zap.Int64("dispatch_id", id))
	return d, nil
}

// Get 按 ID 查询
func (p *Processor) Get(ctx context.Context, id int64) (*model.ScheduledDispatch, error) {
	return p.repo.FindByID(ctx, id)
}

// List 全部任务，按计划时间升序
func (p *Processor) List(ctx context.Context) ([]model.ScheduledDispatch, error) {
	return p.repo.FindAll(ctx)
}

// PollAndExecute 执行所有到期的 PENDING 任务，返回本轮标记为 SENT 的数量
// 单个任务失败只记录日志，任务保持 PENDING，下一轮重试
func (p *Processor) PollAndExecute(ctx context.Context) (int, error) {
	due, err := p.repo.FindDue(ctx, p.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if p.executeOne(ctx, &due[i]) {
			sent++
		}
	}
	return sent, nil
}

func (p *Processor) executeOne(ctx context.Context, d *model.ScheduledDispatch) bool {
	kind := string(d.Type)
	var err error
	switch d.Type {
	case model.DispatchTypeChatMessage:
		err = p.executeChat(ctx, d)
	case model.DispatchTypeEmail:
		p.executeEmail(ctx, d)
	default:
		err = errorx.Newf(errorx.CodeInvalidParam, "unknown dispatch type %q", d.Type)
	}
	if err != nil {
		metrics.DispatchExecutions.WithLabelValues(kind, "failed").Inc()
		zap.L().Error("dispatch execution failed, will retry",
			zap.Int64("dispatch_id", d.ID), zap.String("type", kind), zap.Error(err))
		return false
	}

	executedAt := p.now().UnixMilli()
	ok, err := p.repo.UpdateStatus(ctx, d.ID, model.DispatchStatusPending, model.DispatchStatusSent, &executedAt)
	if err != nil {
		metrics.DispatchExecutions.WithLabelValues(kind, "failed").Inc()
		zap.L().Error("mark dispatch sent failed", zap.Int64("dispatch_id", d.ID), zap.Error(err))
		return false
	}
	if !ok {
		metrics.DispatchExecutions.WithLabelValues(kind, "raced").Inc()
		zap.L().Warn("dispatch left PENDING before it was marked sent", zap.Int64("dispatch_id", d.ID))
		return false
	}
	metrics.DispatchExecutions.WithLabelValues(kind, "sent").Inc()
	d.Status = model.DispatchStatusSent
	d.ExecutedAt = &executedAt
	return true
}

func (p *Processor) executeChat(ctx context.Context, d *model.ScheduledDispatch) error {
	if d.RoomKey == "" {
		return errorx.New(errorx.CodeInvalidParam, "roomKey is required")
	}
	sender := d.SenderID
	if sender == "" {
		sender = constants.SYSTEM_SENDER_ID
	}
	msg := model.BufferedMessage{
		ID:       snowflake.GenerateID(),
		RoomID:   d.RoomKey,
		SenderID: sender,
		Kind:     model.MessageKindText,
		Content:  d.Message,
		Ts:       p.now().UnixMilli(),
	}
	if err := p.buffer.Append(ctx, msg); err != nil {
		return err
	}
	frame, err := json.Marshal(respond.NewChatMessageFrame(msg))
	if err != nil {
		return err
	}
	p.broadcaster.Broadcast(d.RoomKey, frame)
	return nil
}

// executeEmail 逐个收件人发送，单个失败不影响其他收件人
func (p *Processor) executeEmail(ctx context.Context, d *model.ScheduledDispatch) {
	if p.mailer == nil {
		zap.L().Warn("mail sender is not configured, skip email dispatch", zap.Int64("dispatch_id", d.ID))
		return
	}
	recipients := d.RecipientEmails()
	if len(recipients) == 0 {
		zap.L().Warn("email dispatch has no recipients", zap.Int64("dispatch_id", d.ID))
		return
	}
	for _, to := range recipients {
		if err := p.mailer.Send(ctx, to, d.EmailSubject, d.EmailBody); err != nil {
			zap.L().Error("send scheduled mail failed",
				zap.Int64("dispatch_id", d.ID), zap.String("to", to), zap.Error(err))
		}
	}
}
