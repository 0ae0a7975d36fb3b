// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"chat_relay_server/internal/config"
	"chat_relay_server/internal/dao/mysql/repository"
	"chat_relay_server/internal/service/buffer"
	"chat_relay_server/internal/service/chat"
	"chat_relay_server/internal/service/dispatch"
	"chat_relay_server/internal/service/presence"
)

// Deps 构造 Services 所需的外部依赖
type Deps struct {
	Repos    *repository.Repositories
	Store    buffer.Store       // 房间缓冲快速存储
	Notifier presence.Notifier  // 可为 nil
	Mailer   dispatch.Mailer    // 可为 nil
	Tasks    chat.TaskSubmitter // 后台任务池
	Chat     config.ChatConfig
}

// Services 聚合所有 Service 实例
// 进程内唯一，由 main 显式构造后注入 Handler 和定时任务
type Services struct {
	Presence *presence.Tracker
	Registry *chat.Registry
	Gateway  *chat.Gateway
	Buffer   *buffer.Buffer
	Dispatch *dispatch.Processor
}

// NewServices 按依赖顺序创建：presence -> registry -> buffer -> gateway -> dispatch
func NewServices(deps Deps) *Services {
	var trackerOpts []presence.Option
	if deps.Notifier != nil {
		trackerOpts = append(trackerOpts, presence.WithNotifier(deps.Notifier))
	}
	tracker := presence.NewTracker(trackerOpts...)
	registry := chat.NewRegistry(tracker)

	buf := buffer.New(deps.Store, deps.Repos.ChatMessage,
		buffer.WithTTL(deps.Chat.BufferTTL()),
		buffer.WithHistoryLimits(deps.Chat.HistoryDefaultLimit, deps.Chat.HistoryMaxLimit),
	)

	return &Services{
		Presence: tracker,
		Registry: registry,
		Gateway:  chat.NewGateway(registry, buf, deps.Tasks),
		Buffer:   buf,
		Dispatch: dispatch.NewProcessor(deps.Repos.ScheduledDispatch, buf, registry, deps.Mailer),
	}
}
