// Package mq 把在线状态变更事件发布到 Kafka
package mq

import (
	"context"
	"encoding/json"
	"time"

	"chat_relay_server/internal/config"
	"chat_relay_server/internal/service/presence"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter kafka.Writer 的最小子集
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TaskSubmitter 异步执行写入，满了返回 false
type TaskSubmitter interface {
	TrySubmit(task func()) bool
}

// PresencePublisher 实现 presence.Notifier
// PresenceChanged 在用户锁内被调用，这里只做序列化和投递任务，写 Kafka 在 Worker 中完成
type PresencePublisher struct {
	writer  messageWriter
	tasks   TaskSubmitter
	timeout time.Duration
}

// NewPresencePublisher 按配置创建 Kafka 生产者
func NewPresencePublisher(conf *config.KafkaConfig, tasks TaskSubmitter) *PresencePublisher {
	timeout := conf.Timeout * time.Second
	if timeout <= 0 {
		timeout = time.Second
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(conf.HostPort),
		Topic:                  conf.PresenceTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           timeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newPresencePublisher(w, tasks, timeout)
}

func newPresencePublisher(w messageWriter, tasks TaskSubmitter, timeout time.Duration) *PresencePublisher {
	return &PresencePublisher{writer: w, tasks: tasks, timeout: timeout}
}

// PresenceChanged 发布一条状态变更，按 userId 分区保证同一用户有序
func (p *PresencePublisher) PresenceChanged(ev presence.Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		zap.L().Error("marshal presence event failed", zap.String("user_id", ev.UserID), zap.Error(err))
		return
	}
	msg := kafka.Message{Key: []byte(ev.UserID), Value: value}
	submitted := p.tasks.TrySubmit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			zap.L().Warn("publish presence event failed", zap.String("user_id", ev.UserID), zap.Error(err))
		}
	})
	if !submitted {
		zap.L().Warn("presence event dropped", zap.String("user_id", ev.UserID), zap.String("status", string(ev.NewStatus)))
	}
}

// Close 关闭生产者，刷出缓冲中的消息
func (p *PresencePublisher) Close() error {
	return p.writer.Close()
}
