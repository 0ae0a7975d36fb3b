// Package buffer 房间消息写缓冲
// 发送路径只写快速存储（Redis 或内存），由定时 flush 批量落库
package buffer

import (
	"context"
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"chat_relay_server/internal/infrastructure/metrics"
	"chat_relay_server/internal/model"
	"chat_relay_server/pkg/constants"
	"chat_relay_server/pkg/errorx"

	"go.uber.org/zap"
)

const stripeCount = 64

// Store 快速存储，每个房间一个有序序列
type Store interface {
	// Append 追加一条消息并重置房间 TTL
	Append(ctx context.Context, roomID string, msg model.BufferedMessage, ttl time.Duration) error
	// Drain 原子地取出并清空房间序列
	Drain(ctx context.Context, roomID string) ([]model.BufferedMessage, error)
	// Peek 读取房间序列但不删除
	Peek(ctx context.Context, roomID string) ([]model.BufferedMessage, error)
	// Rooms 列出仍持有缓冲的房间
	Rooms(ctx context.Context) ([]string, error)
}

// Persister 持久化协作者，由 repository.ChatMessageRepository 实现
type Persister interface {
	SaveBatch(ctx context.Context, messages []model.BufferedMessage) error
	FindRecentByRoom(ctx context.Context, roomID string, limit int) ([]model.BufferedMessage, error)
}

// Buffer 房间消息写缓冲
//
// 同一房间的 Append/Drain 由 appendLocks 串行化，同一房间的 flush 由 flushLocks 串行化。
// 房间内的顺序始终是写入顺序：inflight -> retry -> 快速存储 -> spill。
// retry 保存落库失败的批次，spill 保存快速存储写失败的消息；
// spill 非空时后续消息也写入 spill，直到下次 flush 取走。
// inflight 记录正在落库的批次，保证落库期间历史查询仍能读到。
type Buffer struct {
	store     Store
	persister Persister
	ttl       time.Duration

	defaultLimit int
	maxLimit     int

	appendLocks [stripeCount]sync.Mutex
	flushLocks  [stripeCount]sync.Mutex

	mu       sync.Mutex
	retry    map[string][]model.BufferedMessage
	spill    map[string][]model.BufferedMessage
	inflight map[string][]model.BufferedMessage
}

// Option Buffer 构造选项
type Option func(*Buffer)

// WithTTL 房间缓冲过期时间
func WithTTL(ttl time.Duration) Option {
	return func(b *Buffer) {
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// WithHistoryLimits 历史查询默认条数与上限
func WithHistoryLimits(defaultLimit, maxLimit int) Option {
	return func(b *Buffer) {
		if maxLimit > 0 {
			b.maxLimit = maxLimit
		}
		if defaultLimit > 0 {
			b.defaultLimit = defaultLimit
		}
	}
}

// New 创建消息缓冲
func New(store Store, persister Persister, opts ...Option) *Buffer {
	b := &Buffer{
		store:        store,
		persister:    persister,
		ttl:          24 * time.Hour,
		defaultLimit: constants.DEFAULT_HISTORY_LIMIT,
		maxLimit:     constants.MAX_HISTORY_LIMIT,
		retry:        make(map[string][]model.BufferedMessage),
		spill:        make(map[string][]model.BufferedMessage),
		inflight:     make(map[string][]model.BufferedMessage),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.defaultLimit > b.maxLimit {
		b.defaultLimit = b.maxLimit
	}
	return b
}

func stripe(roomID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roomID))
	return h.Sum32() % stripeCount
}

// Append 追加一条消息
// 快速存储写失败时消息转入 spill，不返回错误
func (b *Buffer) Append(ctx context.Context, msg model.BufferedMessage) error {
	if msg.RoomID == "" {
		return errorx.New(errorx.CodeInvalidParam, "roomId is required")
	}
	mu := &b.appendLocks[stripe(msg.RoomID)]
	mu.Lock()
	defer mu.Unlock()

	b.mu.Lock()
	spilled := len(b.spill[msg.RoomID]) > 0
	if spilled {
		b.spill[msg.RoomID] = append(b.spill[msg.RoomID], msg)
	}
	b.mu.Unlock()
	if spilled {
		metrics.MessagesBuffered.Inc()
		return nil
	}

	if err := b.store.Append(ctx, msg.RoomID, msg, b.ttl); err != nil {
		metrics.FlushFailures.WithLabelValues("append").Inc()
		zap.L().Warn("buffer store append failed, keep in process",
			zap.String("room_id", msg.RoomID), zap.Int64("msg_id", msg.ID), zap.Error(err))
		b.mu.Lock()
		b.spill[msg.RoomID] = append(b.spill[msg.RoomID], msg)
		b.mu.Unlock()
	}
	metrics.MessagesBuffered.Inc()
	return nil
}

// FlushRoom 取出房间全部缓冲并落库
// 缓冲为空时不调用持久化；落库失败时整批转入 retry
func (b *Buffer) FlushRoom(ctx context.Context, roomID string) error {
	idx := stripe(roomID)
	b.flushLocks[idx].Lock()
	defer b.flushLocks[idx].Unlock()

	batch, err := b.take(ctx, roomID, idx)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	err = b.persister.SaveBatch(ctx, batch)

	b.mu.Lock()
	delete(b.inflight, roomID)
	if err != nil {
		b.retry[roomID] = append(batch, b.retry[roomID]...)
	}
	b.mu.Unlock()

	if err != nil {
		metrics.FlushFailures.WithLabelValues("persist").Inc()
		zap.L().Error("flush room failed, batch kept for retry",
			zap.String("room_id", roomID), zap.Int("count", len(batch)), zap.Error(err))
		return errorx.Wrapf(err, errorx.CodeDBError, "flush room %s", roomID)
	}
	metrics.MessagesFlushed.Add(float64(len(batch)))
	zap.L().Debug("flush room", zap.String("room_id", roomID), zap.Int("count", len(batch)))
	return nil
}

// take 在房间写锁内按写入顺序取出 retry、快速存储和 spill 中的全部消息，并标记为 inflight
func (b *Buffer) take(ctx context.Context, roomID string, idx uint32) ([]model.BufferedMessage, error) {
	mu := &b.appendLocks[idx]
	mu.Lock()
	defer mu.Unlock()

	drained, err := b.store.Drain(ctx, roomID)
	if err != nil {
		metrics.FlushFailures.WithLabelValues("drain").Inc()
		zap.L().Error("drain room buffer failed", zap.String("room_id", roomID), zap.Error(err))
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	retry, spill := b.retry[roomID], b.spill[roomID]
	if len(retry)+len(drained)+len(spill) == 0 {
		return nil, nil
	}
	batch := make([]model.BufferedMessage, 0, len(retry)+len(drained)+len(spill))
	batch = append(batch, retry...)
	batch = append(batch, drained...)
	batch = append(batch, spill...)
	delete(b.retry, roomID)
	delete(b.spill, roomID)
	b.inflight[roomID] = batch
	return batch, nil
}

// FlushAll 落库所有持有缓冲的房间，单个房间失败不影响其他房间
func (b *Buffer) FlushAll(ctx context.Context) error {
	rooms, err := b.store.Rooms(ctx)
	if err != nil {
		zap.L().Error("list buffered rooms failed", zap.Error(err))
	}
	seen := make(map[string]struct{}, len(rooms))
	for _, r := range rooms {
		seen[r] = struct{}{}
	}
	b.mu.Lock()
	for _, pending := range []map[string][]model.BufferedMessage{b.retry, b.spill} {
		for r := range pending {
			if _, ok := seen[r]; !ok {
				seen[r] = struct{}{}
				rooms = append(rooms, r)
			}
		}
	}
	b.mu.Unlock()

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	for _, roomID := range rooms {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if ferr := b.FlushRoom(ctx, roomID); ferr != nil {
			errs = append(errs, ferr)
		}
	}
	return errors.Join(errs...)
}

// Peek 读取房间尚未落库的全部消息，按写入顺序
func (b *Buffer) Peek(ctx context.Context, roomID string) ([]model.BufferedMessage, error) {
	mu := &b.appendLocks[stripe(roomID)]
	mu.Lock()
	defer mu.Unlock()

	stored, err := b.store.Peek(ctx, roomID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	inflight, retry, spill := b.inflight[roomID], b.retry[roomID], b.spill[roomID]
	out := make([]model.BufferedMessage, 0, len(inflight)+len(retry)+len(stored)+len(spill))
	out = append(out, inflight...)
	out = append(out, retry...)
	out = append(out, stored...)
	out = append(out, spill...)
	return out, nil
}

// ClampLimit 把历史查询条数限制在 [1, maxLimit]，非正数取默认值
func (b *Buffer) ClampLimit(limit int) int {
	if limit <= 0 {
		return b.defaultLimit
	}
	if limit > b.maxLimit {
		return b.maxLimit
	}
	return limit
}

// LoadRecent 最近 limit 条消息：已落库 + 未落库，按时间升序
func (b *Buffer) LoadRecent(ctx context.Context, roomID string, limit int) ([]model.BufferedMessage, error) {
	limit = b.ClampLimit(limit)

	// 先读缓冲再读库：两次读取之间完成的 flush 只会让消息在两边都出现
	pending, err := b.Peek(ctx, roomID)
	if err != nil {
		return nil, err
	}
	durable, err := b.persister.FindRecentByRoom(ctx, roomID, limit)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(durable)+len(pending))
	merged := make([]model.BufferedMessage, 0, len(durable)+len(pending))
	for _, group := range [][]model.BufferedMessage{pending, durable} {
		for _, m := range group {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			merged = append(merged, m)
		}
	}
	sortByTs(merged)
	if len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged, nil
}

// sortByTs 按时间升序，同一毫秒按 ID（雪花 ID 单调）排序
func sortByTs(msgs []model.BufferedMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Ts != msgs[j].Ts {
			return msgs[i].Ts < msgs[j].Ts
		}
		return msgs[i].ID < msgs[j].ID
	})
}
