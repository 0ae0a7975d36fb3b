// Package presence 维护用户在线状态
// 状态由活跃连接数推导，BUSY 手动覆盖优先于连接数
package presence

import (
	"sync"
	"time"

	"chat_relay_server/internal/infrastructure/metrics"
)

// Status 用户在线状态
type Status string

const (
	StatusOffline Status = "OFFLINE"
	StatusOnline  Status = "ONLINE"
	StatusBusy    Status = "BUSY"
)

// ParseStatus 解析外部传入的状态，未知值返回 false
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusOffline, StatusOnline, StatusBusy:
		return Status(s), true
	}
	return "", false
}

// mode 状态来源
type mode uint8

const (
	modeDerived       mode = iota // 由连接数推导
	modeForcedBusy                // 手动 BUSY，忽略连接数
	modeForcedOffline             // 手动隐身或强制下线，下一次上线回到 modeDerived
)

// entry 单个用户的状态，每个用户一把锁
type entry struct {
	mu          sync.Mutex
	connections int
	mode        mode
	lastSeen    int64
}

// status 需持有 e.mu
func (e *entry) status() Status {
	switch e.mode {
	case modeForcedBusy:
		return StatusBusy
	case modeForcedOffline:
		return StatusOffline
	}
	if e.connections > 0 {
		return StatusOnline
	}
	return StatusOffline
}

// Event 状态变更事件
type Event struct {
	UserID    string `json:"userId"`
	OldStatus Status `json:"oldStatus"`
	NewStatus Status `json:"newStatus"`
	Ts        int64  `json:"ts"`
}

// Notifier 接收状态变更事件
// 在用户锁内调用以保证同一用户事件有序，实现不得阻塞
type Notifier interface {
	PresenceChanged(Event)
}

// View 用户状态快照
type View struct {
	UserID      string `json:"userId"`
	Status      Status `json:"status"`
	Connections int    `json:"connections"`
	LastSeen    int64  `json:"lastSeen"`
}

// Tracker 在线状态跟踪器
// entries 为 userID -> *entry，不同用户之间互不阻塞
type Tracker struct {
	entries  sync.Map
	now      func() time.Time
	notifier Notifier
}

// Option Tracker 构造选项
type Option func(*Tracker)

// WithClock 替换时间源（测试用）
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithNotifier 设置状态变更通知
func WithNotifier(n Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// NewTracker 创建在线状态跟踪器
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) load(userID string) *entry {
	if e, ok := t.entries.Load(userID); ok {
		return e.(*entry)
	}
	e, _ := t.entries.LoadOrStore(userID, &entry{})
	return e.(*entry)
}

// update 在用户锁内执行状态变更并刷新 lastSeen
func (t *Tracker) update(userID string, fn func(e *entry)) {
	if userID == "" {
		return
	}
	e := t.load(userID)

	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.status()
	fn(e)
	e.lastSeen = t.now().UnixMilli()
	cur := e.status()

	if old == cur {
		return
	}
	metrics.PresenceTransitions.WithLabelValues(string(cur)).Inc()
	if t.notifier != nil {
		t.notifier.PresenceChanged(Event{UserID: userID, OldStatus: old, NewStatus: cur, Ts: e.lastSeen})
	}
}

// MarkOnline 新建立一个连接
func (t *Tracker) MarkOnline(userID string) {
	t.update(userID, func(e *entry) {
		e.connections++
		if e.mode == modeForcedOffline {
			e.mode = modeDerived
		}
	})
}

// MarkOffline 关闭一个连接，连接数不会小于 0
func (t *Tracker) MarkOffline(userID string) {
	t.update(userID, func(e *entry) {
		if e.connections > 0 {
			e.connections--
		}
	})
}

// ForceOffline 清零连接数并强制 OFFLINE，用于连接计数不可信的异常断开
func (t *Tracker) ForceOffline(userID string) {
	t.update(userID, func(e *entry) {
		e.connections = 0
		e.mode = modeForcedOffline
	})
}

// SetManualStatus 手动设置状态
//   - BUSY：覆盖为 BUSY，连接数不变
//   - ONLINE：清除覆盖，按连接数推导
//   - 其他：隐身，清零连接数并置为 OFFLINE
func (t *Tracker) SetManualStatus(userID string, status Status) {
	t.update(userID, func(e *entry) {
		switch status {
		case StatusBusy:
			e.mode = modeForcedBusy
		case StatusOnline:
			e.mode = modeDerived
		default:
			e.connections = 0
			e.mode = modeForcedOffline
		}
	})
}

// GetPresence 返回用户当前状态，从未出现过的用户为 OFFLINE
func (t *Tracker) GetPresence(userID string) Status {
	v, ok := t.entries.Load(userID)
	if !ok {
		return StatusOffline
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status()
}

// GetPresences 批量查询状态
func (t *Tracker) GetPresences(userIDs []string) map[string]Status {
	out := make(map[string]Status, len(userIDs))
	for _, id := range userIDs {
		out[id] = t.GetPresence(id)
	}
	return out
}

// Snapshot 返回用户状态快照
func (t *Tracker) Snapshot(userID string) View {
	v, ok := t.entries.Load(userID)
	if !ok {
		return View{UserID: userID, Status: StatusOffline}
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return View{UserID: userID, Status: e.status(), Connections: e.connections, LastSeen: e.lastSeen}
}
