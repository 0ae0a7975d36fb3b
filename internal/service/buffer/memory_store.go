package buffer

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat_relay_server/internal/model"
)

type memoryRoom struct {
	messages  []model.BufferedMessage
	expiresAt time.Time
}

// MemoryStore 进程内的 Store 实现，用于单机部署（bufferMode = "memory"）和测试
// 过期房间在访问时惰性清理
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*memoryRoom
	now   func() time.Time
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*memoryRoom), now: time.Now}
}

// live 返回未过期的房间，需持有 s.mu
func (s *MemoryStore) live(roomID string) (*memoryRoom, bool) {
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	if !r.expiresAt.After(s.now()) {
		delete(s.rooms, roomID)
		return nil, false
	}
	return r, true
}

// Append 追加并重置 TTL
func (s *MemoryStore) Append(_ context.Context, roomID string, msg model.BufferedMessage, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.live(roomID)
	if !ok {
		r = &memoryRoom{}
		s.rooms[roomID] = r
	}
	r.messages = append(r.messages, msg)
	r.expiresAt = s.now().Add(ttl)
	return nil
}

// Drain 取出并删除
func (s *MemoryStore) Drain(_ context.Context, roomID string) ([]model.BufferedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.live(roomID)
	if !ok {
		return nil, nil
	}
	delete(s.rooms, roomID)
	return r.messages, nil
}

// Peek 读取副本
func (s *MemoryStore) Peek(_ context.Context, roomID string) ([]model.BufferedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.live(roomID)
	if !ok {
		return nil, nil
	}
	out := make([]model.BufferedMessage, len(r.messages))
	copy(out, r.messages)
	return out, nil
}

// Rooms 未过期的房间，已排序
func (s *MemoryStore) Rooms(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		if _, ok := s.live(id); ok {
			rooms = append(rooms, id)
		}
	}
	sort.Strings(rooms)
	return rooms, nil
}
