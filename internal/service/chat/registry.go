package chat

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"

	"chat_relay_server/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

const roomShardCount = 32

var (
	// ErrAlreadyRegistered 同一连接重复注册
	ErrAlreadyRegistered = errors.New("connection already registered")
	// ErrNotRegistered 连接未注册或已关闭
	ErrNotRegistered = errors.New("connection not registered")
)

// PresenceReporter 注册表在连接建立/断开时上报
type PresenceReporter interface {
	MarkOnline(userID string)
	MarkOffline(userID string)
}

type sessionState uint8

const (
	stateConnecting sessionState = iota
	stateRegistered
	stateClosed
)

// session 连接在注册表中的记录
// 锁顺序：session.mu -> roomShard.mu
type session struct {
	mu       sync.Mutex
	conn     Conn
	identity string
	state    sessionState
	rooms    map[string]struct{}
}

// roomShard 房间成员索引的一个分片
type roomShard struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn
}

func (s *roomShard) add(roomID string, conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.rooms[roomID]
	if !ok {
		members = make(map[string]Conn)
		s.rooms[roomID] = members
		metrics.ActiveRooms.Inc()
	}
	members[conn.ID()] = conn
}

func (s *roomShard) remove(roomID, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(s.rooms, roomID)
		metrics.ActiveRooms.Dec()
	}
}

func (s *roomShard) members(roomID string) []Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := s.rooms[roomID]
	out := make([]Conn, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

func (s *roomShard) size(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[roomID])
}

// Registry 在线连接注册表
// sessions: connID -> *session；房间索引按 roomID 分片
// 连接的房间集合与房间成员集合只通过 Register/Unregister/JoinRoom/LeaveRoom 修改
type Registry struct {
	sessions  sync.Map
	shards    [roomShardCount]*roomShard
	presence  PresenceReporter
	connCount atomic.Int64
}

// NewRegistry 创建注册表，presence 可为 nil
func NewRegistry(presence PresenceReporter) *Registry {
	r := &Registry{presence: presence}
	for i := range r.shards {
		r.shards[i] = &roomShard{rooms: make(map[string]map[string]Conn)}
	}
	return r
}

func (r *Registry) shard(roomID string) *roomShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roomID))
	return r.shards[h.Sum32()%roomShardCount]
}

// Register 握手完成后登记连接，identity 为空表示匿名连接
func (r *Registry) Register(conn Conn, identity string) error {
	s := &session{conn: conn, identity: identity, state: stateConnecting, rooms: make(map[string]struct{})}
	// 持有 s.mu 直到 MarkOnline 返回，并发的 Unregister 会等在锁上，MarkOffline 不会先于 MarkOnline
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, loaded := r.sessions.LoadOrStore(conn.ID(), s); loaded {
		return ErrAlreadyRegistered
	}
	s.state = stateRegistered

	r.connCount.Add(1)
	metrics.ActiveConnections.Inc()
	if identity != "" && r.presence != nil {
		r.presence.MarkOnline(identity)
	}
	zap.L().Debug("ws registered", zap.String("conn_id", conn.ID()), zap.String("user_id", identity))
	return nil
}

// Unregister 连接关闭，从所有房间移除
// 返回连接关闭前所在的房间，调用方据此决定是否落库
func (r *Registry) Unregister(conn Conn) []string {
	v, ok := r.sessions.LoadAndDelete(conn.ID())
	if !ok {
		return nil
	}
	s := v.(*session)

	s.mu.Lock()
	s.state = stateClosed
	rooms := make([]string, 0, len(s.rooms))
	for roomID := range s.rooms {
		r.shard(roomID).remove(roomID, conn.ID())
		rooms = append(rooms, roomID)
	}
	s.rooms = nil
	s.mu.Unlock()

	r.connCount.Add(-1)
	metrics.ActiveConnections.Dec()
	if s.identity != "" && r.presence != nil {
		r.presence.MarkOffline(s.identity)
	}
	sort.Strings(rooms)
	zap.L().Debug("ws unregistered", zap.String("conn_id", conn.ID()), zap.String("user_id", s.identity), zap.Strings("rooms", rooms))
	return rooms
}

func (r *Registry) registered(conn Conn) (*session, bool) {
	v, ok := r.sessions.Load(conn.ID())
	if !ok {
		return nil, false
	}
	return v.(*session), true
}

// JoinRoom 加入房间，重复加入为空操作
func (r *Registry) JoinRoom(conn Conn, roomID string) error {
	s, ok := r.registered(conn)
	if !ok {
		return ErrNotRegistered
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateRegistered {
		return ErrNotRegistered
	}
	if _, joined := s.rooms[roomID]; joined {
		return nil
	}
	s.rooms[roomID] = struct{}{}
	r.shard(roomID).add(roomID, conn)
	return nil
}

// LeaveRoom 离开房间，房间空了即从索引中删除
// 未加入或未注册时为空操作
func (r *Registry) LeaveRoom(conn Conn, roomID string) {
	s, ok := r.registered(conn)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, joined := s.rooms[roomID]; !joined {
		return
	}
	delete(s.rooms, roomID)
	r.shard(roomID).remove(roomID, conn.ID())
}

// Broadcast 向房间内所有打开的连接发送 frame，返回成功投递数
// 单个连接发送失败只记录日志
func (r *Registry) Broadcast(roomID string, frame []byte) int {
	delivered := 0
	for _, c := range r.shard(roomID).members(roomID) {
		if !c.IsOpen() {
			continue
		}
		if err := c.Send(frame); err != nil {
			metrics.BroadcastSendFailures.Inc()
			zap.L().Warn("broadcast send failed",
				zap.String("room_id", roomID),
				zap.String("conn_id", c.ID()),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// Identity 返回连接注册时的用户身份
func (r *Registry) Identity(conn Conn) (string, bool) {
	s, ok := r.registered(conn)
	if !ok || s.identity == "" {
		return "", false
	}
	return s.identity, true
}

// Rooms 连接当前所在的房间，已排序
func (r *Registry) Rooms(conn Conn) []string {
	s, ok := r.registered(conn)
	if !ok {
		return nil
	}
	s.mu.Lock()
	rooms := make([]string, 0, len(s.rooms))
	for roomID := range s.rooms {
		rooms = append(rooms, roomID)
	}
	s.mu.Unlock()
	sort.Strings(rooms)
	return rooms
}

// RoomSize 房间当前成员数
func (r *Registry) RoomSize(roomID string) int {
	return r.shard(roomID).size(roomID)
}

// ConnectionCount 已注册连接数
func (r *Registry) ConnectionCount() int {
	return int(r.connCount.Load())
}
