package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"chat_relay_server/internal/model"
	"chat_relay_server/pkg/constants"
	"chat_relay_server/pkg/errorx"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// scanCount 每次 SCAN 建议返回的 key 数量
const scanCount = 100

// RoomStore 房间消息缓冲的 Redis 实现
// 每个房间一个 List：chat:room:<roomId>，元素为 BufferedMessage 的 JSON
type RoomStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRoomStore 创建 Redis 房间缓冲存储
func NewRoomStore(client redis.UniversalClient) *RoomStore {
	return &RoomStore{client: client, prefix: constants.CHAT_ROOM_KEY_PREFIX}
}

func (s *RoomStore) key(roomID string) string {
	return s.prefix + roomID
}

// Append RPUSH 追加消息并重置 TTL，两条命令在同一 MULTI 中执行
func (s *RoomStore) Append(ctx context.Context, roomID string, msg model.BufferedMessage, ttl time.Duration) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errorx.Wrapf(err, errorx.CodeInvalidParam, "encode message room=%s", roomID)
	}
	key := s.key(roomID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "redis rpush %s", key)
	}
	return nil
}

// Drain 原子地读取并删除整个房间缓冲（MULTI LRANGE + DEL）
// 与并发的 RPUSH 之间只有先后，不会丢失
func (s *RoomStore) Drain(ctx context.Context, roomID string) ([]model.BufferedMessage, error) {
	key := s.key(roomID)
	var lrange *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeCacheError, "redis drain %s", key)
	}
	return decodeMessages(key, lrange.Val()), nil
}

// Peek 读取房间缓冲但不删除
func (s *RoomStore) Peek(ctx context.Context, roomID string) ([]model.BufferedMessage, error) {
	key := s.key(roomID)
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeCacheError, "redis lrange %s", key)
	}
	return decodeMessages(key, raw), nil
}

// Rooms 通过 SCAN 列出所有仍持有缓冲的房间
func (s *RoomStore) Rooms(ctx context.Context) ([]string, error) {
	var cursor uint64
	seen := make(map[string]struct{})
	var rooms []string
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanCount).Result()
		if err != nil {
			return nil, errorx.Wrapf(err, errorx.CodeCacheError, "redis scan prefix %s", s.prefix)
		}
		for _, k := range keys {
			room := strings.TrimPrefix(k, s.prefix)
			// SCAN 可能重复返回同一个 key
			if _, ok := seen[room]; ok {
				continue
			}
			seen[room] = struct{}{}
			rooms = append(rooms, room)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return rooms, nil
}

func decodeMessages(key string, raw []string) []model.BufferedMessage {
	messages := make([]model.BufferedMessage, 0, len(raw))
	for _, item := range raw {
		var m model.BufferedMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			zap.L().Error("drop undecodable buffered message", zap.String("key", key), zap.String("raw", item), zap.Error(err))
			continue
		}
		messages = append(messages, m)
	}
	return messages
}
