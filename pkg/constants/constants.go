package constants

import "time"

const (
	CHANNEL_SIZE = 100 // 每个连接的发送缓冲大小

	CHAT_ROOM_KEY_PREFIX = "chat:room:" // Redis 房间消息缓冲 key 前缀

	SYSTEM_SENDER_ID    = "system" // 定时任务投递时的默认发送者
	GUEST_SENDER_PREFIX = "guest:" // 匿名连接发送者前缀，后接连接 ID

	DEFAULT_HISTORY_LIMIT = 50  // 历史消息默认条数
	MAX_HISTORY_LIMIT     = 100 // 历史消息最大条数
)

// WebSocket 连接参数
const (
	WS_WRITE_WAIT       = 10 * time.Second
	WS_PONG_WAIT        = 60 * time.Second
	WS_PING_PERIOD      = (WS_PONG_WAIT * 9) / 10
	WS_MAX_MESSAGE_SIZE = 64 * 1024
)

// 后台任务超时
const (
	WS_APPEND_TIMEOUT = 3 * time.Second  // 发送路径写缓冲
	FLUSH_TIMEOUT     = 30 * time.Second // 单个房间落库
)
