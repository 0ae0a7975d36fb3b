package chat

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"chat_relay_server/pkg/constants"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrConnClosed 连接已关闭
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull 发送队列已满，对端读取过慢
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn 注册表持有的连接抽象
// Send 不得阻塞，注册表在锁外调用它
type Conn interface {
	ID() string
	Send(frame []byte) error
	IsOpen() bool
}

// 允许任意来源，跨域由前置网关控制
var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Upgrade 把 HTTP 请求升级为 WebSocket 连接
func Upgrade(w http.ResponseWriter, r *http.Request) (*UserConn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewUserConn(ws), nil
}

// UserConn 一条 WebSocket 连接
// 写操作只在 WriteLoop 协程里发生，其他协程通过 sendBack 投递
type UserConn struct {
	ws        *websocket.Conn
	id        string
	sendBack  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewUserConn 包装一条已升级的连接
func NewUserConn(ws *websocket.Conn) *UserConn {
	return &UserConn{
		ws:       ws,
		id:       uuid.NewString(),
		sendBack: make(chan []byte, constants.CHANNEL_SIZE),
		done:     make(chan struct{}),
	}
}

// ID 连接 ID
func (c *UserConn) ID() string { return c.id }

// IsOpen 连接是否仍可写
func (c *UserConn) IsOpen() bool { return !c.closed.Load() }

// Send 非阻塞投递一帧
func (c *UserConn) Send(frame []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	select {
	case <-c.done:
		return ErrConnClosed
	case c.sendBack <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close 关闭连接，可重复调用
func (c *UserConn) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		if err := c.ws.Close(); err != nil {
			zap.L().Debug("ws close", zap.String("conn_id", c.id), zap.Error(err))
		}
	})
}

// WriteLoop 把 sendBack 中的帧写给客户端，并定时 ping
// 退出时关闭连接
func (c *UserConn) WriteLoop() {
	ticker := time.NewTicker(constants.WS_PING_PERIOD)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.sendBack:
			_ = c.ws.SetWriteDeadline(time.Now().Add(constants.WS_WRITE_WAIT))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				zap.L().Warn("ws write failed", zap.String("conn_id", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(constants.WS_WRITE_WAIT))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				zap.L().Debug("ws ping failed", zap.String("conn_id", c.id), zap.Error(err))
				return
			}
		}
	}
}

// ReadLoop 逐帧读取文本消息交给 handle，读错误或连接关闭时返回
func (c *UserConn) ReadLoop(handle func(frame []byte)) {
	c.ws.SetReadLimit(constants.WS_MAX_MESSAGE_SIZE)
	_ = c.ws.SetReadDeadline(time.Now().Add(constants.WS_PONG_WAIT))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(constants.WS_PONG_WAIT))
	})
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Warn("ws read failed", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(constants.WS_PONG_WAIT))
		handle(data)
	}
}
