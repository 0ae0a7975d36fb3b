// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 握手
package handler

import (
	"net/http"

	"chat_relay_server/internal/infrastructure/middleware"
	"chat_relay_server/internal/service"
	"chat_relay_server/internal/service/chat"
	"chat_relay_server/pkg/errorx"
	"chat_relay_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WsHandler WebSocket 接入
type WsHandler struct {
	gateway        service.ChatGateway
	allowAnonymous bool
}

// NewWsHandler 创建 WebSocket 处理器
func NewWsHandler(gateway service.ChatGateway, allowAnonymous bool) *WsHandler {
	return &WsHandler{gateway: gateway, allowAnonymous: allowAnonymous}
}

// Connect 升级为 WebSocket 连接
// GET /wss
// 身份: Authorization: Bearer <token> 或 ?token=<token>
// 无 Token 时仅在 allowAnonymous 打开时接入匿名连接
func (h *WsHandler) Connect(c *gin.Context) {
	identity, ok := h.resolveIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code": errorx.CodeUnauthorized,
			"msg":  "Token 已过期或无效，请重新登录",
		})
		return
	}

	conn, err := chat.Upgrade(c.Writer, c.Request)
	if err != nil {
		// Upgrade 失败时 gorilla 已经写回了 HTTP 错误
		zap.L().Warn("ws upgrade failed", zap.String("user_id", identity), zap.Error(err))
		return
	}
	zap.L().Info("ws connected", zap.String("conn_id", conn.ID()), zap.String("user_id", identity))
	go h.gateway.Serve(conn, identity)
}

func (h *WsHandler) resolveIdentity(c *gin.Context) (string, bool) {
	token := middleware.ResolveToken(c)
	if token == "" {
		return "", h.allowAnonymous
	}
	userID, err := jwt.ParseAccessToken(token)
	if err != nil {
		zap.L().Debug("ws token rejected", zap.Error(err))
		return "", false
	}
	return userID, true
}
