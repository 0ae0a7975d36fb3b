package middleware

import (
	"net/http"
	"strings"

	"chat_relay_server/pkg/errorx"
	"chat_relay_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

// ContextUserID 认证通过后写入 gin.Context 的用户 ID 键
const ContextUserID = "user_id"

// BearerToken 从 Authorization 头中提取 Bearer Token
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// ResolveToken 依次从 Authorization 头和 ?token= 查询参数中取 Token
// 浏览器 WebSocket 无法自定义请求头，因此握手时允许走查询参数
func ResolveToken(c *gin.Context) string {
	if token, ok := BearerToken(c.GetHeader("Authorization")); ok {
		return token
	}
	return strings.TrimSpace(c.Query("token"))
}

// JWTAuth JWT 认证中间件
// 验证 Access Token 并将用户 ID 存入上下文
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  "请先登录",
			})
			return
		}

		token, ok := BearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  "Token 格式错误，请使用 Bearer Token",
			})
			return
		}

		userID, err := jwt.ParseAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  "Token 已过期或无效，请重新登录",
			})
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}
