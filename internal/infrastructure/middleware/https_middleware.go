package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// TlsHandler 将 HTTP 请求重定向到 HTTPS
// 由 mainConfig.forceTLS 控制是否启用，TLS 在 Nginx 终止时保持关闭
func TlsHandler(host string, port int) gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect: true,
		SSLHost:     host + ":" + strconv.Itoa(port),
	})

	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			// 重定向时 secure 已写入 301 并返回 error
			if !c.Writer.Written() {
				zap.L().Error("TLS redirection failed", zap.Error(err))
			}
			c.Abort()
			return
		}
		c.Next()
	}
}
