// Package https_server 提供 HTTP/HTTPS 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件和路由
package https_server

import (
	"chat_relay_server/internal/config"                    // 配置管理
	"chat_relay_server/internal/handler"                   // Handler 聚合对象
	"chat_relay_server/internal/infrastructure/logger"     // 日志与恢复中间件
	"chat_relay_server/internal/infrastructure/middleware" // 监控与 TLS 中间件
	"chat_relay_server/internal/router"                    // 路由注册

	"github.com/gin-contrib/cors" // CORS 跨域中间件
	"github.com/gin-gonic/gin"    // Gin Web 框架
)

// Init 创建 Gin 引擎
// 中间件顺序：日志 -> 恢复 -> 监控 -> CORS -> (可选) TLS 重定向，最后注册路由
func Init(handlers *handler.Handlers, conf *config.MainConfig) *gin.Engine {
	if conf.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))
	engine.Use(middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // 生产环境应指定具体域名
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	// 由 Nginx 终止 TLS 时保持关闭
	if conf.ForceTLS {
		engine.Use(middleware.TlsHandler(conf.Host, conf.Port))
	}

	rt := router.NewRouter(handlers)
	rt.RegisterRoutes(engine)

	return engine
}
