// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"chat_relay_server/internal/handler"
	"chat_relay_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// Router 路由管理器，持有注入的 Handler 聚合
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
// /wss 自行解析 Token（支持 ?token=），/api 下的接口统一走 JWTAuth
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	rt.RegisterHealthRoutes(r)
	rt.RegisterWebSocketRoutes(r.Group(""))

	api := r.Group("/api")
	api.Use(middleware.JWTAuth())
	rt.RegisterMessageRoutes(api)
	rt.RegisterDispatchRoutes(api)
	rt.RegisterPresenceRoutes(api)
}
