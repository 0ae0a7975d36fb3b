// Package router 提供 HTTP 路由注册
// 本文件定义聊天历史路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterMessageRoutes 注册聊天历史查询（需要认证）
func (rt *Router) RegisterMessageRoutes(rg *gin.RouterGroup) {
	chatGroup := rg.Group("/chat")
	{
		chatGroup.GET("/messages", rt.handlers.Message.GetHistory) // 房间最近消息
	}
}
