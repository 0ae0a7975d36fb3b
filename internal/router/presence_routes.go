// Package router 提供 HTTP 路由注册
// 本文件定义在线状态路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterPresenceRoutes 注册在线状态（需要认证）
func (rt *Router) RegisterPresenceRoutes(rg *gin.RouterGroup) {
	presenceGroup := rg.Group("/presence")
	{
		presenceGroup.PATCH("", rt.handlers.Presence.UpdateStatus) // 设置自己的状态
		presenceGroup.GET("", rt.handlers.Presence.GetPresences)   // 批量查询
	}
}
