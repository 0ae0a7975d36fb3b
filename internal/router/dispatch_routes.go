// Package router 提供 HTTP 路由注册
// 本文件定义定时投递路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterDispatchRoutes 注册定时投递管理（需要认证）
func (rt *Router) RegisterDispatchRoutes(rg *gin.RouterGroup) {
	dispatchGroup := rg.Group("/notifications/scheduled")
	{
		dispatchGroup.POST("", rt.handlers.Dispatch.Schedule)     // 创建
		dispatchGroup.GET("", rt.handlers.Dispatch.List)          // 列表
		dispatchGroup.GET("/:id", rt.handlers.Dispatch.Get)       // 详情
		dispatchGroup.DELETE("/:id", rt.handlers.Dispatch.Cancel) // 取消
	}
}
