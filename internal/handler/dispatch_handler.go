// Package handler 提供 HTTP 请求处理器
// 本文件处理定时投递任务
package handler

import (
	"chat_relay_server/internal/dto/request"
	"chat_relay_server/internal/dto/respond"
	"chat_relay_server/internal/infrastructure/middleware"
	"chat_relay_server/internal/service"

	"github.com/gin-gonic/gin"
)

// DispatchHandler 定时投递处理器
type DispatchHandler struct {
	dispatchSvc service.DispatchService
}

// NewDispatchHandler 创建定时投递处理器
func NewDispatchHandler(dispatchSvc service.DispatchService) *DispatchHandler {
	return &DispatchHandler{dispatchSvc: dispatchSvc}
}

// Schedule 创建定时任务
// POST /api/notifications/scheduled
// 请求体: request.ScheduleDispatchRequest
func (h *DispatchHandler) Schedule(c *gin.Context) {
	var req request.ScheduleDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	d, err := h.dispatchSvc.Schedule(c.Request.Context(), c.GetString(middleware.ContextUserID), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.NewScheduledDispatchRespond(d))
}

// List 全部任务，按计划时间升序
// GET /api/notifications/scheduled
func (h *DispatchHandler) List(c *gin.Context) {
	list, err := h.dispatchSvc.List(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.NewScheduledDispatchList(list))
}

// Get 查询单个任务
// GET /api/notifications/scheduled/:id
func (h *DispatchHandler) Get(c *gin.Context) {
	var uri request.DispatchIDUri
	if err := c.ShouldBindUri(&uri); err != nil {
		HandleParamError(c, err)
		return
	}
	d, err := h.dispatchSvc.Get(c.Request.Context(), uri.ID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.NewScheduledDispatchRespond(d))
}

// Cancel 取消任务，仅 PENDING 可取消
// DELETE /api/notifications/scheduled/:id
func (h *DispatchHandler) Cancel(c *gin.Context) {
	var uri request.DispatchIDUri
	if err := c.ShouldBindUri(&uri); err != nil {
		HandleParamError(c, err)
		return
	}
	d, err := h.dispatchSvc.Cancel(c.Request.Context(), uri.ID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.NewScheduledDispatchRespond(d))
}
