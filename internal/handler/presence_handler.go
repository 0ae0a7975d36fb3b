// Package handler 提供 HTTP 请求处理器
// 本文件处理在线状态
package handler

import (
	"strings"

	"chat_relay_server/internal/dto/request"
	"chat_relay_server/internal/infrastructure/middleware"
	"chat_relay_server/internal/service"
	"chat_relay_server/internal/service/presence"
	"chat_relay_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// maxPresenceQuery 单次批量查询的用户数上限
const maxPresenceQuery = 200

// PresenceHandler 在线状态处理器
type PresenceHandler struct {
	presenceSvc service.PresenceService
}

// NewPresenceHandler 创建在线状态处理器
func NewPresenceHandler(presenceSvc service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presenceSvc: presenceSvc}
}

// UpdateStatus 设置当前用户的手动状态
// PATCH /api/presence?status=BUSY
func (h *PresenceHandler) UpdateStatus(c *gin.Context) {
	var req request.UpdatePresenceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	status, _ := presence.ParseStatus(req.Status)
	userID := c.GetString(middleware.ContextUserID)
	h.presenceSvc.SetManualStatus(userID, status)
	HandleSuccess(c, h.presenceSvc.Snapshot(userID))
}

// GetPresences 批量查询在线状态
// GET /api/presence?userIds=a,b,c
func (h *PresenceHandler) GetPresences(c *gin.Context) {
	var req request.GetPresenceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	ids := splitIDs(req.UserIDs)
	if len(ids) == 0 || len(ids) > maxPresenceQuery {
		HandleError(c, errorx.Newf(errorx.CodeInvalidParam, "userIds must contain 1..%d ids", maxPresenceQuery))
		return
	}
	views := make([]presence.View, 0, len(ids))
	for _, id := range ids {
		views = append(views, h.presenceSvc.Snapshot(id))
	}
	HandleSuccess(c, views)
}

func splitIDs(raw string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
