package request

// UpdatePresenceRequest 手动设置在线状态
// PATCH /api/presence?status=BUSY
type UpdatePresenceRequest struct {
	Status string `form:"status" binding:"required,oneof=ONLINE BUSY OFFLINE"`
}

// GetPresenceRequest 批量查询在线状态
// GET /api/presence?userIds=a,b,c
type GetPresenceRequest struct {
	UserIDs string `form:"userIds" binding:"required"`
}
