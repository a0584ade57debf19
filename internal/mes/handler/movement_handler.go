package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/sse"
	"github.com/gin-gonic/gin"
)

// MovementHandler 物流单处理器
type MovementHandler struct {
	svc  *service.MovementService
	auth *service.AuthService
}

// NewMovementHandler 创建物流单处理器
func NewMovementHandler(svc *service.MovementService, auth *service.AuthService) *MovementHandler {
	return &MovementHandler{svc: svc, auth: auth}
}

// List 获取物流单列表
// GET /api/v1/movements?part_id=&type=&status=&counterparty=
func (h *MovementHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]interface{}{
		"part_id":      c.Query("part_id"),
		"type":         c.Query("type"),
		"status":       c.Query("status"),
		"counterparty": c.Query("counterparty"),
	}
	entries, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取物流单列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": entries,
		"total": total,
	})
}

// Create 创建物流单
// POST /api/v1/movements
func (h *MovementHandler) Create(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}
	if !user.CanManageMovements() {
		Forbidden(c, "没有物流单管理权限")
		return
	}

	var in service.CreateMovementInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	m, err := h.svc.Create(c.Request.Context(), in, user.ID)
	if err != nil {
		Fail(c, err)
		return
	}
	sse.PublishPartUpdate(m.PartID, "movement_created")
	Created(c, m)
}

// Get 获取物流单
// GET /api/v1/movements/:id
func (h *MovementHandler) Get(c *gin.Context) {
	m, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, m)
}

// UpdateStatus 推进物流单状态
// PATCH /api/v1/movements/:id/status
func (h *MovementHandler) UpdateStatus(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}
	if !user.CanManageMovements() {
		Forbidden(c, "没有物流单管理权限")
		return
	}

	var in service.UpdateStatusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	m, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), in, user.ID)
	if err != nil {
		Fail(c, err)
		return
	}
	sse.PublishPartUpdate(m.PartID, "movement_updated")
	Success(c, m)
}

// ListByPart 获取零件物流单
// GET /api/v1/parts/:id/movements
func (h *MovementHandler) ListByPart(c *gin.Context) {
	entries, err := h.svc.ListByPart(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": entries})
}
