package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/flow"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/sse"
	"github.com/gin-gonic/gin"
)

// PartHandler 零件批次处理器
type PartHandler struct {
	svc       *service.PartService
	movements *service.MovementService
	auth      *service.AuthService
}

// NewPartHandler 创建零件处理器
func NewPartHandler(svc *service.PartService, movements *service.MovementService, auth *service.AuthService) *PartHandler {
	return &PartHandler{svc: svc, movements: movements, auth: auth}
}

// List 获取零件列表
// GET /api/v1/parts?status=&priority=&customer=&machine_id=&is_cooperation=&search=&overdue_only=
func (h *PartHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]interface{}{
		"status":     c.Query("status"),
		"priority":   c.Query("priority"),
		"customer":   c.Query("customer"),
		"machine_id": c.Query("machine_id"),
		"search":     c.Query("search"),
	}
	if v := c.Query("is_cooperation"); v != "" {
		filters["is_cooperation"] = v == "true"
	}
	if c.Query("overdue_only") == "true" {
		filters["overdue_only"] = true
	}

	parts, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取零件列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": parts,
		"total": total,
	})
}

// Summary 零件状态统计
// GET /api/v1/parts/summary
func (h *PartHandler) Summary(c *gin.Context) {
	counts, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		InternalError(c, "统计失败: "+err.Error())
		return
	}
	Success(c, counts)
}

// Create 创建零件批次
// POST /api/v1/parts
func (h *PartHandler) Create(c *gin.Context) {
	var in service.CreatePartInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	part, err := h.svc.Create(c.Request.Context(), in, GetUserID(c))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	sse.PublishPartUpdate(part.ID, "created")
	Created(c, part)
}

// Get 获取零件
// GET /api/v1/parts/:id
func (h *PartHandler) Get(c *gin.Context) {
	part, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, part)
}

// Update 更新零件
// PATCH /api/v1/parts/:id
func (h *PartHandler) Update(c *gin.Context) {
	var in service.UpdatePartInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	part, err := h.svc.Update(c.Request.Context(), c.Param("id"), in, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	sse.PublishPartUpdate(part.ID, "updated")
	Success(c, part)
}

// Delete 删除零件
// DELETE /api/v1/parts/:id
func (h *PartHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	sse.PublishPartUpdate(id, "deleted")
	Success(c, gin.H{"message": "deleted"})
}

// Stages 零件工序状态行
// GET /api/v1/parts/:id/stages
func (h *PartHandler) Stages(c *gin.Context) {
	statuses, err := h.svc.StageStatuses(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": statuses})
}

// Flow 零件流转卡
// GET /api/v1/parts/:id/flow
func (h *PartHandler) Flow(c *gin.Context) {
	cards, err := h.svc.FlowCards(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": cards})
}

// Journal 零件事件流
// GET /api/v1/parts/:id/journal?category=movements|facts|tasks|all
func (h *PartHandler) Journal(c *gin.Context) {
	category, ok := flow.ParseEventCategory(c.DefaultQuery("category", "all"))
	if !ok {
		BadRequest(c, "未知的事件类别: "+c.Query("category"))
		return
	}
	events, err := h.svc.Journal(c.Request.Context(), c.Param("id"), category)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": events})
}

// Schedule 交期预测
// GET /api/v1/parts/:id/schedule
func (h *PartHandler) Schedule(c *gin.Context) {
	info, err := h.svc.Schedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, info)
}

// Transfer 工序间转移
// POST /api/v1/parts/:id/transfer
func (h *PartHandler) Transfer(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}
	if !user.CanManageMovements() {
		Forbidden(c, "没有转移权限")
		return
	}

	var in service.TransferInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	partID := c.Param("id")
	if err := h.movements.Transfer(c.Request.Context(), partID, in, user.ID); err != nil {
		Fail(c, err)
		return
	}
	sse.PublishPartUpdate(partID, "transferred")
	Success(c, gin.H{"message": "transferred"})
}
