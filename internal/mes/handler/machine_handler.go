package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// MachineHandler 机床处理器
type MachineHandler struct {
	svc *service.MachineService
}

// NewMachineHandler 创建机床处理器
func NewMachineHandler(svc *service.MachineService) *MachineHandler {
	return &MachineHandler{svc: svc}
}

// List 获取机床列表
// GET /api/v1/machines?department=&active_only=true
func (h *MachineHandler) List(c *gin.Context) {
	machines, err := h.svc.List(c.Request.Context(), c.Query("department"), c.Query("active_only") == "true")
	if err != nil {
		InternalError(c, "获取机床列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": machines})
}

// Get 获取机床
// GET /api/v1/machines/:id
func (h *MachineHandler) Get(c *gin.Context) {
	machine, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, machine)
}

// Create 创建机床
// POST /api/v1/machines
func (h *MachineHandler) Create(c *gin.Context) {
	var machine entity.Machine
	if err := c.ShouldBindJSON(&machine); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.Create(c.Request.Context(), &machine); err != nil {
		InternalError(c, "创建机床失败: "+err.Error())
		return
	}
	Created(c, machine)
}

// Update 更新机床
// PUT /api/v1/machines/:id
func (h *MachineHandler) Update(c *gin.Context) {
	machine, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	if err := c.ShouldBindJSON(machine); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.Update(c.Request.Context(), machine); err != nil {
		InternalError(c, "更新机床失败: "+err.Error())
		return
	}
	Success(c, machine)
}

// SetNormRequest 定额设置请求
type SetNormRequest struct {
	PartID      string `json:"part_id" binding:"required"`
	Stage       string `json:"stage" binding:"required"`
	QtyPerShift int    `json:"qty_per_shift" binding:"required"`
}

// SetNorm 设置定额
// POST /api/v1/machines/:id/norms
func (h *MachineHandler) SetNorm(c *gin.Context) {
	var req SetNormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	norm, err := h.svc.SetNorm(c.Request.Context(), c.Param("id"), req.PartID, req.Stage, req.QtyPerShift, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, norm)
}

// NormsByPart 零件的全部定额
// GET /api/v1/parts/:id/norms
func (h *MachineHandler) NormsByPart(c *gin.Context) {
	norms, err := h.svc.ListNormsByPart(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": norms})
}
