package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// InventoryHandler 库存处理器
type InventoryHandler struct {
	svc  *service.InventoryService
	auth *service.AuthService
}

// NewInventoryHandler 创建库存处理器
func NewInventoryHandler(svc *service.InventoryService, auth *service.AuthService) *InventoryHandler {
	return &InventoryHandler{svc: svc, auth: auth}
}

// List 获取库存列表
// GET /api/v1/inventory?category=&search=&low_stock_only=true
func (h *InventoryHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), c.Query("category"), c.Query("search"),
		c.Query("low_stock_only") == "true")
	if err != nil {
		InternalError(c, "获取库存列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}

// Get 获取库存条目
// GET /api/v1/inventory/:id
func (h *InventoryHandler) Get(c *gin.Context) {
	item, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, item)
}

// Create 创建库存条目
// POST /api/v1/inventory
func (h *InventoryHandler) Create(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}

	var item entity.InventoryItem
	if err := c.ShouldBindJSON(&item); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	created, err := h.svc.Create(c.Request.Context(), &item, user)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, created)
}

// Update 更新库存条目
// PUT /api/v1/inventory/:id
func (h *InventoryHandler) Update(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}

	item, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	qty := item.Quantity
	if err := c.ShouldBindJSON(item); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	// 数量只能通过出入库变更
	item.Quantity = qty
	if err := h.svc.Update(c.Request.Context(), item, user); err != nil {
		Fail(c, err)
		return
	}
	Success(c, item)
}

// Delete 删除库存条目
// DELETE /api/v1/inventory/:id
func (h *InventoryHandler) Delete(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), user); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"message": "deleted"})
}

// Adjust 出入库
// POST /api/v1/inventory/:id/adjust
func (h *InventoryHandler) Adjust(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}

	var in service.AdjustInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	item, err := h.svc.Adjust(c.Request.Context(), c.Param("id"), in, user)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			BadRequest(c, "库存不足")
			return
		}
		Fail(c, err)
		return
	}
	Success(c, item)
}

// Movements 出入库流水
// GET /api/v1/inventory/:id/movements?limit=50
func (h *InventoryHandler) Movements(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	movements, err := h.svc.ListMovements(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"items": movements})
}
