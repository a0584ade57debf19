package handler

import (
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/sse"
	"github.com/gin-gonic/gin"
)

// FactHandler 报工处理器
type FactHandler struct {
	svc  *service.FactService
	auth *service.AuthService
}

// NewFactHandler 创建报工处理器
func NewFactHandler(svc *service.FactService, auth *service.AuthService) *FactHandler {
	return &FactHandler{svc: svc, auth: auth}
}

// List 获取报工列表
// GET /api/v1/facts?part_id=&stage=&machine_id=&operator_id=&date_from=&date_to=
func (h *FactHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]interface{}{
		"part_id":     c.Query("part_id"),
		"stage":       c.Query("stage"),
		"machine_id":  c.Query("machine_id"),
		"operator_id": c.Query("operator_id"),
	}
	if v := c.Query("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filters["date_from"] = t
		}
	}
	if v := c.Query("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filters["date_to"] = t
		}
	}

	facts, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取报工列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": facts,
		"total": total,
	})
}

// Create 提交报工
// POST /api/v1/facts
func (h *FactHandler) Create(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}

	var in service.CreateFactInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	fact, err := h.svc.Create(c.Request.Context(), in, user)
	if err != nil {
		Fail(c, err)
		return
	}
	sse.PublishPartUpdate(fact.PartID, "fact_added")
	Created(c, fact)
}

// Get 获取报工记录
// GET /api/v1/facts/:id
func (h *FactHandler) Get(c *gin.Context) {
	fact, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, fact)
}

// Update 修改报工记录
// PATCH /api/v1/facts/:id
func (h *FactHandler) Update(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}

	var in service.UpdateFactInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	fact, err := h.svc.Update(c.Request.Context(), c.Param("id"), in, user)
	if err != nil {
		Fail(c, err)
		return
	}
	sse.PublishPartUpdate(fact.PartID, "fact_updated")
	Success(c, fact)
}

// Delete 删除报工记录
// DELETE /api/v1/facts/:id
func (h *FactHandler) Delete(c *gin.Context) {
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

// AttachmentRequest 附件挂接请求
type AttachmentRequest struct {
	Name string `json:"name" binding:"required"`
	URL  string `json:"url" binding:"required"`
	Size *int64 `json:"size"`
	Type string `json:"type"`
}

// AddAttachment 挂报工附件
// POST /api/v1/facts/:id/attachments
func (h *FactHandler) AddAttachment(c *gin.Context) {
	var req AttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if req.Type == "" {
		req.Type = entity.AttachmentFile
	}
	att := &entity.StageFactAttachment{
		Name: req.Name,
		URL:  req.URL,
		Size: req.Size,
		Type: req.Type,
	}
	if err := h.svc.AddAttachment(c.Request.Context(), c.Param("id"), att); err != nil {
		Fail(c, err)
		return
	}
	Created(c, att)
}
