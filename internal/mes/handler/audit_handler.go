package handler

import (
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// AuditHandler 审计日志处理器
type AuditHandler struct {
	svc *service.AuditService
}

// NewAuditHandler 创建审计日志处理器
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// auditFilters 从请求提取过滤条件
func auditFilters(c *gin.Context) map[string]interface{} {
	filters := map[string]interface{}{
		"action":      c.Query("action"),
		"entity_type": c.Query("entity_type"),
		"user_id":     c.Query("user_id"),
		"part_id":     c.Query("part_id"),
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
	return filters
}

// List 获取审计日志
// GET /api/v1/audit?action=&entity_type=&user_id=&part_id=&date_from=&date_to=
func (h *AuditHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	events, total, err := h.svc.List(c.Request.Context(), page, pageSize, auditFilters(c))
	if err != nil {
		InternalError(c, "获取审计日志失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": events,
		"total": total,
	})
}

// ListByEntity 某对象的审计记录
// GET /api/v1/audit/entity/:type/:id
func (h *AuditHandler) ListByEntity(c *gin.Context) {
	events, err := h.svc.ListByEntity(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		InternalError(c, "获取审计记录失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": events})
}

// Export 导出审计日志为xlsx
// GET /api/v1/audit/export
func (h *AuditHandler) Export(c *gin.Context) {
	filename := fmt.Sprintf("audit_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := h.svc.ExportXLSX(c.Request.Context(), auditFilters(c), c.Writer); err != nil {
		InternalError(c, "导出失败: "+err.Error())
		return
	}
}
