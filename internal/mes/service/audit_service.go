package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/xuri/excelize/v2"
)

// AuditService 审计日志服务
type AuditService struct {
	repo     *repository.AuditRepository
	userRepo *repository.UserRepository
}

// NewAuditService 创建审计日志服务
func NewAuditService(repo *repository.AuditRepository, userRepo *repository.UserRepository) *AuditService {
	return &AuditService{repo: repo, userRepo: userRepo}
}

// Entry 一条审计记录的输入
type Entry struct {
	Action     string
	EntityType string
	EntityID   string
	EntityName string
	UserID     string
	PartID     string
	PartCode   string
	Details    map[string]interface{}
}

// Log 追加审计记录。审计失败不影响主流程，错误交给调用方决定是否记日志。
func (s *AuditService) Log(ctx context.Context, e Entry) error {
	event := &entity.AuditEvent{
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		EntityName: e.EntityName,
		PartCode:   e.PartCode,
		Details:    entity.JSONB(e.Details),
	}
	if e.UserID != "" {
		uid := e.UserID
		event.UserID = &uid
		if user, err := s.userRepo.FindByID(ctx, e.UserID); err == nil {
			event.UserName = user.Name
		}
	}
	if e.PartID != "" {
		pid := e.PartID
		event.PartID = &pid
	}
	return s.repo.Append(ctx, event)
}

// List 获取审计日志（分页）
func (s *AuditService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.AuditEvent, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return s.repo.List(ctx, page, pageSize, filters)
}

// ListByEntity 获取某对象的审计记录
func (s *AuditService) ListByEntity(ctx context.Context, entityType, entityID string) ([]entity.AuditEvent, error) {
	return s.repo.ListByEntity(ctx, entityType, entityID)
}

// ExportXLSX 导出审计日志为xlsx
func (s *AuditService) ExportXLSX(ctx context.Context, filters map[string]interface{}, w io.Writer) error {
	events, _, err := s.repo.List(ctx, 1, 10000, filters)
	if err != nil {
		return fmt.Errorf("load audit events: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Audit"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Время", "Действие", "Объект", "Название", "Пользователь", "Партия", "Детали"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, e := range events {
		details := ""
		if len(e.Details) > 0 {
			if b, err := json.Marshal(e.Details); err == nil {
				details = string(b)
			}
		}
		values := []interface{}{
			e.CreatedAt.Format(time.RFC3339),
			e.Action,
			e.EntityType,
			e.EntityName,
			e.UserName,
			e.PartCode,
			details,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	return f.Write(w)
}
