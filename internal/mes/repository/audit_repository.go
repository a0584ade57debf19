package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// AuditRepository 审计日志仓库，只追加
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository 创建审计日志仓库
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append 追加审计记录
func (r *AuditRepository) Append(ctx context.Context, event *entity.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// List 获取审计日志（分页）
func (r *AuditRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.AuditEvent, int64, error) {
	var events []entity.AuditEvent
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.AuditEvent{})

	if action, ok := filters["action"].(string); ok && action != "" {
		query = query.Where("action = ?", action)
	}
	if entityType, ok := filters["entity_type"].(string); ok && entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if userID, ok := filters["user_id"].(string); ok && userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if partID, ok := filters["part_id"].(string); ok && partID != "" {
		query = query.Where("part_id = ?", partID)
	}
	if dateFrom, ok := filters["date_from"].(time.Time); ok && !dateFrom.IsZero() {
		query = query.Where("created_at >= ?", dateFrom)
	}
	if dateTo, ok := filters["date_to"].(time.Time); ok && !dateTo.IsZero() {
		query = query.Where("created_at <= ?", dateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&events).Error

	return events, total, err
}

// ListByEntity 获取某对象的全部审计记录
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]entity.AuditEvent, error) {
	var events []entity.AuditEvent
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Find(&events).Error
	return events, err
}
