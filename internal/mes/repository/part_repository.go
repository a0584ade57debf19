package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// PartRepository 零件仓库
type PartRepository struct {
	db *gorm.DB
}

// NewPartRepository 创建零件仓库
func NewPartRepository(db *gorm.DB) *PartRepository {
	return &PartRepository{db: db}
}

// FindByID 根据ID查找零件（带工序状态）
func (r *PartRepository) FindByID(ctx context.Context, id string) (*entity.Part, error) {
	var part entity.Part
	err := r.db.WithContext(ctx).
		Preload("StageStatuses").
		Where("id = ?", id).
		First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &part, nil
}

// Create 创建零件
func (r *PartRepository) Create(ctx context.Context, part *entity.Part) error {
	return r.db.WithContext(ctx).Create(part).Error
}

// Update 更新零件
func (r *PartRepository) Update(ctx context.Context, part *entity.Part) error {
	return r.db.WithContext(ctx).Save(part).Error
}

// Delete 删除零件
func (r *PartRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entity.Part{}).Error
}

// List 获取零件列表（分页）
func (r *PartRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Part, int64, error) {
	var parts []entity.Part
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Part{})

	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if priority, ok := filters["priority"].(string); ok && priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if customer, ok := filters["customer"].(string); ok && customer != "" {
		query = query.Where("customer = ?", customer)
	}
	if machineID, ok := filters["machine_id"].(string); ok && machineID != "" {
		query = query.Where("machine_id = ?", machineID)
	}
	if coop, ok := filters["is_cooperation"].(bool); ok {
		query = query.Where("is_cooperation = ?", coop)
	}
	if search, ok := filters["search"].(string); ok && search != "" {
		like := "%" + search + "%"
		query = query.Where("code ILIKE ? OR name ILIKE ?", like, like)
	}
	if overdueOnly, ok := filters["overdue_only"].(bool); ok && overdueOnly {
		query = query.Where("deadline < ? AND status <> ?", time.Now(), entity.PartStatusDone)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("StageStatuses").
		Order("deadline ASC, created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&parts).Error

	return parts, total, err
}

// FindStageStatus 根据ID查找工序状态
func (r *PartRepository) FindStageStatus(ctx context.Context, id string) (*entity.PartStageStatus, error) {
	var ss entity.PartStageStatus
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ss).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ss, nil
}

// FindStageStatusByStage 查找零件某工序的状态行
func (r *PartRepository) FindStageStatusByStage(ctx context.Context, partID, stage string) (*entity.PartStageStatus, error) {
	var ss entity.PartStageStatus
	err := r.db.WithContext(ctx).
		Where("part_id = ? AND stage = ?", partID, stage).
		First(&ss).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ss, nil
}

// ListStageStatuses 获取零件全部工序状态
func (r *PartRepository) ListStageStatuses(ctx context.Context, partID string) ([]entity.PartStageStatus, error) {
	var statuses []entity.PartStageStatus
	err := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Order("created_at ASC").
		Find(&statuses).Error
	return statuses, err
}

// CreateStageStatuses 批量创建工序状态（建零件时播种）
func (r *PartRepository) CreateStageStatuses(ctx context.Context, statuses []entity.PartStageStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&statuses).Error
}

// UpdateStageStatus 更新工序状态
func (r *PartRepository) UpdateStageStatus(ctx context.Context, ss *entity.PartStageStatus) error {
	return r.db.WithContext(ctx).Save(ss).Error
}

// CountByStatus 各状态零件数，看板用
func (r *PartRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string `gorm:"column:status"`
		Count  int64  `gorm:"column:count"`
	}
	err := r.db.WithContext(ctx).
		Model(&entity.Part{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
