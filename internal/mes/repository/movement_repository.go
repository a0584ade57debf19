package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// MovementRepository 物流单仓库
type MovementRepository struct {
	db *gorm.DB
}

// NewMovementRepository 创建物流单仓库
func NewMovementRepository(db *gorm.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// FindByID 根据ID查找物流单
func (r *MovementRepository) FindByID(ctx context.Context, id string) (*entity.LogisticsEntry, error) {
	var m entity.LogisticsEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Create 创建物流单
func (r *MovementRepository) Create(ctx context.Context, m *entity.LogisticsEntry) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Update 更新物流单
func (r *MovementRepository) Update(ctx context.Context, m *entity.LogisticsEntry) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// ListByPart 获取零件全部物流单
func (r *MovementRepository) ListByPart(ctx context.Context, partID string) ([]entity.LogisticsEntry, error) {
	var entries []entity.LogisticsEntry
	err := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Order("date DESC, created_at DESC").
		Find(&entries).Error
	return entries, err
}

// ListActiveByStage 查工序状态行上未关闭的转移单（sent / in_transit）
func (r *MovementRepository) ListActiveByStage(ctx context.Context, stageID string) ([]entity.LogisticsEntry, error) {
	var entries []entity.LogisticsEntry
	err := r.db.WithContext(ctx).
		Where("stage_id = ? AND status IN ?", stageID, []string{"sent", "in_transit"}).
		Find(&entries).Error
	return entries, err
}

// List 获取物流单列表（分页）
func (r *MovementRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.LogisticsEntry, int64, error) {
	var entries []entity.LogisticsEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.LogisticsEntry{})

	if partID, ok := filters["part_id"].(string); ok && partID != "" {
		query = query.Where("part_id = ?", partID)
	}
	if mtype, ok := filters["type"].(string); ok && mtype != "" {
		query = query.Where("type = ?", mtype)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if counterparty, ok := filters["counterparty"].(string); ok && counterparty != "" {
		query = query.Where("counterparty ILIKE ?", "%"+counterparty+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("date DESC, created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}
