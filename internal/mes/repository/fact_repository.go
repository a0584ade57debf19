package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// FactRepository 报工仓库
type FactRepository struct {
	db *gorm.DB
}

// NewFactRepository 创建报工仓库
func NewFactRepository(db *gorm.DB) *FactRepository {
	return &FactRepository{db: db}
}

// FindByID 根据ID查找报工记录
func (r *FactRepository) FindByID(ctx context.Context, id string) (*entity.StageFact, error) {
	var fact entity.StageFact
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("id = ?", id).
		First(&fact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &fact, nil
}

// Create 创建报工记录
func (r *FactRepository) Create(ctx context.Context, fact *entity.StageFact) error {
	return r.db.WithContext(ctx).Create(fact).Error
}

// Update 更新报工记录
func (r *FactRepository) Update(ctx context.Context, fact *entity.StageFact) error {
	return r.db.WithContext(ctx).Save(fact).Error
}

// Delete 删除报工记录
func (r *FactRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entity.StageFact{}).Error
}

// ListByPart 获取零件全部报工记录
func (r *FactRepository) ListByPart(ctx context.Context, partID string) ([]entity.StageFact, error) {
	var facts []entity.StageFact
	err := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Preload("Attachments").
		Order("date DESC, created_at DESC").
		Find(&facts).Error
	return facts, err
}

// SumGoodByStage 汇总零件各工序合格数
func (r *FactRepository) SumGoodByStage(ctx context.Context, partID string) (map[string]int, error) {
	var rows []struct {
		Stage string `gorm:"column:stage"`
		Total int    `gorm:"column:total"`
	}
	err := r.db.WithContext(ctx).
		Model(&entity.StageFact{}).
		Select("stage, COALESCE(SUM(qty_good), 0) as total").
		Where("part_id = ?", partID).
		Group("stage").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int, len(rows))
	for _, row := range rows {
		totals[row.Stage] = row.Total
	}
	return totals, nil
}

// List 获取报工列表（分页）
func (r *FactRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.StageFact, int64, error) {
	var facts []entity.StageFact
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.StageFact{})

	if partID, ok := filters["part_id"].(string); ok && partID != "" {
		query = query.Where("part_id = ?", partID)
	}
	if stage, ok := filters["stage"].(string); ok && stage != "" {
		query = query.Where("stage = ?", stage)
	}
	if machineID, ok := filters["machine_id"].(string); ok && machineID != "" {
		query = query.Where("machine_id = ?", machineID)
	}
	if operatorID, ok := filters["operator_id"].(string); ok && operatorID != "" {
		query = query.Where("operator_id = ?", operatorID)
	}
	if dateFrom, ok := filters["date_from"].(time.Time); ok && !dateFrom.IsZero() {
		query = query.Where("date >= ?", dateFrom)
	}
	if dateTo, ok := filters["date_to"].(time.Time); ok && !dateTo.IsZero() {
		query = query.Where("date <= ?", dateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Attachments").
		Order("date DESC, created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&facts).Error

	return facts, total, err
}

// AddAttachment 添加报工附件
func (r *FactRepository) AddAttachment(ctx context.Context, att *entity.StageFactAttachment) error {
	return r.db.WithContext(ctx).Create(att).Error
}
