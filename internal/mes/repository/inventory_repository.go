package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRepository 库存仓库
type InventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository 创建库存仓库
func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// FindByID 根据ID查找库存条目
func (r *InventoryRepository) FindByID(ctx context.Context, id string) (*entity.InventoryItem, error) {
	var item entity.InventoryItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Create 创建库存条目
func (r *InventoryRepository) Create(ctx context.Context, item *entity.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// Update 更新库存条目
func (r *InventoryRepository) Update(ctx context.Context, item *entity.InventoryItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// Delete 删除库存条目
func (r *InventoryRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entity.InventoryItem{}).Error
}

// List 获取库存列表
func (r *InventoryRepository) List(ctx context.Context, category, search string, lowStockOnly bool) ([]entity.InventoryItem, error) {
	var items []entity.InventoryItem
	query := r.db.WithContext(ctx).Model(&entity.InventoryItem{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("name ILIKE ? OR code ILIKE ?", like, like)
	}
	if lowStockOnly {
		query = query.Where("quantity <= min_stock")
	}
	err := query.Order("name ASC").Find(&items).Error
	return items, err
}

// ErrInsufficientStock 出库数量超过当前库存
var ErrInsufficientStock = errors.New("insufficient stock")

// Adjust 在事务内调整库存并写流水，出库不允许透支
func (r *InventoryRepository) Adjust(ctx context.Context, itemID string, delta int, movement *entity.InventoryMovement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item entity.InventoryItem
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", itemID).
			First(&item).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if item.Quantity+delta < 0 {
			return ErrInsufficientStock
		}
		if err := tx.Model(&entity.InventoryItem{}).
			Where("id = ?", itemID).
			Update("quantity", gorm.Expr("quantity + ?", delta)).Error; err != nil {
			return err
		}
		movement.ItemID = itemID
		return tx.Create(movement).Error
	})
}

// ListMovements 获取条目出入库流水
func (r *InventoryRepository) ListMovements(ctx context.Context, itemID string, limit int) ([]entity.InventoryMovement, error) {
	var movements []entity.InventoryMovement
	query := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&movements).Error
	return movements, err
}
