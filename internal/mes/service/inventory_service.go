package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
)

// InventoryService 库存服务
type InventoryService struct {
	repo  *repository.InventoryRepository
	audit *AuditService
}

// NewInventoryService 创建库存服务
func NewInventoryService(repo *repository.InventoryRepository, audit *AuditService) *InventoryService {
	return &InventoryService{repo: repo, audit: audit}
}

// Create 创建库存条目
func (s *InventoryService) Create(ctx context.Context, item *entity.InventoryItem, user *entity.User) (*entity.InventoryItem, error) {
	if !user.CanManageInventory() {
		return nil, ErrForbidden
	}
	switch item.Category {
	case entity.InventoryMaterial, entity.InventoryTooling, entity.InventoryFinished:
	case "":
		item.Category = entity.InventoryMaterial
	default:
		return nil, fmt.Errorf("unknown inventory category: %s", item.Category)
	}
	if item.Quantity < 0 {
		return nil, fmt.Errorf("quantity must not be negative")
	}
	if item.Unit == "" {
		item.Unit = "шт"
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Update 更新库存条目属性（数量变化走 Adjust）
func (s *InventoryService) Update(ctx context.Context, item *entity.InventoryItem, user *entity.User) error {
	if !user.CanManageInventory() {
		return ErrForbidden
	}
	return s.repo.Update(ctx, item)
}

// Delete 删除库存条目
func (s *InventoryService) Delete(ctx context.Context, id string, user *entity.User) error {
	if !user.CanManageInventory() {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// Get 获取库存条目
func (s *InventoryService) Get(ctx context.Context, id string) (*entity.InventoryItem, error) {
	return s.repo.FindByID(ctx, id)
}

// List 获取库存列表
func (s *InventoryService) List(ctx context.Context, category, search string, lowStockOnly bool) ([]entity.InventoryItem, error) {
	return s.repo.List(ctx, category, search, lowStockOnly)
}

// AdjustInput 出入库输入
type AdjustInput struct {
	Type     string `json:"type" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
	Reason   string `json:"reason"`
}

// Adjust 出入库。入库数量为正、出库为负，出库不允许透支。
func (s *InventoryService) Adjust(ctx context.Context, itemID string, in AdjustInput, user *entity.User) (*entity.InventoryItem, error) {
	if !user.CanManageInventory() {
		return nil, ErrForbidden
	}
	if in.Quantity == 0 {
		return nil, fmt.Errorf("quantity must not be zero")
	}

	delta := in.Quantity
	switch in.Type {
	case entity.InventoryIn:
		if delta < 0 {
			return nil, fmt.Errorf("inbound quantity must be positive")
		}
	case entity.InventoryOut:
		if delta > 0 {
			delta = -delta
		}
	case entity.InventoryAdjust:
	default:
		return nil, fmt.Errorf("unknown movement type: %s", in.Type)
	}

	uid := user.ID
	movement := &entity.InventoryMovement{
		Type:        in.Type,
		Quantity:    delta,
		Reason:      in.Reason,
		CreatedByID: &uid,
	}
	if err := s.repo.Adjust(ctx, itemID, delta, movement); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, itemID)
}

// ListMovements 获取出入库流水
func (s *InventoryService) ListMovements(ctx context.Context, itemID string, limit int) ([]entity.InventoryMovement, error) {
	return s.repo.ListMovements(ctx, itemID, limit)
}
