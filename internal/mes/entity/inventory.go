package entity

import (
	"time"
)

// InventoryCategory 库存类别
const (
	InventoryMaterial = "material" // 原材料
	InventoryTooling  = "tooling"  // 工装刀具
	InventoryFinished = "finished" // 成品
)

// InventoryItem 库存条目
type InventoryItem struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	Code      string    `json:"code" gorm:"size:100;index"`
	Category  string    `json:"category" gorm:"size:20;not null;default:material"`
	Quantity  int       `json:"quantity" gorm:"not null;default:0"`
	Unit      string    `json:"unit" gorm:"size:20;not null;default:шт"`
	MinStock  int       `json:"min_stock" gorm:"default:0"`
	Location  string    `json:"location" gorm:"size:255"`
	PartID    *string   `json:"part_id" gorm:"type:uuid;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (InventoryItem) TableName() string {
	return "inventory_items"
}

// InventoryMovementType 出入库方向
const (
	InventoryIn     = "in"
	InventoryOut    = "out"
	InventoryAdjust = "adjust"
)

// InventoryMovement 出入库流水，数量正负表示方向
type InventoryMovement struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ItemID      string    `json:"item_id" gorm:"type:uuid;not null;index"`
	Type        string    `json:"type" gorm:"size:20;not null"`
	Quantity    int       `json:"quantity" gorm:"not null"`
	Reason      string    `json:"reason" gorm:"type:text"`
	CreatedByID *string   `json:"created_by_id" gorm:"type:uuid"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

func (InventoryMovement) TableName() string {
	return "inventory_movements"
}
