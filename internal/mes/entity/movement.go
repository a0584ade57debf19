package entity

import (
	"time"
)

// MovementType 物流单类型
const (
	MovementTypeMaterialIn  = "material_in"  // 来料
	MovementTypeToolingIn   = "tooling_in"   // 工装到货
	MovementTypeShippingOut = "shipping_out" // 成品发运
	MovementTypeCoopOut     = "coop_out"     // 外协发出
	MovementTypeCoopIn      = "coop_in"      // 外协返回
)

// LogisticsEntry 物流/转移单。
// 历史遗留：旧记录数量在 quantity，新记录在 qty_sent/qty_received；
// 读取侧统一走 flow.EffectiveQty。
type LogisticsEntry struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	PartID      string `json:"part_id" gorm:"type:uuid;not null;index"`
	Type        string `json:"type" gorm:"size:50;not null"`
	Description string `json:"description" gorm:"type:text;not null"`
	Quantity    *int   `json:"quantity"`
	QtySent     *int   `json:"qty_sent"`
	QtyReceived *int   `json:"qty_received"`
	Date        time.Time `json:"date" gorm:"type:date;not null;index"`
	Status      string    `json:"status" gorm:"size:20;default:pending"`

	FromLocation string  `json:"from_location" gorm:"size:255"`
	FromHolder   string  `json:"from_holder" gorm:"size:255"`
	ToLocation   string  `json:"to_location" gorm:"size:255"`
	ToHolder     string  `json:"to_holder" gorm:"size:255"`
	StageID      *string `json:"stage_id" gorm:"type:uuid;index"` // 目标工序状态

	Carrier        string `json:"carrier" gorm:"size:100"`
	TrackingNumber string `json:"tracking_number" gorm:"size:100"`
	Counterparty   string `json:"counterparty" gorm:"size:255"`
	Notes          string `json:"notes" gorm:"type:text"`

	PlannedETA  *time.Time `json:"planned_eta"`
	SentAt      *time.Time `json:"sent_at"`
	ReceivedAt  *time.Time `json:"received_at"`
	ReturnedAt  *time.Time `json:"returned_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (LogisticsEntry) TableName() string {
	return "logistics_entries"
}
