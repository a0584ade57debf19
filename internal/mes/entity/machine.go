package entity

import (
	"time"
)

// Machine 机床
type Machine struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Name         string    `json:"name" gorm:"size:255;not null"`
	Code         string    `json:"code" gorm:"size:100"`
	Department   string    `json:"department" gorm:"size:50;not null;index"`
	RatePerShift int       `json:"rate_per_shift" gorm:"default:400"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Machine) TableName() string {
	return "machines"
}

// MachineNorm 机床定额：某零件某工序的单班产量，排产预测的输入
type MachineNorm struct {
	ID             string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	MachineID      string     `json:"machine_id" gorm:"type:uuid;not null;uniqueIndex:uq_machine_norm,priority:1"`
	PartID         string     `json:"part_id" gorm:"type:uuid;not null;uniqueIndex:uq_machine_norm,priority:2"`
	Stage          string     `json:"stage" gorm:"size:50;not null;uniqueIndex:uq_machine_norm,priority:3"`
	QtyPerShift    int        `json:"qty_per_shift" gorm:"not null"` // 必须 > 0
	IsConfigured   bool       `json:"is_configured" gorm:"default:false"`
	ConfiguredAt   *time.Time `json:"configured_at"`
	ConfiguredByID *string    `json:"configured_by_id" gorm:"type:uuid"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (MachineNorm) TableName() string {
	return "machine_norms"
}
