package entity

import (
	"time"
)

// ShiftType 班次
const (
	ShiftDay   = "day"
	ShiftNight = "night"
)

// DeviationReason 报工偏差原因
const (
	DeviationSetup     = "setup"     // 调机
	DeviationBreakdown = "breakdown" // 设备故障
	DeviationMaterial  = "material"  // 缺料
	DeviationTooling   = "tooling"   // 工装问题
	DeviationOther     = "other"
)

// StageFact 一个班次的报工记录
type StageFact struct {
	ID              string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	PartID          string     `json:"part_id" gorm:"type:uuid;not null;index"`
	Stage           string     `json:"stage" gorm:"size:50;not null;index"`
	MachineID       *string    `json:"machine_id" gorm:"type:uuid;index"`
	OperatorID      *string    `json:"operator_id" gorm:"type:uuid;index"`
	Date            time.Time  `json:"date" gorm:"type:date;not null;index"`
	ShiftType       string     `json:"shift_type" gorm:"size:10;not null"`
	QtyGood         int        `json:"qty_good" gorm:"not null"`
	QtyScrap        int        `json:"qty_scrap" gorm:"default:0"`
	QtyExpected     *int       `json:"qty_expected"`
	Comment         string     `json:"comment" gorm:"type:text"`
	DeviationReason string     `json:"deviation_reason" gorm:"size:50"`
	CreatedByID     *string    `json:"created_by_id" gorm:"type:uuid"`
	CreatedAt       time.Time  `json:"created_at"`

	Attachments []StageFactAttachment `json:"attachments,omitempty" gorm:"foreignKey:StageFactID"`
}

func (StageFact) TableName() string {
	return "stage_facts"
}

// AttachmentType 附件类型
const (
	AttachmentImage = "image"
	AttachmentFile  = "file"
)

// StageFactAttachment 报工附件
type StageFactAttachment struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	StageFactID string    `json:"stage_fact_id" gorm:"type:uuid;not null;index"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	URL         string    `json:"url" gorm:"type:text;not null"`
	Type        string    `json:"type" gorm:"size:20;not null"`
	Size        *int64    `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

func (StageFactAttachment) TableName() string {
	return "stage_fact_attachments"
}
