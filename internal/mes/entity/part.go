package entity

import (
	"time"
)

// PartStatus 零件状态
const (
	PartStatusNotStarted = "not_started"
	PartStatusInProgress = "in_progress"
	PartStatusDone       = "done"
)

// PartPriority 优先级
const (
	PartPriorityLow    = "low"
	PartPriorityMedium = "medium"
	PartPriorityHigh   = "high"
)

// Part 零件批次
type Part struct {
	ID                 string         `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code               string         `json:"code" gorm:"size:100;not null;index"`
	Name               string         `json:"name" gorm:"size:255;not null"`
	Description        string         `json:"description" gorm:"type:text"`
	QtyPlan            int            `json:"qty_plan" gorm:"not null"` // 计划数量，必须 > 0
	QtyDone            int            `json:"qty_done" gorm:"default:0"`
	Priority           string         `json:"priority" gorm:"size:20;default:medium"`
	Deadline           time.Time      `json:"deadline" gorm:"type:date;not null;index"`
	Status             string         `json:"status" gorm:"size:20;default:not_started;index"`
	DrawingURL         string         `json:"drawing_url" gorm:"type:text"`
	IsCooperation      bool           `json:"is_cooperation" gorm:"default:false;index"`
	CooperationPartner string         `json:"cooperation_partner" gorm:"size:255"`
	CooperationDueDate *time.Time     `json:"cooperation_due_date" gorm:"type:date"`
	// 协作件验收状态: pending / accepted / rejected
	CooperationQCStatus    string     `json:"cooperation_qc_status" gorm:"size:20;default:pending"`
	CooperationQCCheckedAt *time.Time `json:"cooperation_qc_checked_at"`
	Customer               string     `json:"customer" gorm:"size:255"`
	MachineID              *string    `json:"machine_id" gorm:"type:uuid;index"`
	RequiredStages         StringList `json:"required_stages" gorm:"type:jsonb;not null"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`

	StageStatuses []PartStageStatus `json:"stage_statuses,omitempty" gorm:"foreignKey:PartID"`
}

func (Part) TableName() string {
	return "parts"
}

// StageStatusState 工序状态
const (
	StageStatusPending    = "pending"
	StageStatusInProgress = "in_progress"
	StageStatusDone       = "done"
	StageStatusSkipped    = "skipped"
)

// PartStageStatus 零件的单个工序状态。每个 (part, stage) 至多一条。
// Notes 兼作内部转出台账（xfer_out=N 标记），见 flow 包。
type PartStageStatus struct {
	ID          string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	PartID      string     `json:"part_id" gorm:"type:uuid;not null;index;uniqueIndex:uq_part_stage,priority:1"`
	Stage       string     `json:"stage" gorm:"size:50;not null;uniqueIndex:uq_part_stage,priority:2"`
	Status      string     `json:"status" gorm:"size:20;default:pending;index"`
	OperatorID  *string    `json:"operator_id" gorm:"type:uuid"`
	QtyGood     *int       `json:"qty_good"` // 工序合格数快照
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Notes       string     `json:"notes" gorm:"type:text"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (PartStageStatus) TableName() string {
	return "part_stage_statuses"
}
