package entity

import (
	"time"
)

// AuditAction 审计动作
const (
	AuditTaskCreated       = "task_created"
	AuditTaskStatusChanged = "task_status_changed"
	AuditTaskAccepted      = "task_accepted"
	AuditTaskCommentAdded  = "task_comment_added"
	AuditTaskSentForReview = "task_sent_for_review"
	AuditTaskApproved      = "task_approved"
	AuditTaskReturned      = "task_returned"
	AuditFactAdded         = "fact_added"
	AuditFactUpdated       = "fact_updated"
	AuditFactDeleted       = "fact_deleted"
	AuditPartCreated       = "part_created"
	AuditPartUpdated       = "part_updated"
	AuditPartStageChanged  = "part_stage_changed"
	AuditMovementCreated   = "movement_created"
	AuditMovementUpdated   = "movement_updated"
	AuditNormConfigured    = "norm_configured"
	AuditUserLogin         = "user_login"
	AuditUserLogout        = "user_logout"
	AuditPasswordChanged   = "password_changed"
	AuditLoginFailed       = "login_failed"
	AuditLoginRateLimited  = "login_rate_limited"
)

// AuditEntityType 审计对象类型
const (
	AuditEntityTask      = "task"
	AuditEntityPart      = "part"
	AuditEntityFact      = "fact"
	AuditEntityNorm      = "norm"
	AuditEntityLogistics = "logistics"
	AuditEntityInventory = "inventory"
	AuditEntityUser      = "user"
)

// AuditEvent 审计日志，只追加不修改
type AuditEvent struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Action     string    `json:"action" gorm:"size:50;not null;index"`
	EntityType string    `json:"entity_type" gorm:"size:20;not null;index:idx_audit_entity,priority:1"`
	EntityID   string    `json:"entity_id" gorm:"type:uuid;not null;index:idx_audit_entity,priority:2"`
	EntityName string    `json:"entity_name" gorm:"size:255"`
	UserID     *string   `json:"user_id" gorm:"type:uuid;index"`
	UserName   string    `json:"user_name" gorm:"size:100"`
	Details    JSONB     `json:"details" gorm:"type:jsonb"`
	PartID     *string   `json:"part_id" gorm:"type:uuid;index"`
	PartCode   string    `json:"part_code" gorm:"size:100"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
