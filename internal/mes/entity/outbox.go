package entity

import (
	"time"
)

// NotificationType 通知类型
const (
	NotifyTaskCreated   = "task_created"
	NotifyTaskAccepted  = "task_accepted"
	NotifyTaskComment   = "task_comment"
	NotifyTaskForReview = "task_for_review"
	NotifyTaskApproved  = "task_approved"
	NotifyTaskReturned  = "task_returned"
	NotifyFactAdded     = "fact_added"
)

// NotificationStatus 投递状态
const (
	NotifyStatusPending = "pending"
	NotifyStatusSent    = "sent"
	NotifyStatusFailed  = "failed"
	NotifyStatusSkipped = "skipped"
)

// NotificationOutbox 通知发件箱：一个收件人一行，幂等键防重，
// 带重试退避。worker 轮询 pending 行投递到 Telegram。
type NotificationOutbox struct {
	ID              string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Type            string     `json:"type" gorm:"size:50;not null"`
	TaskID          *string    `json:"task_id" gorm:"type:uuid"`
	TaskTitle       string     `json:"task_title" gorm:"size:500"`
	PartCode        string     `json:"part_code" gorm:"size:100"`
	TriggeredByID   *string    `json:"triggered_by_id" gorm:"type:uuid"`
	TriggeredByName string     `json:"triggered_by_name" gorm:"size:100"`
	RecipientUserID string     `json:"recipient_user_id" gorm:"type:uuid;not null;index"`
	RecipientChatID string     `json:"recipient_chat_id" gorm:"size:100"` // Telegram chat_id 快照
	Message         string     `json:"message" gorm:"type:text;not null"`
	Status          string     `json:"status" gorm:"size:20;default:pending;index"`
	Attempts        int        `json:"attempts" gorm:"default:0"`
	NextRetryAt     *time.Time `json:"next_retry_at" gorm:"index"`
	LastError       string     `json:"last_error" gorm:"type:text"`
	IdempotencyKey  string     `json:"idempotency_key" gorm:"size:255;not null;uniqueIndex"` // type:task_id:user_id
	CreatedAt       time.Time  `json:"created_at" gorm:"index"`
	SentAt          *time.Time `json:"sent_at"`
	FailedAt        *time.Time `json:"failed_at"`
}

func (NotificationOutbox) TableName() string {
	return "notification_outbox"
}
