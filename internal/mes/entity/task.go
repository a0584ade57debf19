package entity

import (
	"time"
)

// TaskStatus 任务状态流：open → accepted → in_progress → review → done
const (
	TaskStatusOpen       = "open"
	TaskStatusAccepted   = "accepted"
	TaskStatusInProgress = "in_progress"
	TaskStatusReview     = "review"
	TaskStatusDone       = "done"
)

// AssigneeType 指派对象类型
const (
	AssigneeUser = "user" // 指定用户
	AssigneeRole = "role" // 角色组
	AssigneeAll  = "all"  // 所有人
)

// TaskCategory 任务类别
const (
	TaskCategoryTooling   = "tooling"
	TaskCategoryQuality   = "quality"
	TaskCategoryMachine   = "machine"
	TaskCategoryMaterial  = "material"
	TaskCategoryLogistics = "logistics"
	TaskCategoryGeneral   = "general"
)

// Task 车间任务
type Task struct {
	ID            string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	PartID        *string    `json:"part_id" gorm:"type:uuid;index"`
	MachineID     *string    `json:"machine_id" gorm:"type:uuid"`
	Stage         *string    `json:"stage" gorm:"size:50"`
	Title         string     `json:"title" gorm:"size:500;not null"`
	Description   string     `json:"description" gorm:"type:text"`
	CreatorID     string     `json:"creator_id" gorm:"type:uuid;not null;index"`
	AssigneeType  string     `json:"assignee_type" gorm:"size:20;not null"`
	AssigneeID    *string    `json:"assignee_id" gorm:"type:uuid;index"`
	AssigneeRole  *string    `json:"assignee_role" gorm:"size:50"`
	AcceptedByID  *string    `json:"accepted_by_id" gorm:"type:uuid"`
	AcceptedAt    *time.Time `json:"accepted_at"`
	Status        string     `json:"status" gorm:"size:20;default:open;index"`
	IsBlocker     bool       `json:"is_blocker" gorm:"default:false"`
	DueDate       time.Time  `json:"due_date" gorm:"type:date;not null;index"`
	Category      string     `json:"category" gorm:"size:50;default:general"`
	ReviewComment string     `json:"review_comment" gorm:"type:text"`
	ReviewedByID  *string    `json:"reviewed_by_id" gorm:"type:uuid"`
	ReviewedAt    *time.Time `json:"reviewed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Comments []TaskComment `json:"comments,omitempty" gorm:"foreignKey:TaskID"`
}

func (Task) TableName() string {
	return "tasks"
}

// TaskComment 任务评论
type TaskComment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TaskID    string    `json:"task_id" gorm:"type:uuid;not null;index"`
	UserID    string    `json:"user_id" gorm:"type:uuid;not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	Attachments []TaskAttachment `json:"attachments,omitempty" gorm:"foreignKey:CommentID"`
}

func (TaskComment) TableName() string {
	return "task_comments"
}

// TaskReadStatus 任务已读标记
type TaskReadStatus struct {
	TaskID string    `json:"task_id" gorm:"primaryKey;type:uuid"`
	UserID string    `json:"user_id" gorm:"primaryKey;type:uuid;index"`
	ReadAt time.Time `json:"read_at"`
}

func (TaskReadStatus) TableName() string {
	return "task_read_status"
}

// TaskAttachment 任务/评论附件，二选一挂靠
type TaskAttachment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TaskID    *string   `json:"task_id" gorm:"type:uuid;index"`
	CommentID *string   `json:"comment_id" gorm:"type:uuid;index"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	URL       string    `json:"url" gorm:"type:text;not null"`
	Type      string    `json:"type" gorm:"size:20;not null"`
	Size      *int64    `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func (TaskAttachment) TableName() string {
	return "task_attachments"
}
