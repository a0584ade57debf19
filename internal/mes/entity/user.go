package entity

import (
	"time"
)

// Role 用户角色
const (
	RoleAdmin    = "admin"
	RoleDirector = "director"
	RoleMaster   = "master"   // 车间主管
	RoleOperator = "operator" // 操作工
	RoleLogist   = "logist"   // 物流员
	RoleQC       = "qc"       // 质检员
)

// User 用户
type User struct {
	ID                 string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Username           string     `json:"username" gorm:"size:100;not null;uniqueIndex"`
	PasswordHash       string     `json:"-" gorm:"size:255;not null"`
	PasswordChangedAt  *time.Time `json:"password_changed_at"`
	TokenVersion       int        `json:"-" gorm:"not null;default:0"`
	Name               string     `json:"name" gorm:"size:255;not null"`
	Initials           string     `json:"initials" gorm:"size:50;not null"`
	Role               string     `json:"role" gorm:"size:50;not null;index"`
	TelegramChatID     string     `json:"telegram_chat_id" gorm:"size:50"`
	Email              string     `json:"email" gorm:"size:255"`
	IsActive           bool       `json:"is_active" gorm:"default:true"`
	MustChangePassword bool       `json:"must_change_password" gorm:"not null;default:false"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// CanEditFacts 报工编辑权限
func (u *User) CanEditFacts() bool {
	return u.Role == RoleAdmin || u.Role == RoleDirector || u.Role == RoleMaster
}

// CanManageInventory 库存管理权限
func (u *User) CanManageInventory() bool {
	return u.Role == RoleAdmin || u.Role == RoleMaster || u.Role == RoleLogist
}

// CanCreateTasks 建任务权限
func (u *User) CanCreateTasks() bool {
	return u.Role != RoleOperator
}

// CanViewAudit 审计日志查看权限
func (u *User) CanViewAudit() bool {
	return u.Role == RoleAdmin || u.Role == RoleDirector
}

// CanManageMovements 物流单管理权限
func (u *User) CanManageMovements() bool {
	return u.Role == RoleAdmin || u.Role == RoleMaster || u.Role == RoleLogist
}
