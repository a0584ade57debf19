package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	User      *UserRepository
	Part      *PartRepository
	Movement  *MovementRepository
	Fact      *FactRepository
	Task      *TaskRepository
	Machine   *MachineRepository
	Inventory *InventoryRepository
	Audit     *AuditRepository
	Outbox    *OutboxRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:      NewUserRepository(db),
		Part:      NewPartRepository(db),
		Movement:  NewMovementRepository(db),
		Fact:      NewFactRepository(db),
		Task:      NewTaskRepository(db),
		Machine:   NewMachineRepository(db),
		Inventory: NewInventoryRepository(db),
		Audit:     NewAuditRepository(db),
		Outbox:    NewOutboxRepository(db),
	}
}
