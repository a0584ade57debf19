package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/flow"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
)

// ErrNoNorm 没有可用的定额，无法预测
var ErrNoNorm = errors.New("no machine norm configured")

// 每天两个班次（白班 + 夜班）
const shiftsPerDay = 2

// MachineService 机床与定额服务
type MachineService struct {
	repo     *repository.MachineRepository
	partRepo *repository.PartRepository
	audit    *AuditService
}

// NewMachineService 创建机床服务
func NewMachineService(repo *repository.MachineRepository, partRepo *repository.PartRepository, audit *AuditService) *MachineService {
	return &MachineService{repo: repo, partRepo: partRepo, audit: audit}
}

// List 获取机床列表
func (s *MachineService) List(ctx context.Context, department string, activeOnly bool) ([]entity.Machine, error) {
	return s.repo.List(ctx, department, activeOnly)
}

// Get 获取机床
func (s *MachineService) Get(ctx context.Context, id string) (*entity.Machine, error) {
	return s.repo.FindByID(ctx, id)
}

// Create 创建机床
func (s *MachineService) Create(ctx context.Context, machine *entity.Machine) error {
	if machine.RatePerShift <= 0 {
		machine.RatePerShift = 400
	}
	return s.repo.Create(ctx, machine)
}

// Update 更新机床
func (s *MachineService) Update(ctx context.Context, machine *entity.Machine) error {
	return s.repo.Update(ctx, machine)
}

// SetNorm 设置机床定额
func (s *MachineService) SetNorm(ctx context.Context, machineID, partID, stage string, qtyPerShift int, userID string) (*entity.MachineNorm, error) {
	if qtyPerShift <= 0 {
		return nil, fmt.Errorf("qty_per_shift must be positive")
	}
	if _, ok := flow.ParseStage(stage); !ok {
		return nil, fmt.Errorf("unknown stage: %s", stage)
	}
	if _, err := s.repo.FindByID(ctx, machineID); err != nil {
		return nil, err
	}
	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return nil, err
	}

	norm := &entity.MachineNorm{
		MachineID:   machineID,
		PartID:      partID,
		Stage:       stage,
		QtyPerShift: qtyPerShift,
	}
	if userID != "" {
		uid := userID
		norm.ConfiguredByID = &uid
	}
	if err := s.repo.UpsertNorm(ctx, norm); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, Entry{
		Action:     entity.AuditNormConfigured,
		EntityType: entity.AuditEntityNorm,
		EntityID:   machineID,
		EntityName: stage,
		UserID:     userID,
		PartID:     partID,
		PartCode:   part.Code,
		Details:    map[string]interface{}{"qty_per_shift": qtyPerShift},
	})
	return s.repo.FindNorm(ctx, machineID, partID, stage)
}

// ListNormsByPart 获取零件全部定额
func (s *MachineService) ListNormsByPart(ctx context.Context, partID string) ([]entity.MachineNorm, error) {
	return s.repo.ListNormsByPart(ctx, partID)
}

// EstimateFinish 按定额预测剩余量的完成时间。
// 优先取机加工定额，没有定额时退回机床默认单班产量。
func (s *MachineService) EstimateFinish(ctx context.Context, part *entity.Part) (*time.Time, error) {
	if part.MachineID == nil || *part.MachineID == "" {
		return nil, ErrNoNorm
	}

	remaining := part.QtyPlan - part.QtyDone
	if remaining <= 0 {
		now := time.Now()
		return &now, nil
	}

	qtyPerShift := 0
	norm, err := s.repo.FindNorm(ctx, *part.MachineID, part.ID, string(flow.StageMachining))
	switch {
	case err == nil && norm.QtyPerShift > 0:
		qtyPerShift = norm.QtyPerShift
	case errors.Is(err, repository.ErrNotFound):
		machine, merr := s.repo.FindByID(ctx, *part.MachineID)
		if merr != nil {
			return nil, merr
		}
		qtyPerShift = machine.RatePerShift
	case err != nil:
		return nil, err
	}
	if qtyPerShift <= 0 {
		return nil, ErrNoNorm
	}

	shifts := remaining / qtyPerShift
	if remaining%qtyPerShift > 0 {
		shifts++
	}
	days := shifts / shiftsPerDay
	if shifts%shiftsPerDay > 0 {
		days++
	}

	finish := time.Now().AddDate(0, 0, days)
	return &finish, nil
}
