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

// ErrForbidden 当前角色无权执行该操作
var ErrForbidden = errors.New("operation not allowed for this role")

// FactService 报工服务
type FactService struct {
	repo        *repository.FactRepository
	partRepo    *repository.PartRepository
	machineRepo *repository.MachineRepository
	parts       *PartService
	audit       *AuditService
	notify      *NotifyService
}

// NewFactService 创建报工服务
func NewFactService(repo *repository.FactRepository, partRepo *repository.PartRepository,
	machineRepo *repository.MachineRepository, parts *PartService, audit *AuditService,
	notify *NotifyService) *FactService {
	return &FactService{
		repo:        repo,
		partRepo:    partRepo,
		machineRepo: machineRepo,
		parts:       parts,
		audit:       audit,
		notify:      notify,
	}
}

// CreateFactInput 报工输入
type CreateFactInput struct {
	PartID          string    `json:"part_id" binding:"required"`
	Stage           string    `json:"stage" binding:"required"`
	MachineID       *string   `json:"machine_id"`
	OperatorID      *string   `json:"operator_id"`
	Date            time.Time `json:"date"`
	ShiftType       string    `json:"shift_type" binding:"required"`
	QtyGood         int       `json:"qty_good"`
	QtyScrap        int       `json:"qty_scrap"`
	Comment         string    `json:"comment"`
	DeviationReason string    `json:"deviation_reason"`
}

// Create 提交报工。写库前先做工序守恒预检，避免下游超量。
func (s *FactService) Create(ctx context.Context, in CreateFactInput, user *entity.User) (*entity.StageFact, error) {
	stage, ok := flow.ParseStage(in.Stage)
	if !ok {
		return nil, fmt.Errorf("unknown stage: %s", in.Stage)
	}
	if !stage.Internal() {
		return nil, fmt.Errorf("stage %s is tracked by movements, not facts", stage)
	}
	if in.QtyGood < 0 || in.QtyScrap < 0 {
		return nil, fmt.Errorf("quantities must not be negative")
	}
	if in.QtyGood == 0 && in.QtyScrap == 0 {
		return nil, fmt.Errorf("nothing to report")
	}
	if in.ShiftType != entity.ShiftDay && in.ShiftType != entity.ShiftNight {
		return nil, fmt.Errorf("unknown shift type: %s", in.ShiftType)
	}

	part, err := s.partRepo.FindByID(ctx, in.PartID)
	if err != nil {
		return nil, err
	}

	if err := s.parts.ValidateFlowWithDelta(ctx, part.ID, stage, in.QtyGood, in.QtyScrap); err != nil {
		return nil, err
	}

	if in.Date.IsZero() {
		in.Date = time.Now()
	}
	if in.OperatorID == nil && user.Role == entity.RoleOperator {
		uid := user.ID
		in.OperatorID = &uid
	}

	fact := &entity.StageFact{
		PartID:          part.ID,
		Stage:           string(stage),
		MachineID:       in.MachineID,
		OperatorID:      in.OperatorID,
		Date:            in.Date,
		ShiftType:       in.ShiftType,
		QtyGood:         in.QtyGood,
		QtyScrap:        in.QtyScrap,
		Comment:         in.Comment,
		DeviationReason: in.DeviationReason,
	}
	uid := user.ID
	fact.CreatedByID = &uid

	// 定额期望产量快照，偏差分析用
	if in.MachineID != nil && *in.MachineID != "" {
		if norm, err := s.machineRepo.FindNorm(ctx, *in.MachineID, part.ID, string(stage)); err == nil {
			expected := norm.QtyPerShift
			fact.QtyExpected = &expected
		}
	}

	if err := s.repo.Create(ctx, fact); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, Entry{
		Action:     entity.AuditFactAdded,
		EntityType: entity.AuditEntityFact,
		EntityID:   fact.ID,
		EntityName: stage.Label(),
		UserID:     user.ID,
		PartID:     part.ID,
		PartCode:   part.Code,
		Details: map[string]interface{}{
			"stage": string(stage), "qty_good": in.QtyGood, "qty_scrap": in.QtyScrap,
		},
	})

	// 产量低于定额且填了偏差原因，通知车间主管
	if fact.QtyExpected != nil && fact.QtyGood < *fact.QtyExpected && fact.DeviationReason != "" {
		s.notify.NotifyRoles(ctx, entity.NotifyFactAdded, fact.ID,
			[]string{entity.RoleMaster, entity.RoleDirector}, user,
			fmt.Sprintf("Отставание от нормы: %s, %s — %d из %d шт (%s)",
				part.Code, stage.Label(), fact.QtyGood, *fact.QtyExpected, fact.DeviationReason))
	}

	if _, err := s.parts.Recompute(ctx, part.ID); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, fact.ID)
}

// UpdateFactInput 报工修改输入，nil 字段不动
type UpdateFactInput struct {
	QtyGood         *int    `json:"qty_good"`
	QtyScrap        *int    `json:"qty_scrap"`
	Comment         *string `json:"comment"`
	DeviationReason *string `json:"deviation_reason"`
}

// Update 修改报工记录，仅管理侧角色可用
func (s *FactService) Update(ctx context.Context, id string, in UpdateFactInput, user *entity.User) (*entity.StageFact, error) {
	if !user.CanEditFacts() {
		return nil, ErrForbidden
	}
	fact, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	goodDelta, scrapDelta := 0, 0
	if in.QtyGood != nil {
		if *in.QtyGood < 0 {
			return nil, fmt.Errorf("qty_good must not be negative")
		}
		goodDelta = *in.QtyGood - fact.QtyGood
	}
	if in.QtyScrap != nil {
		if *in.QtyScrap < 0 {
			return nil, fmt.Errorf("qty_scrap must not be negative")
		}
		scrapDelta = *in.QtyScrap - fact.QtyScrap
	}
	if goodDelta != 0 || scrapDelta != 0 {
		if err := s.parts.ValidateFlowWithDelta(ctx, fact.PartID, flow.Stage(fact.Stage), goodDelta, scrapDelta); err != nil {
			return nil, err
		}
	}

	if in.QtyGood != nil {
		fact.QtyGood = *in.QtyGood
	}
	if in.QtyScrap != nil {
		fact.QtyScrap = *in.QtyScrap
	}
	if in.Comment != nil {
		fact.Comment = *in.Comment
	}
	if in.DeviationReason != nil {
		fact.DeviationReason = *in.DeviationReason
	}

	if err := s.repo.Update(ctx, fact); err != nil {
		return nil, err
	}

	part, err := s.partRepo.FindByID(ctx, fact.PartID)
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, Entry{
		Action:     entity.AuditFactUpdated,
		EntityType: entity.AuditEntityFact,
		EntityID:   fact.ID,
		EntityName: flow.Stage(fact.Stage).Label(),
		UserID:     user.ID,
		PartID:     part.ID,
		PartCode:   part.Code,
		Details: map[string]interface{}{
			"qty_good": fact.QtyGood, "qty_scrap": fact.QtyScrap,
		},
	})

	if _, err := s.parts.Recompute(ctx, fact.PartID); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, fact.ID)
}

// Delete 删除报工记录，仅管理侧角色可用
func (s *FactService) Delete(ctx context.Context, id string, user *entity.User) error {
	if !user.CanEditFacts() {
		return ErrForbidden
	}
	fact, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	part, err := s.partRepo.FindByID(ctx, fact.PartID)
	if err != nil {
		return err
	}
	s.audit.Log(ctx, Entry{
		Action:     entity.AuditFactDeleted,
		EntityType: entity.AuditEntityFact,
		EntityID:   fact.ID,
		EntityName: flow.Stage(fact.Stage).Label(),
		UserID:     user.ID,
		PartID:     part.ID,
		PartCode:   part.Code,
	})

	_, err = s.parts.Recompute(ctx, fact.PartID)
	return err
}

// Get 获取报工记录
func (s *FactService) Get(ctx context.Context, id string) (*entity.StageFact, error) {
	return s.repo.FindByID(ctx, id)
}

// List 获取报工列表
func (s *FactService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.StageFact, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return s.repo.List(ctx, page, pageSize, filters)
}

// AddAttachment 挂报工附件
func (s *FactService) AddAttachment(ctx context.Context, factID string, att *entity.StageFactAttachment) error {
	if _, err := s.repo.FindByID(ctx, factID); err != nil {
		return err
	}
	att.StageFactID = factID
	return s.repo.AddAttachment(ctx, att)
}
