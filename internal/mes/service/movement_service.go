package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/flow"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
)

// MovementService 物流/转移单服务
type MovementService struct {
	repo     *repository.MovementRepository
	partRepo *repository.PartRepository
	parts    *PartService
	audit    *AuditService
}

// NewMovementService 创建物流单服务
func NewMovementService(repo *repository.MovementRepository, partRepo *repository.PartRepository,
	parts *PartService, audit *AuditService) *MovementService {
	return &MovementService{repo: repo, partRepo: partRepo, parts: parts, audit: audit}
}

// CreateMovementInput 创建物流单输入
type CreateMovementInput struct {
	PartID         string     `json:"part_id" binding:"required"`
	Type           string     `json:"type" binding:"required"`
	Description    string     `json:"description" binding:"required"`
	QtySent        *int       `json:"qty_sent"`
	Date           time.Time  `json:"date"`
	Status         string     `json:"status"`
	FromLocation   string     `json:"from_location"`
	FromHolder     string     `json:"from_holder"`
	ToLocation     string     `json:"to_location"`
	ToHolder       string     `json:"to_holder"`
	StageID        *string    `json:"stage_id"`
	Carrier        string     `json:"carrier"`
	TrackingNumber string     `json:"tracking_number"`
	Counterparty   string     `json:"counterparty"`
	Notes          string     `json:"notes"`
	PlannedETA     *time.Time `json:"planned_eta"`
	AllowParallel  bool       `json:"allow_parallel"`
}

// Create 创建物流单
func (s *MovementService) Create(ctx context.Context, in CreateMovementInput, userID string) (*entity.LogisticsEntry, error) {
	switch in.Type {
	case entity.MovementTypeMaterialIn, entity.MovementTypeToolingIn,
		entity.MovementTypeShippingOut, entity.MovementTypeCoopOut, entity.MovementTypeCoopIn:
	default:
		return nil, fmt.Errorf("unknown movement type: %s", in.Type)
	}
	if in.QtySent != nil && *in.QtySent < 0 {
		return nil, fmt.Errorf("qty_sent must not be negative")
	}

	part, err := s.partRepo.FindByID(ctx, in.PartID)
	if err != nil {
		return nil, err
	}

	// stage_id 必须指向本零件的工序状态行
	if in.StageID != nil && *in.StageID != "" {
		ss, err := s.partRepo.FindStageStatus(ctx, *in.StageID)
		if err != nil {
			return nil, fmt.Errorf("stage status not found: %w", err)
		}
		if ss.PartID != part.ID {
			return nil, fmt.Errorf("stage status belongs to another part")
		}
	}

	// 新单只能以 pending 或 pending 可达的状态落地
	status, err := flow.ValidateTransition(string(flow.StatusPending), in.Status)
	if err != nil {
		return nil, err
	}

	if status.Active() && !in.AllowParallel {
		active, err := s.countActive(ctx, part.ID)
		if err != nil {
			return nil, err
		}
		if err := flow.EnsureSingleActive(active, flow.StatusPending, status, false); err != nil {
			return nil, err
		}
	}

	if in.Date.IsZero() {
		in.Date = time.Now()
	}

	m := &entity.LogisticsEntry{
		PartID:         part.ID,
		Type:           in.Type,
		Description:    in.Description,
		QtySent:        in.QtySent,
		Date:           in.Date,
		Status:         string(status),
		FromLocation:   in.FromLocation,
		FromHolder:     in.FromHolder,
		ToLocation:     in.ToLocation,
		ToHolder:       in.ToHolder,
		StageID:        in.StageID,
		Carrier:        in.Carrier,
		TrackingNumber: in.TrackingNumber,
		Counterparty:   in.Counterparty,
		Notes:          in.Notes,
		PlannedETA:     in.PlannedETA,
	}

	ts := flow.ApplyStatusTimestamps(status, flow.StatusTimestamps{}, time.Now())
	m.SentAt, m.ReceivedAt, m.ReturnedAt, m.CancelledAt = ts.SentAt, ts.ReceivedAt, ts.ReturnedAt, ts.CancelledAt

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, Entry{
		Action:     entity.AuditMovementCreated,
		EntityType: entity.AuditEntityLogistics,
		EntityID:   m.ID,
		EntityName: m.Description,
		UserID:     userID,
		PartID:     part.ID,
		PartCode:   part.Code,
		Details:    map[string]interface{}{"type": m.Type, "status": m.Status},
	})

	if _, err := s.parts.Recompute(ctx, part.ID); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, m.ID)
}

// UpdateStatusInput 状态变更输入
type UpdateStatusInput struct {
	Status      string `json:"status" binding:"required"`
	QtyReceived *int   `json:"qty_received"`
}

// UpdateStatus 推进物流单状态机。
// 签收时可带实收数量；终态后的单不可再变更（重复提交同状态幂等）。
func (s *MovementService) UpdateStatus(ctx context.Context, id string, in UpdateStatusInput, userID string) (*entity.LogisticsEntry, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := flow.ValidateTransition(m.Status, in.Status)
	if err != nil {
		return nil, err
	}
	if err := flow.EnsureReceivedRequiresSent(m.SentAt, next); err != nil {
		return nil, err
	}

	current := flow.NormalizeStatus(m.Status)
	if next.Active() && !current.Active() {
		active, err := s.countActive(ctx, m.PartID)
		if err != nil {
			return nil, err
		}
		if err := flow.EnsureSingleActive(active, current, next, false); err != nil {
			return nil, err
		}
	}

	if in.QtyReceived != nil {
		if *in.QtyReceived < 0 {
			return nil, fmt.Errorf("qty_received must not be negative")
		}
		m.QtyReceived = in.QtyReceived
	}

	prev := m.Status
	m.Status = string(next)
	ts := flow.ApplyStatusTimestamps(next, flow.StatusTimestamps{
		SentAt:      m.SentAt,
		ReceivedAt:  m.ReceivedAt,
		ReturnedAt:  m.ReturnedAt,
		CancelledAt: m.CancelledAt,
	}, time.Now())
	m.SentAt, m.ReceivedAt, m.ReturnedAt, m.CancelledAt = ts.SentAt, ts.ReceivedAt, ts.ReturnedAt, ts.CancelledAt

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}

	part, err := s.partRepo.FindByID(ctx, m.PartID)
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, Entry{
		Action:     entity.AuditMovementUpdated,
		EntityType: entity.AuditEntityLogistics,
		EntityID:   m.ID,
		EntityName: m.Description,
		UserID:     userID,
		PartID:     part.ID,
		PartCode:   part.Code,
		Details:    map[string]interface{}{"from": prev, "to": m.Status},
	})

	if _, err := s.parts.Recompute(ctx, m.PartID); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, m.ID)
}

// TransferInput 内部转移输入
type TransferInput struct {
	FromStage string `json:"from_stage" binding:"required"`
	ToStage   string `json:"to_stage" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// Transfer 工序间转移。转出量记入源工序备注台账；目的工序为外协时
// 同时开一张转移单，流转卡两路信号取 MAX 不会重复计数。
func (s *MovementService) Transfer(ctx context.Context, partID string, in TransferInput, userID string) error {
	if in.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	fromStage, ok := flow.ParseStage(in.FromStage)
	if !ok {
		return fmt.Errorf("unknown stage: %s", in.FromStage)
	}
	toStage, ok := flow.ParseStage(in.ToStage)
	if !ok {
		return fmt.Errorf("unknown stage: %s", in.ToStage)
	}

	cards, err := s.parts.FlowCards(ctx, partID)
	if err != nil {
		return err
	}
	available := -1
	for _, c := range cards {
		if c.Stage == fromStage {
			available = c.Available
			break
		}
	}
	if available < 0 {
		return fmt.Errorf("stage %s is not on the part flow chain", fromStage)
	}
	if in.Quantity > available {
		return fmt.Errorf("transfer quantity %d exceeds available %d", in.Quantity, available)
	}

	fromStatus, err := s.partRepo.FindStageStatusByStage(ctx, partID, string(fromStage))
	if err != nil {
		return err
	}
	fromStatus.Notes = flow.MergeTransferredOut(fromStatus.Notes, in.Quantity)
	if err := s.partRepo.UpdateStageStatus(ctx, fromStatus); err != nil {
		return err
	}

	if toStage.External() {
		toStatus, err := s.partRepo.FindStageStatusByStage(ctx, partID, string(toStage))
		if err != nil {
			return err
		}
		qty := in.Quantity
		now := time.Now()
		m := &entity.LogisticsEntry{
			PartID:      partID,
			Type:        entity.MovementTypeCoopOut,
			Description: fmt.Sprintf("%s → %s", fromStage.Label(), toStage.Label()),
			QtySent:     &qty,
			Date:        now,
			Status:      string(flow.StatusSent),
			FromHolder:  fromStage.Label(),
			ToHolder:    toStage.Label(),
			StageID:     &toStatus.ID,
			SentAt:      &now,
		}
		if err := s.repo.Create(ctx, m); err != nil {
			return err
		}
	}

	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return err
	}
	s.audit.Log(ctx, Entry{
		Action:     entity.AuditMovementCreated,
		EntityType: entity.AuditEntityLogistics,
		EntityID:   fromStatus.ID,
		EntityName: fmt.Sprintf("transfer %s -> %s", fromStage, toStage),
		UserID:     userID,
		PartID:     partID,
		PartCode:   part.Code,
		Details:    map[string]interface{}{"quantity": in.Quantity},
	})

	_, err = s.parts.Recompute(ctx, partID)
	return err
}

// Get 获取物流单
func (s *MovementService) Get(ctx context.Context, id string) (*entity.LogisticsEntry, error) {
	return s.repo.FindByID(ctx, id)
}

// List 获取物流单列表
func (s *MovementService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.LogisticsEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return s.repo.List(ctx, page, pageSize, filters)
}

// ListByPart 获取零件物流单
func (s *MovementService) ListByPart(ctx context.Context, partID string) ([]entity.LogisticsEntry, error) {
	return s.repo.ListByPart(ctx, partID)
}

// countActive 零件当前在途单数量
func (s *MovementService) countActive(ctx context.Context, partID string) (int, error) {
	entries, err := s.repo.ListByPart(ctx, partID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if flow.NormalizeStatus(e.Status).Active() {
			n++
		}
	}
	return n, nil
}
