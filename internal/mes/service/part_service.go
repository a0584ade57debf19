package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/flow"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/redis/go-redis/v9"
)

// 流转卡缓存TTL。重算入口都会主动失效，TTL只兜底。
const flowCardsCacheTTL = 30 * time.Second

// PartService 零件服务
type PartService struct {
	repo         *repository.PartRepository
	factRepo     *repository.FactRepository
	movementRepo *repository.MovementRepository
	taskRepo     *repository.TaskRepository
	machine      *MachineService
	audit        *AuditService
	rdb          *redis.Client
}

// NewPartService 创建零件服务
func NewPartService(repo *repository.PartRepository, factRepo *repository.FactRepository,
	movementRepo *repository.MovementRepository, taskRepo *repository.TaskRepository,
	machine *MachineService, audit *AuditService, rdb *redis.Client) *PartService {
	return &PartService{
		repo:         repo,
		factRepo:     factRepo,
		movementRepo: movementRepo,
		taskRepo:     taskRepo,
		machine:      machine,
		audit:        audit,
		rdb:          rdb,
	}
}

// CreatePartInput 创建零件输入
type CreatePartInput struct {
	Code               string     `json:"code" binding:"required"`
	Name               string     `json:"name" binding:"required"`
	Description        string     `json:"description"`
	QtyPlan            int        `json:"qty_plan" binding:"required"`
	Priority           string     `json:"priority"`
	Deadline           time.Time  `json:"deadline" binding:"required"`
	DrawingURL         string     `json:"drawing_url"`
	IsCooperation      bool       `json:"is_cooperation"`
	CooperationPartner string     `json:"cooperation_partner"`
	CooperationDueDate *time.Time `json:"cooperation_due_date"`
	Customer           string     `json:"customer"`
	MachineID          *string    `json:"machine_id"`
	RequiredStages     []string   `json:"required_stages" binding:"required"`
}

// Create 创建零件并播种工序状态行
func (s *PartService) Create(ctx context.Context, in CreatePartInput, userID string) (*entity.Part, error) {
	if in.QtyPlan <= 0 {
		return nil, fmt.Errorf("qty_plan must be positive")
	}
	if len(in.RequiredStages) == 0 {
		return nil, fmt.Errorf("required_stages must not be empty")
	}
	stages := make([]string, 0, len(in.RequiredStages))
	for _, raw := range in.RequiredStages {
		stage, ok := flow.ParseStage(raw)
		if !ok {
			return nil, fmt.Errorf("unknown stage: %s", raw)
		}
		stages = append(stages, string(stage))
	}
	if in.Priority == "" {
		in.Priority = entity.PartPriorityMedium
	}

	part := &entity.Part{
		Code:               in.Code,
		Name:               in.Name,
		Description:        in.Description,
		QtyPlan:            in.QtyPlan,
		Priority:           in.Priority,
		Deadline:           in.Deadline,
		Status:             entity.PartStatusNotStarted,
		DrawingURL:         in.DrawingURL,
		IsCooperation:      in.IsCooperation,
		CooperationPartner: in.CooperationPartner,
		CooperationDueDate: in.CooperationDueDate,
		Customer:           in.Customer,
		MachineID:          in.MachineID,
		RequiredStages:     stages,
	}
	if part.IsCooperation {
		part.CooperationQCStatus = "pending"
	}
	if err := s.repo.Create(ctx, part); err != nil {
		return nil, err
	}

	statuses := make([]entity.PartStageStatus, 0, len(stages))
	for _, stage := range stages {
		statuses = append(statuses, entity.PartStageStatus{
			PartID: part.ID,
			Stage:  stage,
			Status: entity.StageStatusPending,
		})
	}
	if err := s.repo.CreateStageStatuses(ctx, statuses); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, Entry{
		Action:     entity.AuditPartCreated,
		EntityType: entity.AuditEntityPart,
		EntityID:   part.ID,
		EntityName: part.Name,
		UserID:     userID,
		PartID:     part.ID,
		PartCode:   part.Code,
	})
	return s.repo.FindByID(ctx, part.ID)
}

// UpdatePartInput 更新零件输入，nil 字段不动
type UpdatePartInput struct {
	Name                *string    `json:"name"`
	Description         *string    `json:"description"`
	QtyPlan             *int       `json:"qty_plan"`
	Priority            *string    `json:"priority"`
	Deadline            *time.Time `json:"deadline"`
	DrawingURL          *string    `json:"drawing_url"`
	CooperationPartner  *string    `json:"cooperation_partner"`
	CooperationDueDate  *time.Time `json:"cooperation_due_date"`
	CooperationQCStatus *string    `json:"cooperation_qc_status"`
	Customer            *string    `json:"customer"`
	MachineID           *string    `json:"machine_id"`
}

// Update 更新零件并重算状态
func (s *PartService) Update(ctx context.Context, id string, in UpdatePartInput, userID string) (*entity.Part, error) {
	part, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := map[string]interface{}{}
	if in.Name != nil {
		part.Name = *in.Name
		changed["name"] = *in.Name
	}
	if in.Description != nil {
		part.Description = *in.Description
	}
	if in.QtyPlan != nil {
		if *in.QtyPlan <= 0 {
			return nil, fmt.Errorf("qty_plan must be positive")
		}
		part.QtyPlan = *in.QtyPlan
		changed["qty_plan"] = *in.QtyPlan
	}
	if in.Priority != nil {
		part.Priority = *in.Priority
		changed["priority"] = *in.Priority
	}
	if in.Deadline != nil {
		part.Deadline = *in.Deadline
		changed["deadline"] = in.Deadline.Format("2006-01-02")
	}
	if in.DrawingURL != nil {
		part.DrawingURL = *in.DrawingURL
	}
	if in.CooperationPartner != nil {
		part.CooperationPartner = *in.CooperationPartner
	}
	if in.CooperationDueDate != nil {
		part.CooperationDueDate = in.CooperationDueDate
	}
	if in.CooperationQCStatus != nil {
		if !part.IsCooperation {
			return nil, fmt.Errorf("part is not a cooperation part")
		}
		switch *in.CooperationQCStatus {
		case "pending", "accepted", "rejected":
		default:
			return nil, fmt.Errorf("unknown cooperation_qc_status: %s", *in.CooperationQCStatus)
		}
		part.CooperationQCStatus = *in.CooperationQCStatus
		now := time.Now()
		part.CooperationQCCheckedAt = &now
		changed["cooperation_qc_status"] = *in.CooperationQCStatus
	}
	if in.Customer != nil {
		part.Customer = *in.Customer
	}
	if in.MachineID != nil {
		part.MachineID = in.MachineID
	}

	if err := s.repo.Update(ctx, part); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, Entry{
		Action:     entity.AuditPartUpdated,
		EntityType: entity.AuditEntityPart,
		EntityID:   part.ID,
		EntityName: part.Name,
		UserID:     userID,
		PartID:     part.ID,
		PartCode:   part.Code,
		Details:    changed,
	})

	return s.Recompute(ctx, part.ID)
}

// Get 获取零件
func (s *PartService) Get(ctx context.Context, id string) (*entity.Part, error) {
	return s.repo.FindByID(ctx, id)
}

// List 获取零件列表
func (s *PartService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Part, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return s.repo.List(ctx, page, pageSize, filters)
}

// Delete 删除零件
func (s *PartService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// StageStatuses 获取零件的工序状态行
func (s *PartService) StageStatuses(ctx context.Context, partID string) ([]entity.PartStageStatus, error) {
	if _, err := s.repo.FindByID(ctx, partID); err != nil {
		return nil, err
	}
	return s.repo.ListStageStatuses(ctx, partID)
}

// Summary 按状态统计零件数，仪表盘用
func (s *PartService) Summary(ctx context.Context) (map[string]int64, error) {
	return s.repo.CountByStatus(ctx)
}

// stageContext 重算和流转卡共用的派生数据
type stageContext struct {
	part         *entity.Part
	statuses     []entity.PartStageStatus
	movements    []entity.LogisticsEntry
	facts        []entity.StageFact
	totals       map[flow.Stage]flow.StageTotals
	lastOperator map[flow.Stage]string
}

// loadStageContext 加载零件的全部派生输入并汇总工序累计量。
// 厂内工序从报工累加，外协工序从已签收的物流单累加，协作件
// qc 由验收状态合成。
func (s *PartService) loadStageContext(ctx context.Context, partID string) (*stageContext, error) {
	part, err := s.repo.FindByID(ctx, partID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.repo.ListStageStatuses(ctx, partID)
	if err != nil {
		return nil, err
	}
	movements, err := s.movementRepo.ListByPart(ctx, partID)
	if err != nil {
		return nil, err
	}
	facts, err := s.factRepo.ListByPart(ctx, partID)
	if err != nil {
		return nil, err
	}

	totals := make(map[flow.Stage]flow.StageTotals)
	lastOperator := make(map[flow.Stage]string)

	// 报工累计：只对厂内工序有意义，但原始数据按 stage 聚合即可
	for _, f := range facts {
		stage := flow.Stage(f.Stage)
		t := totals[stage]
		t.Good += f.QtyGood
		t.Scrap += f.QtyScrap
		t.Count++
		at := f.CreatedAt
		if t.FirstAt == nil || at.Before(*t.FirstAt) {
			atCopy := at
			t.FirstAt = &atCopy
		}
		if t.LastAt == nil || at.After(*t.LastAt) {
			atCopy := at
			t.LastAt = &atCopy
		}
		totals[stage] = t
		if f.OperatorID != nil && *f.OperatorID != "" {
			lastOperator[stage] = *f.OperatorID
		}
	}

	// 外协累计：已签收的物流单按挂靠的工序状态行归组，覆盖报工口径
	statusStage := make(map[string]flow.Stage, len(statuses))
	for _, ss := range statuses {
		statusStage[ss.ID] = flow.Stage(ss.Stage)
	}
	external := make(map[flow.Stage]flow.StageTotals)
	for _, m := range movements {
		if m.StageID == nil {
			continue
		}
		stage, ok := statusStage[*m.StageID]
		if !ok || !stage.External() {
			continue
		}
		if !flow.NormalizeStatus(m.Status).Received() {
			continue
		}
		fm := toFlowMovement(m)
		t := external[stage]
		t.Good += flow.EffectiveQty(fm)
		t.Count++
		at := coalesceEntryTime(m)
		if at != nil {
			if t.FirstAt == nil || at.Before(*t.FirstAt) {
				t.FirstAt = at
			}
			if t.LastAt == nil || at.After(*t.LastAt) {
				t.LastAt = at
			}
		}
		external[stage] = t
	}
	for stage, t := range external {
		totals[stage] = t
	}

	if part.IsCooperation {
		snap := partSnapshot(part)
		if t, ok := flow.CoopQCTotals(snap); ok {
			totals[flow.StageQC] = t
		} else if _, exists := totals[flow.StageQC]; !exists {
			totals[flow.StageQC] = flow.StageTotals{}
		}
	}

	return &stageContext{
		part:         part,
		statuses:     statuses,
		movements:    movements,
		facts:        facts,
		totals:       totals,
		lastOperator: lastOperator,
	}, nil
}

// ValidateFlowWithDelta 预检：在现有累计量上叠加增量后校验工序守恒。
// 报工提交前调用，避免先写库再发现超量。
func (s *PartService) ValidateFlowWithDelta(ctx context.Context, partID string, stage flow.Stage, goodDelta, scrapDelta int) error {
	sc, err := s.loadStageContext(ctx, partID)
	if err != nil {
		return err
	}
	t := sc.totals[stage]
	t.Good += goodDelta
	t.Scrap += scrapDelta
	t.Count++
	sc.totals[stage] = t

	required := requiredStages(sc.part)
	return flow.ValidateStageFlow(required, sc.part.IsCooperation, sc.totals)
}

// Recompute 按报工和物流重算零件状态与工序状态
func (s *PartService) Recompute(ctx context.Context, partID string) (*entity.Part, error) {
	sc, err := s.loadStageContext(ctx, partID)
	if err != nil {
		return nil, err
	}

	states := make([]*flow.StageState, len(sc.statuses))
	for i := range sc.statuses {
		ss := &sc.statuses[i]
		states[i] = &flow.StageState{
			Stage:       flow.Stage(ss.Stage),
			Status:      ss.Status,
			OperatorID:  ss.OperatorID,
			StartedAt:   ss.StartedAt,
			CompletedAt: ss.CompletedAt,
		}
	}

	result := flow.RecomputePartState(partSnapshot(sc.part), states, sc.totals, sc.lastOperator, time.Now())

	for i := range sc.statuses {
		ss := &sc.statuses[i]
		st := states[i]
		if ss.Status == st.Status && ptrTimeEqual(ss.StartedAt, st.StartedAt) &&
			ptrTimeEqual(ss.CompletedAt, st.CompletedAt) && ptrStrEqual(ss.OperatorID, st.OperatorID) {
			continue
		}
		ss.Status = st.Status
		ss.OperatorID = st.OperatorID
		ss.StartedAt = st.StartedAt
		ss.CompletedAt = st.CompletedAt
		if err := s.repo.UpdateStageStatus(ctx, ss); err != nil {
			return nil, err
		}
	}

	if sc.part.QtyDone != result.QtyDone || sc.part.Status != result.Status {
		sc.part.QtyDone = result.QtyDone
		sc.part.Status = result.Status
		if err := s.repo.Update(ctx, sc.part); err != nil {
			return nil, err
		}
	}

	s.invalidateFlowCache(ctx, partID)
	return s.repo.FindByID(ctx, partID)
}

// FlowCards 零件流转卡，短 TTL 缓存
func (s *PartService) FlowCards(ctx context.Context, partID string) ([]flow.FlowCard, error) {
	cacheKey := "mes:flowcards:" + partID
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			var cards []flow.FlowCard
			if err := json.Unmarshal([]byte(cached), &cards); err == nil {
				return cards, nil
			}
		}
	}

	sc, err := s.loadStageContext(ctx, partID)
	if err != nil {
		return nil, err
	}

	inputs := make([]flow.StageInput, 0, len(sc.statuses))
	for _, ss := range sc.statuses {
		stage := flow.Stage(ss.Stage)
		inputs = append(inputs, flow.StageInput{
			Stage:    stage,
			StatusID: ss.ID,
			Status:   ss.Status,
			Done:     sc.totals[stage].Good,
			Notes:    ss.Notes,
		})
	}
	movements := make([]flow.Movement, 0, len(sc.movements))
	for _, m := range sc.movements {
		movements = append(movements, toFlowMovement(m))
	}

	cards := flow.BuildFlowCards(sc.part.QtyPlan, inputs, movements)

	if s.rdb != nil {
		if b, err := json.Marshal(cards); err == nil {
			s.rdb.Set(ctx, cacheKey, b, flowCardsCacheTTL)
		}
	}
	return cards, nil
}

// Journal 零件事件流
func (s *PartService) Journal(ctx context.Context, partID string, filter flow.EventCategory) ([]flow.JournalEvent, error) {
	sc, err := s.loadStageContext(ctx, partID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.ListByPart(ctx, partID)
	if err != nil {
		return nil, err
	}

	movements := make([]flow.Movement, 0, len(sc.movements))
	for _, m := range sc.movements {
		movements = append(movements, toFlowMovement(m))
	}

	facts := make([]flow.FactRecord, 0, len(sc.facts))
	for _, f := range sc.facts {
		created := f.CreatedAt
		date := f.Date
		rec := flow.FactRecord{
			Stage:     flow.Stage(f.Stage),
			QtyGood:   f.QtyGood,
			QtyScrap:  f.QtyScrap,
			Comment:   f.Comment,
			CreatedAt: &created,
			Date:      &date,
		}
		if f.OperatorID != nil {
			rec.Operator = *f.OperatorID
		}
		facts = append(facts, rec)
	}

	taskRecords := make([]flow.TaskRecord, 0, len(tasks))
	for _, t := range tasks {
		created := t.CreatedAt
		due := t.DueDate
		taskRecords = append(taskRecords, flow.TaskRecord{
			Title:     t.Title,
			Status:    t.Status,
			CreatedAt: &created,
			DueDate:   &due,
		})
	}

	return flow.BuildJournal(movements, facts, taskRecords, filter), nil
}

// ScheduleInfo 交期预测结果
type ScheduleInfo struct {
	Status          flow.ScheduleStatus `json:"status"`
	BufferDays      int                 `json:"buffer_days"`
	EstimatedFinish *time.Time          `json:"estimated_finish,omitempty"`
	Deadline        time.Time           `json:"deadline"`
}

// Schedule 按机床定额预测完成时间并分类交期状态
func (s *PartService) Schedule(ctx context.Context, partID string) (*ScheduleInfo, error) {
	part, err := s.repo.FindByID(ctx, partID)
	if err != nil {
		return nil, err
	}

	finish, err := s.machine.EstimateFinish(ctx, part)
	if err != nil && !errors.Is(err, ErrNoNorm) {
		return nil, err
	}

	status, buffer := flow.ClassifySchedule(part.Deadline, finish)
	return &ScheduleInfo{
		Status:          status,
		BufferDays:      buffer,
		EstimatedFinish: finish,
		Deadline:        part.Deadline,
	}, nil
}

func (s *PartService) invalidateFlowCache(ctx context.Context, partID string) {
	if s.rdb != nil {
		s.rdb.Del(ctx, "mes:flowcards:"+partID)
	}
}

// toFlowMovement 物流单实体转对账快照
func toFlowMovement(m entity.LogisticsEntry) flow.Movement {
	date := m.Date
	updated := m.UpdatedAt
	created := m.CreatedAt
	fm := flow.Movement{
		Status:       m.Status,
		Quantity:     m.Quantity,
		QtySent:      m.QtySent,
		QtyReceived:  m.QtyReceived,
		FromLocation: m.FromLocation,
		FromHolder:   m.FromHolder,
		ToLocation:   m.ToLocation,
		ToHolder:     m.ToHolder,
		Description:  m.Description,
		SentAt:       m.SentAt,
		ReceivedAt:   m.ReceivedAt,
		ReturnedAt:   m.ReturnedAt,
		CancelledAt:  m.CancelledAt,
		UpdatedAt:    &updated,
		CreatedAt:    &created,
		Date:         &date,
	}
	if m.StageID != nil {
		fm.StageID = *m.StageID
	}
	return fm
}

// coalesceEntryTime 外协累计时间戳回退链
func coalesceEntryTime(m entity.LogisticsEntry) *time.Time {
	if m.ReceivedAt != nil {
		return m.ReceivedAt
	}
	updated := m.UpdatedAt
	if !updated.IsZero() {
		return &updated
	}
	if m.SentAt != nil {
		return m.SentAt
	}
	created := m.CreatedAt
	return &created
}

func partSnapshot(p *entity.Part) flow.PartSnapshot {
	return flow.PartSnapshot{
		QtyPlan:         p.QtyPlan,
		IsCooperation:   p.IsCooperation,
		CoopQCStatus:    p.CooperationQCStatus,
		CoopQCCheckedAt: p.CooperationQCCheckedAt,
	}
}

func requiredStages(p *entity.Part) []flow.Stage {
	stages := make([]flow.Stage, 0, len(p.RequiredStages))
	for _, s := range p.RequiredStages {
		stages = append(stages, flow.Stage(s))
	}
	return stages
}

func ptrTimeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func ptrStrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
