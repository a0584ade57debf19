package flow

import (
	"fmt"
	"strings"
	"time"
)

// StageTotals 一个工序的累计量
type StageTotals struct {
	Good    int
	Scrap   int
	Count   int // 报工条数或收货事件数
	FirstAt *time.Time
	LastAt  *time.Time
}

// Processed 已处理总量：合格 + 报废
func (t StageTotals) Processed() int {
	return t.Good + t.Scrap
}

// StagePrerequisites 返回限制该工序可用投入量的直接前置工序。
// 协作件没有厂内加工段，链从外协工序开始。
func StagePrerequisites(required []Stage, isCooperation bool, stage Stage) []Stage {
	has := make(map[Stage]bool, len(required))
	for _, s := range required {
		has[s] = true
	}
	pick := func(candidates ...Stage) []Stage {
		var out []Stage
		for _, c := range candidates {
			if has[c] {
				out = append(out, c)
			}
		}
		return out
	}
	first := func(candidates ...Stage) []Stage {
		for _, c := range candidates {
			if has[c] {
				return []Stage{c}
			}
		}
		return nil
	}

	if isCooperation {
		switch stage {
		case StageHeatTreatment:
			return nil
		case StageGalvanic:
			return first(StageHeatTreatment)
		case StageGrinding:
			return first(StageGalvanic, StageHeatTreatment)
		case StageQC:
			return pick(StageHeatTreatment, StageGalvanic, StageGrinding)
		}
		return nil
	}

	switch stage {
	case StageFitting:
		return first(StageMachining)
	case StageHeatTreatment:
		return first(StageFitting)
	case StageGalvanic:
		return first(StageHeatTreatment, StageFitting)
	case StageGrinding:
		return first(StageGalvanic, StageHeatTreatment, StageFitting)
	case StageQC:
		prereq := first(StageFitting)
		prereq = append(prereq, pick(StageHeatTreatment, StageGalvanic, StageGrinding)...)
		return prereq
	}
	return nil
}

// ValidateStageFlow 校验下游工序处理量不超过前置工序可用量。
// 错误消息面向车间用户，俄语。
func ValidateStageFlow(required []Stage, isCooperation bool, totals map[Stage]StageTotals) error {
	for _, stage := range required {
		if stage == StageMachining || stage == StageLogistics {
			continue
		}

		prereq := StagePrerequisites(required, isCooperation, stage)
		if len(prereq) == 0 {
			continue
		}

		available := totals[prereq[0]].Good
		for _, p := range prereq[1:] {
			if totals[p].Good < available {
				available = totals[p].Good
			}
		}

		processed := totals[stage].Processed()
		if processed > available {
			labels := make([]string, len(prereq))
			for i, p := range prereq {
				labels[i] = p.Label()
			}
			return fmt.Errorf(
				"Нельзя зафиксировать такой объём по этапу «%s»: уже обработано %d шт (годные+брак), но доступно после этапов (%s) только %d шт.",
				stage.Label(), processed, strings.Join(labels, ", "), available)
		}
	}
	return nil
}

// StageState 重算时就地更新的工序状态快照
type StageState struct {
	Stage       Stage
	Status      string
	OperatorID  *string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// PartSnapshot 重算输入：零件自身字段
type PartSnapshot struct {
	QtyPlan         int
	IsCooperation   bool
	CoopQCStatus    string
	CoopQCCheckedAt *time.Time
}

// RecomputeResult 重算产出：零件聚合字段
type RecomputeResult struct {
	QtyDone int
	Status  string
}

// CoopQCTotals 协作件按验收状态合成 qc 工序的累计量
func CoopQCTotals(p PartSnapshot) (StageTotals, bool) {
	status := strings.TrimSpace(strings.ToLower(p.CoopQCStatus))
	switch status {
	case "accepted":
		return StageTotals{Good: p.QtyPlan, Count: 1, FirstAt: p.CoopQCCheckedAt, LastAt: p.CoopQCCheckedAt}, true
	case "rejected":
		return StageTotals{Count: 1, FirstAt: p.CoopQCCheckedAt, LastAt: p.CoopQCCheckedAt}, true
	}
	return StageTotals{}, false
}

// RecomputePartState 按累计量重算工序状态与零件聚合字段。
// qty_done 取所有生产工序的木桶最短板（MIN），status 只在就绪量达到计划量时置 done。
// lastOperator 是各厂内工序最近一次报工的操作工。
func RecomputePartState(p PartSnapshot, statuses []*StageState, totals map[Stage]StageTotals, lastOperator map[Stage]string, now time.Time) RecomputeResult {
	for _, ss := range statuses {
		if ss.Status == "skipped" {
			continue
		}

		total := totals[ss.Stage]
		hasActivity := total.Count > 0 || total.Processed() > 0

		if ss.Stage == StageQC && p.IsCooperation {
			recomputeCoopQC(p, ss, total, hasActivity, now)
			continue
		}

		if !hasActivity {
			ss.Status = "pending"
			ss.StartedAt = nil
			ss.CompletedAt = nil
			ss.OperatorID = nil
			continue
		}

		if ss.StartedAt == nil {
			if total.FirstAt != nil {
				ss.StartedAt = total.FirstAt
			} else {
				at := now
				ss.StartedAt = &at
			}
		}

		if ss.OperatorID == nil && ss.Stage.Internal() {
			if op, ok := lastOperator[ss.Stage]; ok && op != "" {
				opCopy := op
				ss.OperatorID = &opCopy
			}
		}
		if ss.Stage.External() {
			ss.OperatorID = nil
		}

		// 物流工序没有产量事实，只标记可见性
		if ss.Stage == StageLogistics {
			ss.Status = "in_progress"
			ss.CompletedAt = nil
			continue
		}

		if total.Good >= p.QtyPlan {
			ss.Status = "done"
			if ss.CompletedAt == nil {
				if total.LastAt != nil {
					ss.CompletedAt = total.LastAt
				} else {
					at := now
					ss.CompletedAt = &at
				}
			}
		} else {
			ss.Status = "in_progress"
			ss.CompletedAt = nil
		}
	}

	var result RecomputeResult
	ready := 0
	hasProgress := false
	for _, ss := range statuses {
		if ss.Status == "skipped" || !isProgressStage(ss.Stage) {
			continue
		}
		good := totals[ss.Stage].Good
		if !hasProgress || good < ready {
			ready = good
		}
		hasProgress = true
	}
	if !hasProgress {
		ready = 0
	}
	if ready < 0 {
		ready = 0
	}
	result.QtyDone = ready

	factsTotal := 0
	for _, t := range totals {
		factsTotal += t.Count
	}
	hasStarted := factsTotal > 0
	for _, ss := range statuses {
		if ss.Status == "in_progress" || ss.Status == "done" {
			hasStarted = true
			break
		}
	}

	switch {
	case result.QtyDone >= p.QtyPlan && p.QtyPlan > 0:
		result.Status = "done"
	case hasStarted:
		result.Status = "in_progress"
	default:
		result.Status = "not_started"
	}
	return result
}

// recomputeCoopQC 协作件 qc 工序按验收状态推导
func recomputeCoopQC(p PartSnapshot, ss *StageState, total StageTotals, hasActivity bool, now time.Time) {
	status := strings.TrimSpace(strings.ToLower(p.CoopQCStatus))
	if status == "" {
		status = "pending"
	}

	if status == "pending" && !hasActivity {
		ss.Status = "pending"
		ss.StartedAt = nil
		ss.CompletedAt = nil
		ss.OperatorID = nil
		return
	}

	if ss.StartedAt == nil {
		if total.FirstAt != nil {
			ss.StartedAt = total.FirstAt
		} else {
			at := now
			ss.StartedAt = &at
		}
	}

	ss.OperatorID = nil
	switch status {
	case "accepted":
		ss.Status = "done"
		switch {
		case p.CoopQCCheckedAt != nil:
			ss.CompletedAt = p.CoopQCCheckedAt
		case total.LastAt != nil:
			ss.CompletedAt = total.LastAt
		default:
			at := now
			ss.CompletedAt = &at
		}
	case "rejected":
		ss.Status = "in_progress"
		ss.CompletedAt = nil
	default:
		if total.Good >= p.QtyPlan {
			ss.Status = "done"
			if ss.CompletedAt == nil {
				if total.LastAt != nil {
					ss.CompletedAt = total.LastAt
				} else {
					at := now
					ss.CompletedAt = &at
				}
			}
		} else {
			ss.Status = "in_progress"
			ss.CompletedAt = nil
		}
	}
}

func isProgressStage(s Stage) bool {
	for _, p := range ProgressStages {
		if s == p {
			return true
		}
	}
	return false
}
