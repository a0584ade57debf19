package flow

import (
	"strings"
	"testing"
	"time"
)

func TestStagePrerequisites(t *testing.T) {
	required := []Stage{StageMachining, StageFitting, StageHeatTreatment, StageGalvanic, StageQC}

	tests := []struct {
		stage Stage
		coop  bool
		want  []Stage
	}{
		{StageMachining, false, nil},
		{StageFitting, false, []Stage{StageMachining}},
		{StageHeatTreatment, false, []Stage{StageFitting}},
		{StageGalvanic, false, []Stage{StageHeatTreatment}},
		{StageQC, false, []Stage{StageFitting, StageHeatTreatment, StageGalvanic}},
		// cooperation parts have no in-house chain before external stages
		{StageHeatTreatment, true, nil},
		{StageGalvanic, true, []Stage{StageHeatTreatment}},
		{StageQC, true, []Stage{StageHeatTreatment, StageGalvanic}},
	}
	for _, tt := range tests {
		got := StagePrerequisites(required, tt.coop, tt.stage)
		if len(got) != len(tt.want) {
			t.Errorf("StagePrerequisites(%s, coop=%v) = %v, want %v", tt.stage, tt.coop, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("StagePrerequisites(%s, coop=%v) = %v, want %v", tt.stage, tt.coop, got, tt.want)
				break
			}
		}
	}
}

func TestStagePrerequisitesSkipsMissingStages(t *testing.T) {
	// no heat treatment: galvanic falls back to fitting
	required := []Stage{StageMachining, StageFitting, StageGalvanic}
	got := StagePrerequisites(required, false, StageGalvanic)
	if len(got) != 1 || got[0] != StageFitting {
		t.Errorf("StagePrerequisites(galvanic) = %v, want [fitting]", got)
	}
}

func TestValidateStageFlowRejectsOverflow(t *testing.T) {
	required := []Stage{StageMachining, StageFitting}
	totals := map[Stage]StageTotals{
		StageMachining: {Good: 50, Count: 1},
		StageFitting:   {Good: 60, Count: 1},
	}
	err := ValidateStageFlow(required, false, totals)
	if err == nil {
		t.Fatal("expected error when fitting exceeds machining output")
	}
	if !strings.Contains(err.Error(), "Слесарка") {
		t.Errorf("error should name the overflowing stage in Russian, got %q", err.Error())
	}
}

func TestValidateStageFlowScrapCountsAgainstInput(t *testing.T) {
	required := []Stage{StageMachining, StageFitting}
	totals := map[Stage]StageTotals{
		StageMachining: {Good: 50, Count: 1},
		StageFitting:   {Good: 45, Scrap: 10, Count: 2}, // processed 55 > 50
	}
	if err := ValidateStageFlow(required, false, totals); err == nil {
		t.Fatal("expected error: good+scrap exceeds available input")
	}
}

func TestValidateStageFlowOK(t *testing.T) {
	required := []Stage{StageMachining, StageFitting, StageQC}
	totals := map[Stage]StageTotals{
		StageMachining: {Good: 100, Count: 2},
		StageFitting:   {Good: 80, Scrap: 5, Count: 3},
		StageQC:        {Good: 70, Count: 1},
	}
	if err := ValidateStageFlow(required, false, totals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecomputePartStateBottleneck(t *testing.T) {
	now := time.Now()
	first := now.Add(-2 * time.Hour)
	last := now.Add(-time.Hour)

	statuses := []*StageState{
		{Stage: StageMachining, Status: "pending"},
		{Stage: StageFitting, Status: "pending"},
		{Stage: StageQC, Status: "pending"},
	}
	totals := map[Stage]StageTotals{
		StageMachining: {Good: 100, Count: 2, FirstAt: &first, LastAt: &last},
		StageFitting:   {Good: 60, Count: 1, FirstAt: &first, LastAt: &last},
	}
	p := PartSnapshot{QtyPlan: 100}

	res := RecomputePartState(p, statuses, totals, nil, now)

	// ready qty is the MIN across progress stages, qc has 0
	if res.QtyDone != 0 {
		t.Errorf("QtyDone = %d, want 0 (qc bottleneck)", res.QtyDone)
	}
	if res.Status != "in_progress" {
		t.Errorf("Status = %q, want in_progress", res.Status)
	}
	if statuses[0].Status != "done" {
		t.Errorf("machining status = %q, want done (100/100)", statuses[0].Status)
	}
	if statuses[1].Status != "in_progress" {
		t.Errorf("fitting status = %q, want in_progress", statuses[1].Status)
	}
	if statuses[2].Status != "pending" {
		t.Errorf("qc status = %q, want pending (no activity)", statuses[2].Status)
	}
	if statuses[0].StartedAt == nil || !statuses[0].StartedAt.Equal(first) {
		t.Error("machining StartedAt should be stamped from first activity")
	}
}

func TestRecomputePartStateDone(t *testing.T) {
	now := time.Now()
	statuses := []*StageState{
		{Stage: StageMachining, Status: "pending"},
		{Stage: StageQC, Status: "pending"},
	}
	totals := map[Stage]StageTotals{
		StageMachining: {Good: 50, Count: 1},
		StageQC:        {Good: 50, Count: 1},
	}
	res := RecomputePartState(PartSnapshot{QtyPlan: 50}, statuses, totals, nil, now)
	if res.QtyDone != 50 {
		t.Errorf("QtyDone = %d, want 50", res.QtyDone)
	}
	if res.Status != "done" {
		t.Errorf("Status = %q, want done", res.Status)
	}
}

func TestRecomputePartStateNoActivityResetsStage(t *testing.T) {
	now := time.Now()
	op := "op-1"
	started := now.Add(-time.Hour)
	statuses := []*StageState{
		{Stage: StageMachining, Status: "in_progress", OperatorID: &op, StartedAt: &started},
	}
	res := RecomputePartState(PartSnapshot{QtyPlan: 10}, statuses, map[Stage]StageTotals{}, nil, now)
	if statuses[0].Status != "pending" {
		t.Errorf("status = %q, want pending after facts removed", statuses[0].Status)
	}
	if statuses[0].OperatorID != nil || statuses[0].StartedAt != nil {
		t.Error("operator and started_at should be cleared without activity")
	}
	if res.Status != "not_started" {
		t.Errorf("part status = %q, want not_started", res.Status)
	}
}

func TestRecomputePartStateSkippedUntouched(t *testing.T) {
	now := time.Now()
	statuses := []*StageState{
		{Stage: StageMachining, Status: "pending"},
		{Stage: StageGrinding, Status: "skipped"},
	}
	totals := map[Stage]StageTotals{
		StageMachining: {Good: 20, Count: 1},
	}
	res := RecomputePartState(PartSnapshot{QtyPlan: 20}, statuses, totals, nil, now)
	if statuses[1].Status != "skipped" {
		t.Errorf("skipped stage must stay skipped, got %q", statuses[1].Status)
	}
	// skipped grinding does not drag the bottleneck down
	if res.QtyDone != 20 {
		t.Errorf("QtyDone = %d, want 20", res.QtyDone)
	}
}

func TestRecomputePartStateOperatorFromLastFact(t *testing.T) {
	now := time.Now()
	statuses := []*StageState{
		{Stage: StageMachining, Status: "pending"},
		{Stage: StageHeatTreatment, Status: "pending"},
	}
	op := "op-9"
	totals := map[Stage]StageTotals{
		StageMachining:     {Good: 5, Count: 1},
		StageHeatTreatment: {Good: 5, Count: 1},
	}
	RecomputePartState(PartSnapshot{QtyPlan: 10}, statuses, totals, map[Stage]string{StageMachining: op}, now)
	if statuses[0].OperatorID == nil || *statuses[0].OperatorID != op {
		t.Error("internal stage should pick up last fact operator")
	}
	if statuses[1].OperatorID != nil {
		t.Error("external stage never carries an operator")
	}
}

func TestCoopQCAccepted(t *testing.T) {
	now := time.Now()
	checked := now.Add(-time.Hour)
	p := PartSnapshot{QtyPlan: 40, IsCooperation: true, CoopQCStatus: "accepted", CoopQCCheckedAt: &checked}

	totals, ok := CoopQCTotals(p)
	if !ok {
		t.Fatal("accepted coop QC must synthesize totals")
	}
	if totals.Good != 40 {
		t.Errorf("Good = %d, want qty_plan 40", totals.Good)
	}

	statuses := []*StageState{{Stage: StageQC, Status: "pending"}}
	all := map[Stage]StageTotals{StageQC: totals}
	res := RecomputePartState(p, statuses, all, nil, now)
	if statuses[0].Status != "done" {
		t.Errorf("qc status = %q, want done", statuses[0].Status)
	}
	if statuses[0].CompletedAt == nil || !statuses[0].CompletedAt.Equal(checked) {
		t.Error("qc CompletedAt should come from the QC check timestamp")
	}
	if res.Status != "done" {
		t.Errorf("part status = %q, want done", res.Status)
	}
}

func TestCoopQCRejected(t *testing.T) {
	now := time.Now()
	checked := now.Add(-time.Hour)
	p := PartSnapshot{QtyPlan: 40, IsCooperation: true, CoopQCStatus: "rejected", CoopQCCheckedAt: &checked}

	totals, ok := CoopQCTotals(p)
	if !ok {
		t.Fatal("rejected coop QC must synthesize totals")
	}
	statuses := []*StageState{{Stage: StageQC, Status: "pending"}}
	res := RecomputePartState(p, statuses, map[Stage]StageTotals{StageQC: totals}, nil, now)
	if statuses[0].Status != "in_progress" {
		t.Errorf("qc status = %q, want in_progress after rejection", statuses[0].Status)
	}
	if res.QtyDone != 0 {
		t.Errorf("QtyDone = %d, want 0", res.QtyDone)
	}
}
