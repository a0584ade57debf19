package flow

import "testing"

func TestActiveChain(t *testing.T) {
	chain := ActiveChain([]Stage{StageQC, StageGalvanic, StageMachining, StageFitting})
	want := []Stage{StageMachining, StageFitting, StageGalvanic}
	if len(chain) != len(want) {
		t.Fatalf("chain = %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("chain = %v, want %v", chain, want)
		}
	}
}

func TestPercentZeroPlanNoDivisionByZero(t *testing.T) {
	if got := Percent(50, 0); got != 0 {
		t.Fatalf("Percent(50, 0) = %d, want 0", got)
	}
	if got := Percent(50, 100); got != 50 {
		t.Fatalf("Percent = %d, want 50", got)
	}
	if got := Percent(150, 100); got != 100 {
		t.Fatalf("Percent must clamp to 100, got %d", got)
	}
}

func TestBuildFlowCardsBasicChain(t *testing.T) {
	stages := []StageInput{
		{Stage: StageMachining, StatusID: "ss-mach", Status: "in_progress", Done: 80, Notes: "xfer_out=60"},
		{Stage: StageFitting, StatusID: "ss-fit", Status: "in_progress", Done: 40},
		{Stage: StageHeatTreatment, StatusID: "ss-ht", Status: "pending"},
	}
	movements := []Movement{
		// in transit towards heat treatment, tagged to its stage status
		{Status: "sent", QtySent: intPtr(30), StageID: "ss-ht", FromHolder: "слесарка"},
	}

	cards := BuildFlowCards(100, stages, movements)
	if len(cards) != 3 {
		t.Fatalf("got %d cards, want 3", len(cards))
	}

	mach := cards[0]
	if mach.Stage != StageMachining || mach.Done != 80 || mach.Percent != 80 {
		t.Fatalf("machining card wrong: %+v", mach)
	}
	if mach.Available != 20 { // 80 done - 60 transferred out
		t.Fatalf("machining available = %d, want 20", mach.Available)
	}
	if mach.NextHop != StageFitting.Label() {
		t.Fatalf("machining next hop = %q", mach.NextHop)
	}

	fit := cards[1]
	// previous outgoing 60, fitting confirmed 40 => 20 in work
	if fit.InWork != 20 {
		t.Fatalf("fitting in_work = %d, want 20", fit.InWork)
	}
	// fitting shipped 30 to heat treatment
	if fit.Available != 10 {
		t.Fatalf("fitting available = %d, want 10", fit.Available)
	}

	ht := cards[2]
	if ht.InTransit != 30 {
		t.Fatalf("heat treatment in_transit = %d, want 30", ht.InTransit)
	}
	// external stage: in work == in transit
	if ht.InWork != 30 {
		t.Fatalf("heat treatment in_work = %d, want 30", ht.InWork)
	}
	if ht.Status != "in_progress" {
		t.Fatalf("heat treatment status = %q, want in_progress (shipment attempt)", ht.Status)
	}
	if ht.NextHop != FinishedGoodsLabel {
		t.Fatalf("last stage next hop = %q, want finished goods", ht.NextHop)
	}
}

func TestBuildFlowCardsDoneStates(t *testing.T) {
	stages := []StageInput{
		{Stage: StageMachining, StatusID: "a", Status: "in_progress", Done: 100},
		{Stage: StageFitting, StatusID: "b", Status: "done", Done: 10},
	}
	cards := BuildFlowCards(100, stages, nil)
	if cards[0].Status != "done" {
		t.Fatalf("done qty >= plan must mark stage done, got %q", cards[0].Status)
	}
	if cards[1].Status != "done" {
		t.Fatalf("explicit done status must win, got %q", cards[1].Status)
	}
}

func TestBuildFlowCardsZeroPlan(t *testing.T) {
	stages := []StageInput{
		{Stage: StageMachining, StatusID: "a", Status: "in_progress", Done: 15},
	}
	cards := BuildFlowCards(0, stages, nil)
	if cards[0].Percent != 0 {
		t.Fatalf("qty_plan=0 must give percent 0, got %d", cards[0].Percent)
	}
	if cards[0].Status != "in_progress" {
		t.Fatalf("status = %q, want in_progress", cards[0].Status)
	}
}

func TestBuildFlowCardsSkippedStagesExcluded(t *testing.T) {
	stages := []StageInput{
		{Stage: StageMachining, StatusID: "a", Status: "in_progress", Done: 5},
		{Stage: StageGalvanic, StatusID: "g", Status: "skipped"},
	}
	cards := BuildFlowCards(100, stages, nil)
	for _, c := range cards {
		if c.Stage == StageGalvanic {
			t.Fatal("skipped stage must not produce a card")
		}
	}
	if cards[len(cards)-1].NextHop != FinishedGoodsLabel {
		t.Fatalf("chain end must target finished goods, got %q", cards[len(cards)-1].NextHop)
	}
}

func TestReceiptMarksStageDone(t *testing.T) {
	// movement received with qty 95 against plan 90 => external stage done
	stages := []StageInput{
		{Stage: StageMachining, StatusID: "m", Status: "done", Done: 90, Notes: "xfer_out=90"},
		{Stage: StageHeatTreatment, StatusID: "h", Status: "in_progress", Done: 95},
	}
	cards := BuildFlowCards(90, stages, []Movement{
		{Status: "received", QtySent: intPtr(100), QtyReceived: intPtr(95), StageID: "h"},
	})
	ht := cards[1]
	if ht.Status != "done" {
		t.Fatalf("stage must be done when done >= plan, got %q", ht.Status)
	}
	if ht.InTransit != 0 {
		t.Fatalf("received movement is not in transit, got %d", ht.InTransit)
	}
}
