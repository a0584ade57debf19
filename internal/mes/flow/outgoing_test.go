package flow

import "testing"

func TestMatchStage(t *testing.T) {
	cases := []struct {
		text  string
		want  Stage
		found bool
	}{
		{"Мехобработка, уч. 2", StageMachining, true},
		{"слесарный участок", StageFitting, true},
		{"Термообработка ООО Калор", StageHeatTreatment, true},
		{"цех гальваники", StageGalvanic, true},
		{"шлифовка", StageGrinding, true},
		{"ОТК", StageQC, true},
		{"Склад ГП", "", false},
		{"", "", false},
		{"неизвестный подрядчик", "", false},
	}
	for _, c := range cases {
		got, found := MatchStage(c.text)
		if found != c.found || got != c.want {
			t.Errorf("MatchStage(%q) = (%q, %v), want (%q, %v)", c.text, got, found, c.want, c.found)
		}
	}
}

func TestOutgoingQtyTakesMaxNotSum(t *testing.T) {
	// logistics-derived 25, notes token 40 => 40, not 65
	movements := []Movement{
		{Status: "received", QtySent: intPtr(25), FromHolder: "мехобработка"},
	}
	got := OutgoingQty(StageMachining, movements, "foo; xfer_out=40")
	if got != 40 {
		t.Fatalf("OutgoingQty = %d, want 40 (max, not sum)", got)
	}
}

func TestOutgoingQtyMovementsWin(t *testing.T) {
	movements := []Movement{
		{Status: "sent", QtySent: intPtr(30), FromHolder: "мех. участок"},
		{Status: "received", QtySent: intPtr(20), QtyReceived: intPtr(20), FromLocation: "мехобработка"},
	}
	if got := OutgoingQty(StageMachining, movements, "xfer_out=10"); got != 50 {
		t.Fatalf("OutgoingQty = %d, want 50", got)
	}
}

func TestOutgoingQtySkipsCancelledAndReturned(t *testing.T) {
	movements := []Movement{
		{Status: "cancelled", QtySent: intPtr(100), FromHolder: "мех"},
		{Status: "returned", QtySent: intPtr(50), FromHolder: "мех"},
		{Status: "sent", QtySent: intPtr(5), FromHolder: "мех"},
	}
	if got := OutgoingQty(StageMachining, movements, ""); got != 5 {
		t.Fatalf("OutgoingQty = %d, want 5", got)
	}
}

func TestOutgoingQtyIgnoresOtherStagesAndFinishedGoods(t *testing.T) {
	movements := []Movement{
		{Status: "sent", QtySent: intPtr(10), FromHolder: "слесарка"},
		{Status: "sent", QtySent: intPtr(7), FromLocation: "склад гп"},
	}
	if got := OutgoingQty(StageMachining, movements, ""); got != 0 {
		t.Fatalf("OutgoingQty = %d, want 0", got)
	}
}

func TestAvailableQtyNeverNegative(t *testing.T) {
	if got := AvailableQty(10, 25); got != 0 {
		t.Fatalf("AvailableQty(10, 25) = %d, want 0", got)
	}
	if got := AvailableQty(30, 12); got != 18 {
		t.Fatalf("AvailableQty(30, 12) = %d, want 18", got)
	}
}
