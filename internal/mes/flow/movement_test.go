package flow

import (
	"testing"
	"time"
)

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		in   string
		want MovementStatus
	}{
		{"", StatusPending},
		{"  ", StatusPending},
		{"SENT", StatusSent},
		{" In_Transit ", StatusInTransit},
		{"received", StatusReceived},
	}
	for _, c := range cases {
		if got := NormalizeStatus(c.in); got != c.want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestEffectiveQtySentMovement(t *testing.T) {
	// qty_sent=100, status sent, no qty_received => 100, counts as in-transit
	m := Movement{Status: "sent", QtySent: intPtr(100)}
	if got := EffectiveQty(m); got != 100 {
		t.Fatalf("EffectiveQty = %d, want 100", got)
	}
	if !NormalizeStatus(m.Status).Active() {
		t.Fatal("sent movement must be active")
	}
}

func TestEffectiveQtyReceivedOverridesSent(t *testing.T) {
	m := Movement{Status: "received", QtySent: intPtr(100), QtyReceived: intPtr(95)}
	if got := EffectiveQty(m); got != 95 {
		t.Fatalf("EffectiveQty = %d, want 95", got)
	}
}

func TestEffectiveQtyReceivedFallsBackToSent(t *testing.T) {
	m := Movement{Status: "completed", QtySent: intPtr(40)}
	if got := EffectiveQty(m); got != 40 {
		t.Fatalf("EffectiveQty = %d, want 40", got)
	}
}

func TestEffectiveQtyLegacyQuantityField(t *testing.T) {
	m := Movement{Status: "sent", Quantity: intPtr(70)}
	if got := EffectiveQty(m); got != 70 {
		t.Fatalf("EffectiveQty = %d, want 70", got)
	}
}

func TestEffectiveQtyAllAbsent(t *testing.T) {
	// both quantities absent => 0, never nil/NaN
	if got := EffectiveQty(Movement{Status: "received"}); got != 0 {
		t.Fatalf("EffectiveQty = %d, want 0", got)
	}
}

func TestEffectiveQtyNeverNegative(t *testing.T) {
	m := Movement{Status: "received", QtyReceived: intPtr(-5), QtySent: intPtr(10)}
	if got := EffectiveQty(m); got != 0 {
		t.Fatalf("EffectiveQty = %d, want 0", got)
	}
}

func TestValidateTransition(t *testing.T) {
	ok := [][2]string{
		{"pending", "sent"},
		{"pending", "cancelled"},
		{"sent", "in_transit"},
		{"sent", "received"},
		{"in_transit", "returned"},
		{"received", "received"}, // idempotent repeat
	}
	for _, c := range ok {
		if _, err := ValidateTransition(c[0], c[1]); err != nil {
			t.Errorf("transition %s -> %s should be allowed: %v", c[0], c[1], err)
		}
	}

	bad := [][2]string{
		{"received", "sent"},
		{"cancelled", "received"},
		{"pending", "received"},
		{"completed", "cancelled"},
	}
	for _, c := range bad {
		if _, err := ValidateTransition(c[0], c[1]); err == nil {
			t.Errorf("transition %s -> %s should be rejected", c[0], c[1])
		}
	}
}

func TestEnsureReceivedRequiresSent(t *testing.T) {
	if err := EnsureReceivedRequiresSent(nil, StatusReceived); err == nil {
		t.Fatal("expected error: received without sent_at")
	}
	now := time.Now()
	if err := EnsureReceivedRequiresSent(&now, StatusReceived); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureSingleActive(t *testing.T) {
	if err := EnsureSingleActive(1, StatusPending, StatusSent, false); err == nil {
		t.Fatal("expected error: second active movement")
	}
	if err := EnsureSingleActive(1, StatusPending, StatusSent, true); err != nil {
		t.Fatalf("parallel allowed: %v", err)
	}
	// an already-active record moving within the active set is fine
	if err := EnsureSingleActive(1, StatusSent, StatusInTransit, false); err != nil {
		t.Fatalf("active->active should pass: %v", err)
	}
}

func TestApplyStatusTimestamps(t *testing.T) {
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ts := ApplyStatusTimestamps(StatusSent, StatusTimestamps{}, at)
	if ts.SentAt == nil || !ts.SentAt.Equal(at) {
		t.Fatal("sent_at must be stamped on first send")
	}

	later := at.Add(48 * time.Hour)
	ts = ApplyStatusTimestamps(StatusReceived, ts, later)
	if ts.ReceivedAt == nil || !ts.ReceivedAt.Equal(later) {
		t.Fatal("received_at must be stamped")
	}
	if !ts.SentAt.Equal(at) {
		t.Fatal("sent_at must not be overwritten")
	}
}
