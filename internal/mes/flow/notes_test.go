package flow

import (
	"strings"
	"testing"
)

func TestParseTransferredOut(t *testing.T) {
	cases := []struct {
		notes string
		want  int
	}{
		{"", 0},
		{"обычный комментарий", 0},
		{"xfer_out=40", 40},
		{"foo; xfer_out=40", 40},
		{"XFER_OUT=15", 15},
		{"xfer_out = 7", 7},
		{"xfer_out=abc", 0},
	}
	for _, c := range cases {
		if got := ParseTransferredOut(c.notes); got != c.want {
			t.Errorf("ParseTransferredOut(%q) = %d, want %d", c.notes, got, c.want)
		}
	}
}

func TestMergeTransferredOutRoundTrip(t *testing.T) {
	// merge then re-parse yields the incremented total regardless of
	// surrounding text
	cases := []struct {
		notes string
		qty   int
		want  int
	}{
		{"", 10, 10},
		{"передали курьером", 5, 5},
		{"foo; xfer_out=40", 25, 65},
		{"xfer_out=3; остальное позже", 2, 5},
	}
	for _, c := range cases {
		merged := MergeTransferredOut(c.notes, c.qty)
		if got := ParseTransferredOut(merged); got != c.want {
			t.Errorf("ParseTransferredOut(MergeTransferredOut(%q, %d)) = %d, want %d (merged=%q)",
				c.notes, c.qty, got, c.want, merged)
		}
	}
}

func TestMergeTransferredOutPreservesText(t *testing.T) {
	merged := MergeTransferredOut("заметка оператора; xfer_out=10; хвост", 5)
	if got := ParseTransferredOut(merged); got != 15 {
		t.Fatalf("parsed %d, want 15", got)
	}
	for _, part := range []string{"заметка оператора", "хвост"} {
		if !strings.Contains(merged, part) {
			t.Fatalf("merged notes lost text %q: %q", part, merged)
		}
	}
}

func TestMergeTransferredOutNegativeClamped(t *testing.T) {
	if got := ParseTransferredOut(MergeTransferredOut("xfer_out=10", -5)); got != 10 {
		t.Fatalf("negative increment must be ignored, got %d", got)
	}
}
