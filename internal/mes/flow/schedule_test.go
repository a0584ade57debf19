package flow

import (
	"testing"
	"time"
)

func TestBufferDays(t *testing.T) {
	deadline := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		finish time.Time
		want   int
	}{
		{deadline.AddDate(0, 0, -3), 3},
		{deadline, 0},
		{deadline.AddDate(0, 0, 2), -2},
		{deadline.Add(-36 * time.Hour), 2}, // partial day rounds up
		{deadline.Add(12 * time.Hour), 0},  // ceil(-0.5) == 0
	}
	for _, c := range cases {
		if got := BufferDays(deadline, c.finish); got != c.want {
			t.Errorf("BufferDays(deadline, %v) = %d, want %d", c.finish, got, c.want)
		}
	}
}

func TestClassifyBuffer(t *testing.T) {
	cases := []struct {
		buffer int
		want   ScheduleStatus
	}{
		{5, ScheduleOnTrack},
		{1, ScheduleOnTrack},
		{0, ScheduleAtRisk},
		{-1, ScheduleOverdue},
		{-10, ScheduleOverdue},
	}
	for _, c := range cases {
		if got := ClassifyBuffer(c.buffer); got != c.want {
			t.Errorf("ClassifyBuffer(%d) = %q, want %q", c.buffer, got, c.want)
		}
	}
}

func TestClassifyScheduleNoForecast(t *testing.T) {
	status, buffer := ClassifySchedule(time.Now(), nil)
	if status != ScheduleNoData || buffer != 0 {
		t.Fatalf("missing forecast must classify as no_data, got %q/%d", status, buffer)
	}
}

func TestClassifySchedule(t *testing.T) {
	deadline := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	finish := deadline.AddDate(0, 0, -4)
	status, buffer := ClassifySchedule(deadline, &finish)
	if status != ScheduleOnTrack || buffer != 4 {
		t.Fatalf("got %q/%d, want on_track/4", status, buffer)
	}
}
