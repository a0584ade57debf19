package flow

import (
	"testing"
	"time"
)

func day(d int, hour int) *time.Time {
	t := time.Date(2025, 4, d, hour, 0, 0, 0, time.UTC)
	return &t
}

func TestBuildJournalMergesAndSortsDescending(t *testing.T) {
	movements := []Movement{
		{Status: "received", QtyReceived: intPtr(95), QtySent: intPtr(100), Description: "возврат с термички", ReceivedAt: day(10, 9)},
		{Status: "sent", QtySent: intPtr(100), Description: "отправка на термичку", SentAt: day(5, 14)},
	}
	facts := []FactRecord{
		{Stage: StageMachining, QtyGood: 30, QtyScrap: 2, CreatedAt: day(7, 8)},
	}
	tasks := []TaskRecord{
		{Title: "заказать резцы", Status: "open", CreatedAt: day(9, 10)},
	}

	events := BuildJournal(movements, facts, tasks, CategoryAll)
	// received(10th), task(9th), good(7th), scrap(7th), sent(5th)
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}
	wantKinds := []string{EventReceived, EventTaskOpen, EventGood, EventScrap, EventSent}
	for i, k := range wantKinds {
		if events[i].Kind != k {
			t.Fatalf("events[%d].Kind = %q, want %q (order %v)", i, events[i].Kind, k, events)
		}
	}
	for i := 1; i < len(events); i++ {
		if events[i].At.After(events[i-1].At) {
			t.Fatalf("events not sorted descending at %d", i)
		}
	}
}

func TestBuildJournalTimestampFallback(t *testing.T) {
	// no received_at: falls through returned->cancelled->sent->updated->created->date
	m := Movement{Status: "sent", QtySent: intPtr(5), UpdatedAt: day(3, 0), CreatedAt: day(1, 0)}
	events := BuildJournal([]Movement{m}, nil, nil, CategoryAll)
	if !events[0].At.Equal(*day(3, 0)) {
		t.Fatalf("movement timestamp = %v, want updated_at", events[0].At)
	}

	f := FactRecord{Stage: StageQC, QtyGood: 1, Date: day(2, 0)}
	events = BuildJournal(nil, []FactRecord{f}, nil, CategoryAll)
	if !events[0].At.Equal(*day(2, 0)) {
		t.Fatalf("fact timestamp = %v, want date", events[0].At)
	}

	task := TaskRecord{Title: "t", Status: "done", DueDate: day(4, 0)}
	events = BuildJournal(nil, nil, []TaskRecord{task}, CategoryAll)
	if events[0].Kind != EventTaskDone || !events[0].At.Equal(*day(4, 0)) {
		t.Fatalf("task event wrong: %+v", events[0])
	}
}

func TestBuildJournalStableForTies(t *testing.T) {
	at := day(6, 6)
	movements := []Movement{
		{Status: "sent", QtySent: intPtr(1), Description: "первая", SentAt: at},
		{Status: "sent", QtySent: intPtr(2), Description: "вторая", SentAt: at},
		{Status: "sent", QtySent: intPtr(3), Description: "третья", SentAt: at},
	}
	events := BuildJournal(movements, nil, nil, CategoryMovements)
	want := []string{"первая", "вторая", "третья"}
	for i, title := range want {
		if events[i].Title != title {
			t.Fatalf("tie order broken: events[%d] = %q, want %q", i, events[i].Title, title)
		}
	}
}

func TestBuildJournalCategoryFilter(t *testing.T) {
	movements := []Movement{
		{Status: "sent", QtySent: intPtr(10), SentAt: day(1, 0)},
		{Status: "received", QtyReceived: intPtr(10), ReceivedAt: day(2, 0)},
	}
	facts := []FactRecord{{Stage: StageFitting, QtyGood: 4, CreatedAt: day(3, 0)}}
	tasks := []TaskRecord{{Title: "x", Status: "open", CreatedAt: day(4, 0)}}

	if got := BuildJournal(movements, facts, tasks, CategoryReceipts); len(got) != 1 || got[0].Kind != EventReceived {
		t.Fatalf("receipts filter wrong: %+v", got)
	}
	// movements category includes both sent and received events
	if got := BuildJournal(movements, facts, tasks, CategoryMovements); len(got) != 2 {
		t.Fatalf("movements filter wrong: %+v", got)
	}
	if got := BuildJournal(movements, facts, tasks, CategoryFacts); len(got) != 1 || got[0].Kind != EventGood {
		t.Fatalf("facts filter wrong: %+v", got)
	}
	if got := BuildJournal(movements, facts, tasks, CategoryTasks); len(got) != 1 {
		t.Fatalf("tasks filter wrong: %+v", got)
	}
	if got := BuildJournal(movements, facts, tasks, CategoryAll); len(got) != 4 {
		t.Fatalf("all filter wrong: %+v", got)
	}
}

func TestBuildJournalDoesNotMutateInputs(t *testing.T) {
	movements := []Movement{
		{Status: "sent", QtySent: intPtr(1), SentAt: day(2, 0)},
		{Status: "sent", QtySent: intPtr(2), SentAt: day(1, 0)},
	}
	BuildJournal(movements, nil, nil, CategoryAll)
	if *movements[0].QtySent != 1 || *movements[1].QtySent != 2 {
		t.Fatal("inputs mutated")
	}
	if !movements[0].SentAt.Equal(*day(2, 0)) {
		t.Fatal("input order/content changed")
	}
}
