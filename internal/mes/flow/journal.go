package flow

import (
	"sort"
	"time"
)

// EventCategory 事件流过滤类别
type EventCategory string

const (
	CategoryAll       EventCategory = "all"
	CategoryMovements EventCategory = "movements"
	CategoryReceipts  EventCategory = "receipts"
	CategoryFacts     EventCategory = "facts"
	CategoryTasks     EventCategory = "tasks"
)

// ParseEventCategory 解析过滤类别，空串视为 all
func ParseEventCategory(raw string) (EventCategory, bool) {
	switch EventCategory(raw) {
	case "", CategoryAll:
		return CategoryAll, true
	case CategoryMovements, CategoryReceipts, CategoryFacts, CategoryTasks:
		return EventCategory(raw), true
	}
	return "", false
}

// 事件种类
const (
	EventSent      = "sent"
	EventReceived  = "received"
	EventGood      = "good"
	EventScrap     = "scrap"
	EventTaskOpen  = "task_open"
	EventTaskDone  = "task_done"
)

// FactRecord 事件流输入：一条报工记录
type FactRecord struct {
	Stage     Stage
	QtyGood   int
	QtyScrap  int
	Operator  string
	Comment   string
	CreatedAt *time.Time
	Date      *time.Time
}

// TaskRecord 事件流输入：一个任务
type TaskRecord struct {
	Title     string
	Status    string
	CreatedAt *time.Time
	DueDate   *time.Time
}

// JournalEvent 零件事件流的一条记录
type JournalEvent struct {
	Category EventCategory `json:"category"`
	Kind     string        `json:"kind"`
	Title    string        `json:"title"`
	Stage    Stage         `json:"stage,omitempty"`
	Quantity int           `json:"quantity"`
	At       time.Time     `json:"at"`
}

// coalesceTime 按优先级取第一个非空时间戳
func coalesceTime(candidates ...*time.Time) time.Time {
	for _, t := range candidates {
		if t != nil {
			return *t
		}
	}
	return time.Time{}
}

// movementTime 物流事件时间戳回退链
func movementTime(m Movement) time.Time {
	return coalesceTime(m.ReceivedAt, m.ReturnedAt, m.CancelledAt, m.SentAt, m.UpdatedAt, m.CreatedAt, m.Date)
}

// BuildJournal 把物流单、报工、任务合并成按时间倒序的事件流。
// 不修改输入；相同时间戳保持各来源内部的原始相对顺序。
func BuildJournal(movements []Movement, facts []FactRecord, tasks []TaskRecord, filter EventCategory) []JournalEvent {
	events := make([]JournalEvent, 0, len(movements)+2*len(facts)+len(tasks))

	for _, m := range movements {
		kind := EventSent
		category := CategoryMovements
		if NormalizeStatus(m.Status).Received() {
			kind = EventReceived
			category = CategoryReceipts
		}
		events = append(events, JournalEvent{
			Category: category,
			Kind:     kind,
			Title:    m.Description,
			Quantity: EffectiveQty(m),
			At:       movementTime(m),
		})
	}

	for _, f := range facts {
		at := coalesceTime(f.CreatedAt, f.Date)
		if f.QtyGood != 0 {
			events = append(events, JournalEvent{
				Category: CategoryFacts,
				Kind:     EventGood,
				Title:    f.Comment,
				Stage:    f.Stage,
				Quantity: f.QtyGood,
				At:       at,
			})
		}
		if f.QtyScrap != 0 {
			events = append(events, JournalEvent{
				Category: CategoryFacts,
				Kind:     EventScrap,
				Title:    f.Comment,
				Stage:    f.Stage,
				Quantity: f.QtyScrap,
				At:       at,
			})
		}
	}

	for _, t := range tasks {
		kind := EventTaskOpen
		if t.Status == "done" {
			kind = EventTaskDone
		}
		events = append(events, JournalEvent{
			Category: CategoryTasks,
			Kind:     kind,
			Title:    t.Title,
			At:       coalesceTime(t.CreatedAt, t.DueDate),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.After(events[j].At)
	})

	if filter == "" || filter == CategoryAll {
		return events
	}
	filtered := events[:0:0]
	for _, e := range events {
		if e.Category == filter || (filter == CategoryMovements && e.Category == CategoryReceipts) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
