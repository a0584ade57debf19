package flow

import (
	"fmt"
	"strings"
	"time"
)

// MovementStatus 物流/转移单状态
type MovementStatus string

const (
	StatusPending   MovementStatus = "pending"
	StatusSent      MovementStatus = "sent"
	StatusInTransit MovementStatus = "in_transit"
	StatusReceived  MovementStatus = "received"
	StatusReturned  MovementStatus = "returned"
	StatusCancelled MovementStatus = "cancelled"
	StatusCompleted MovementStatus = "completed"
)

// allowedTransitions 状态机：终态不可再变更
var allowedTransitions = map[MovementStatus][]MovementStatus{
	StatusPending:   {StatusSent, StatusCancelled},
	StatusSent:      {StatusInTransit, StatusReceived, StatusReturned, StatusCancelled},
	StatusInTransit: {StatusReceived, StatusReturned, StatusCancelled},
	StatusReceived:  {},
	StatusReturned:  {},
	StatusCancelled: {},
	StatusCompleted: {},
}

// NormalizeStatus 规范化状态，空值按 pending 处理
func NormalizeStatus(s string) MovementStatus {
	st := MovementStatus(strings.TrimSpace(strings.ToLower(s)))
	if st == "" {
		return StatusPending
	}
	return st
}

// Received 收货确认集合：按收货数量计数
func (s MovementStatus) Received() bool {
	return s == StatusReceived || s == StatusCompleted
}

// Active 在途集合
func (s MovementStatus) Active() bool {
	return s == StatusSent || s == StatusInTransit
}

// Terminal 终态
func (s MovementStatus) Terminal() bool {
	switch s {
	case StatusReceived, StatusReturned, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Movement 对账输入：一条物流/转移记录的快照。
// 兼容历史字段：数量可能记在 quantity（旧）或 qty_sent/qty_received（新）。
type Movement struct {
	Status       string
	Quantity     *int
	QtySent      *int
	QtyReceived  *int
	StageID      string
	FromLocation string
	FromHolder   string
	ToLocation   string
	ToHolder     string
	Description  string
	SentAt       *time.Time
	ReceivedAt   *time.Time
	ReturnedAt   *time.Time
	CancelledAt  *time.Time
	UpdatedAt    *time.Time
	CreatedAt    *time.Time
	Date         *time.Time
}

// EffectiveQty 有效数量：收货确认后以收货数为准，否则以发出数为准。
// 两者都缺失时为 0，永不返回负数。
func EffectiveQty(m Movement) int {
	sent := 0
	if m.QtySent != nil {
		sent = *m.QtySent
	} else if m.Quantity != nil {
		sent = *m.Quantity
	}

	qty := sent
	if NormalizeStatus(m.Status).Received() && m.QtyReceived != nil {
		qty = *m.QtyReceived
	}
	if qty < 0 {
		return 0
	}
	return qty
}

// sourceStage 发出方对应的工序：先看持有方，再看货位
func sourceStage(m Movement) (Stage, bool) {
	if s, ok := MatchStage(m.FromHolder); ok {
		return s, true
	}
	return MatchStage(m.FromLocation)
}

// ValidateTransition 校验状态变更。原状态重复提交视为幂等。
func ValidateTransition(current, next string) (MovementStatus, error) {
	cur := NormalizeStatus(current)
	nxt := NormalizeStatus(next)
	if nxt == cur {
		return nxt, nil
	}
	for _, allowed := range allowedTransitions[cur] {
		if allowed == nxt {
			return nxt, nil
		}
	}
	return "", fmt.Errorf("invalid movement status transition: %s -> %s", cur, nxt)
}

// EnsureReceivedRequiresSent 未发出的单不能直接签收
func EnsureReceivedRequiresSent(sentAt *time.Time, next MovementStatus) error {
	if next == StatusReceived && sentAt == nil {
		return fmt.Errorf("cannot mark movement as received without sent_at")
	}
	return nil
}

// EnsureSingleActive 同一零件默认只允许一条在途单
func EnsureSingleActive(existingActive int, current, next MovementStatus, allowParallel bool) error {
	if allowParallel {
		return nil
	}
	if next.Active() && !current.Active() && existingActive > 0 {
		return fmt.Errorf("another active movement already exists for this part")
	}
	return nil
}

// StatusTimestamps 状态时间戳组
type StatusTimestamps struct {
	SentAt      *time.Time
	ReceivedAt  *time.Time
	ReturnedAt  *time.Time
	CancelledAt *time.Time
}

// ApplyStatusTimestamps 首次进入某状态时盖章，已有时间戳不覆盖
func ApplyStatusTimestamps(next MovementStatus, ts StatusTimestamps, at time.Time) StatusTimestamps {
	if ts.SentAt == nil && next.Active() {
		ts.SentAt = &at
	}
	if next == StatusReceived && ts.ReceivedAt == nil {
		ts.ReceivedAt = &at
	}
	if next == StatusReturned && ts.ReturnedAt == nil {
		ts.ReturnedAt = &at
	}
	if next == StatusCancelled && ts.CancelledAt == nil {
		ts.CancelledAt = &at
	}
	return ts
}
