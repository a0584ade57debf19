package flow

// OutgoingQty 某工序已向下游转出的确认数量。
// 两个独立信号取最大值而不是相加：同一笔转移可能既有物流单
// 又有备注台账，相加会重复计数。
//   1. 发出方映射到该工序的物流单有效数量之和（取消/退回的不算）
//   2. 工序备注里的 xfer_out=N 台账
func OutgoingQty(stage Stage, movements []Movement, notes string) int {
	fromMovements := 0
	for _, m := range movements {
		st := NormalizeStatus(m.Status)
		if st == StatusCancelled || st == StatusReturned {
			continue
		}
		src, ok := sourceStage(m)
		if !ok || src != stage {
			continue
		}
		fromMovements += EffectiveQty(m)
	}

	fromNotes := ParseTransferredOut(notes)
	if fromNotes > fromMovements {
		return fromNotes
	}
	return fromMovements
}

// AvailableQty 工序可转出余量，数据偏差时钳位到 0
func AvailableQty(done, outgoing int) int {
	if avail := done - outgoing; avail > 0 {
		return avail
	}
	return 0
}
