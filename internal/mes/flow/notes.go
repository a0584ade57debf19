package flow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// 工序备注里的内部转出台账标记。历史遗留：没有物流单的内部转移
// 用备注中的 xfer_out=N 记数。
var xferOutRe = regexp.MustCompile(`(?i)xfer_out\s*=\s*(\d+)`)

// ParseTransferredOut 从备注解析已转出数量，没有标记返回 0
func ParseTransferredOut(notes string) int {
	m := xferOutRe.FindStringSubmatch(notes)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// MergeTransferredOut 把新转出量累加进备注标记，保留其余文本。
// 不变式：ParseTransferredOut(MergeTransferredOut(notes, q)) ==
// ParseTransferredOut(notes) + q（q >= 0 时）。
func MergeTransferredOut(notes string, qty int) string {
	if qty < 0 {
		qty = 0
	}
	total := ParseTransferredOut(notes) + qty
	token := fmt.Sprintf("xfer_out=%d", total)

	if xferOutRe.MatchString(notes) {
		return xferOutRe.ReplaceAllString(notes, token)
	}
	trimmed := strings.TrimSpace(notes)
	if trimmed == "" {
		return token
	}
	return trimmed + "; " + token
}
