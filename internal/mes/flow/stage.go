package flow

import "strings"

// Stage 生产工序
type Stage string

const (
	StageMachining     Stage = "machining"      // 机加工
	StageFitting       Stage = "fitting"        // 钳工
	StageHeatTreatment Stage = "heat_treatment" // 热处理（外协）
	StageGalvanic      Stage = "galvanic"       // 电镀（外协）
	StageGrinding      Stage = "grinding"       // 磨削（外协）
	StageQC            Stage = "qc"             // 质检
	StageLogistics     Stage = "logistics"      // 物流
)

// ProgressStages 参与完成度计算的工序，按产线顺序
var ProgressStages = []Stage{
	StageMachining,
	StageFitting,
	StageHeatTreatment,
	StageGalvanic,
	StageGrinding,
	StageQC,
}

// InternalFactStages 厂内工序：数量来自报工记录
var InternalFactStages = []Stage{StageMachining, StageFitting, StageQC}

// ExternalMovementStages 外协工序：数量来自已签收的物流记录
var ExternalMovementStages = []Stage{StageHeatTreatment, StageGalvanic, StageGrinding}

// StageLabels 工序显示名（俄文，跟随客户现场术语）
var StageLabels = map[Stage]string{
	StageMachining:     "Механообработка",
	StageFitting:       "Слесарка",
	StageHeatTreatment: "Термообработка",
	StageGalvanic:      "Гальваника",
	StageGrinding:      "Шлифовка",
	StageQC:            "ОТК",
	StageLogistics:     "Логистика",
}

// FinishedGoodsLabel 成品库（流转链的终点，不是工序）
const FinishedGoodsLabel = "Склад ГП"

// ParseStage 解析工序标识，未知返回 false
func ParseStage(s string) (Stage, bool) {
	stage := Stage(strings.TrimSpace(strings.ToLower(s)))
	switch stage {
	case StageMachining, StageFitting, StageHeatTreatment,
		StageGalvanic, StageGrinding, StageQC, StageLogistics:
		return stage, true
	}
	return "", false
}

// Label 工序显示名，没有登记的原样返回
func (s Stage) Label() string {
	if l, ok := StageLabels[s]; ok {
		return l
	}
	return string(s)
}

// Internal 是否厂内工序
func (s Stage) Internal() bool {
	for _, st := range InternalFactStages {
		if st == s {
			return true
		}
	}
	return false
}

// External 是否外协工序
func (s Stage) External() bool {
	for _, st := range ExternalMovementStages {
		if st == s {
			return true
		}
	}
	return false
}

// stageKeyword 货位/持有方文本到工序的模糊匹配关键字。
// 顺序重要："склад гп" 必须先于其它匹配检查，避免把成品库当成工序。
type stageKeyword struct {
	keyword string
	stage   Stage
}

var stageKeywords = []stageKeyword{
	{"мех", StageMachining},
	{"слес", StageFitting},
	{"термо", StageHeatTreatment},
	{"гальв", StageGalvanic},
	{"шлиф", StageGrinding},
	{"отк", StageQC},
}

// finishedGoodsKeyword 成品库关键字
const finishedGoodsKeyword = "склад гп"

// MatchStage 按子串关键字把自由文本货位/持有方映射到工序。
// 成品库等非工序位置返回 false。
func MatchStage(text string) (Stage, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return "", false
	}
	if strings.Contains(t, finishedGoodsKeyword) {
		return "", false
	}
	for _, kw := range stageKeywords {
		if strings.Contains(t, kw.keyword) {
			return kw.stage, true
		}
	}
	return "", false
}

// IsFinishedGoods 文本是否指成品库
func IsFinishedGoods(text string) bool {
	return strings.Contains(strings.ToLower(text), finishedGoodsKeyword)
}
