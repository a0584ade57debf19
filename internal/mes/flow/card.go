package flow

// chainStages 协作流转链上可出现的工序，按产线顺序
var chainStages = []Stage{StageMachining, StageFitting, StageHeatTreatment, StageGalvanic}

// StageInput 流转卡计算输入：一个工序的状态快照
type StageInput struct {
	Stage    Stage
	StatusID string // part_stage_statuses.id，物流单通过 stage_id 挂到这里
	Status   string // pending / in_progress / done / skipped
	Done     int    // 该工序确认合格数量
	Notes    string
}

// FlowCard 流转卡：一个工序的派生数量汇总
type FlowCard struct {
	Stage     Stage  `json:"stage"`
	Label     string `json:"label"`
	Status    string `json:"status"`
	Done      int    `json:"done"`
	Percent   int    `json:"percent"`
	Available int    `json:"available"`
	InTransit int    `json:"in_transit"`
	InWork    int    `json:"in_work"`
	Outgoing  int    `json:"outgoing"`
	NextHop   string `json:"next_hop"`
}

// ActiveChain 由零件实际使用的工序求流转链：
// machining → fitting → [heat_treatment] → [galvanic]
func ActiveChain(required []Stage) []Stage {
	used := make(map[Stage]bool, len(required))
	for _, s := range required {
		used[s] = true
	}
	var chain []Stage
	for _, s := range chainStages {
		if used[s] {
			chain = append(chain, s)
		}
	}
	return chain
}

// Percent 完成度百分比，钳位 0..100；计划量为 0 时恒为 0
func Percent(done, qtyPlan int) int {
	if qtyPlan <= 0 {
		return 0
	}
	p := done * 100 / qtyPlan
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// BuildFlowCards 按流转链为每个工序计算流转卡。
// stages 的顺序无关；不在链上的工序（qc、logistics 等）被忽略。
func BuildFlowCards(qtyPlan int, stages []StageInput, movements []Movement) []FlowCard {
	byStage := make(map[Stage]StageInput, len(stages))
	var required []Stage
	for _, s := range stages {
		if s.Status == "skipped" {
			continue
		}
		byStage[s.Stage] = s
		required = append(required, s.Stage)
	}

	chain := ActiveChain(required)
	cards := make([]FlowCard, 0, len(chain))

	prevOutgoing := 0
	for i, stage := range chain {
		in := byStage[stage]
		outgoing := OutgoingQty(stage, movements, in.Notes)

		inTransit := 0
		tagged := 0
		for _, m := range movements {
			if in.StatusID == "" || m.StageID != in.StatusID {
				continue
			}
			tagged++
			if NormalizeStatus(m.Status).Active() {
				inTransit += EffectiveQty(m)
			}
		}

		// 外协工序在制即在途；厂内工序在制 = 上游已转出但本工序还没确认的量
		inWork := 0
		if stage.External() {
			inWork = inTransit
		} else if i > 0 {
			inWork = prevOutgoing - in.Done
			if inWork < 0 {
				inWork = 0
			}
		}

		status := "pending"
		switch {
		case in.Status == "done" || (qtyPlan > 0 && in.Done >= qtyPlan):
			status = "done"
		case in.Done > 0 || inTransit > 0 || inWork > 0 || tagged > 0:
			status = "in_progress"
		}

		nextHop := FinishedGoodsLabel
		if i+1 < len(chain) {
			nextHop = chain[i+1].Label()
		}

		cards = append(cards, FlowCard{
			Stage:     stage,
			Label:     stage.Label(),
			Status:    status,
			Done:      in.Done,
			Percent:   Percent(in.Done, qtyPlan),
			Available: AvailableQty(in.Done, outgoing),
			InTransit: inTransit,
			InWork:    inWork,
			Outgoing:  outgoing,
			NextHop:   nextHop,
		})

		prevOutgoing = outgoing
	}

	return cards
}
