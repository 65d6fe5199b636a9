package ai

import (
	"encoding/json"
	"strings"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

// Action 表示代理决策的动作。
type Action string

const (
	ActionHold  Action = "hold"
	ActionTrade Action = "trade"
)

// Decision 为决策管线的输出：观望，或一笔具体的交易提案。
// 决策是瞬态产物，按调用产生，不做持久化。
type Decision struct {
	Action    Action         `json:"action"`
	Trade     *trade.Request `json:"trade,omitempty"`
	Rationale string         `json:"rationale"`
	Raw       string         `json:"raw,omitempty"`
}

// decisionPayload 为模型被要求输出的 JSON 结构。
type decisionPayload struct {
	Action    string  `json:"action"`
	Venue     string  `json:"venue"`
	Kind      string  `json:"kind"`
	Symbol    string  `json:"symbol"`
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	Slippage  float64 `json:"slippage"`
	Reasoning string  `json:"reasoning"`
}

// ParseDecision 把模型原始输出解析为 Decision。
// 无法解析出可识别交易结构的输出一律按观望处理并保留原文，
// 模型返回散文而非结构化结果是预期而非异常。
func ParseDecision(content string) Decision {
	raw := strings.TrimSpace(content)

	payload, ok := extractPayload(raw)
	if !ok {
		return holdDecision(raw, raw)
	}

	rationale := strings.TrimSpace(payload.Reasoning)
	if rationale == "" {
		rationale = raw
	}

	if strings.ToLower(strings.TrimSpace(payload.Action)) != string(ActionTrade) {
		return holdDecision(rationale, raw)
	}

	slippage := payload.Slippage
	if slippage == 0 {
		slippage = 0.01
	}

	req := trade.Request{
		Venue:    trade.Venue(strings.ToLower(strings.TrimSpace(payload.Venue))),
		Kind:     trade.Kind(strings.ToLower(strings.TrimSpace(payload.Kind))),
		Symbol:   strings.TrimSpace(payload.Symbol),
		Amount:   payload.Amount,
		Price:    payload.Price,
		Slippage: slippage,
	}
	if err := req.Validate(); err != nil {
		return holdDecision(rationale, raw)
	}

	return Decision{
		Action:    ActionTrade,
		Trade:     &req,
		Rationale: rationale,
		Raw:       raw,
	}
}

func holdDecision(rationale, raw string) Decision {
	return Decision{
		Action:    ActionHold,
		Rationale: rationale,
		Raw:       raw,
	}
}

func extractPayload(content string) (decisionPayload, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return decisionPayload{}, false
	}

	var payload decisionPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return decisionPayload{}, false
	}
	return payload, true
}
