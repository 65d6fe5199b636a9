package monitor

import (
	"time"

	"github.com/SyrupLabs-code/Syrup/internal/ai"
	"github.com/SyrupLabs-code/Syrup/internal/risk"
	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventVenueRegistration EventType = "venue_registration"
	EventAIDecision        EventType = "ai_decision"
	EventRiskDenial        EventType = "risk_denial"
	EventTradeExecution    EventType = "trade_execution"
	EventError             EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// VenueRegistrationPayload 记录场所注册与注销。
type VenueRegistrationPayload struct {
	Venue      trade.Venue `json:"venue"`
	Registered bool        `json:"registered"`
}

// AIDecisionPayload 记录代理产出的决策。
type AIDecisionPayload struct {
	Agent    string      `json:"agent"`
	Decision ai.Decision `json:"decision"`
}

// RiskDenialPayload 记录风控否决过程。
type RiskDenialPayload struct {
	Agent   string        `json:"agent"`
	Request trade.Request `json:"request"`
	Verdict risk.Verdict  `json:"verdict"`
}

// TradeExecutionPayload 记录路由执行结果。
type TradeExecutionPayload struct {
	Request        trade.Request `json:"request"`
	IdempotencyKey string        `json:"idempotency_key"`
	Result         trade.Result  `json:"result"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
