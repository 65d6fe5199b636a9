package ai

import (
	"strings"
	"testing"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

func TestParseDecision_TradeJSON(t *testing.T) {
	raw := `{"action":"trade","venue":"dex","kind":"swap","symbol":"SOL/USDC","amount":1.5,"price":100,"slippage":0.02,"reasoning":"趋势向上"}`

	decision := ParseDecision(raw)
	if decision.Action != ActionTrade {
		t.Fatalf("expected trade action, got %s", decision.Action)
	}
	if decision.Trade == nil {
		t.Fatalf("expected trade request")
	}
	if decision.Trade.Venue != trade.VenueDEX {
		t.Errorf("unexpected venue %s", decision.Trade.Venue)
	}
	if decision.Trade.Amount != 1.5 {
		t.Errorf("unexpected amount %f", decision.Trade.Amount)
	}
	if decision.Trade.Slippage != 0.02 {
		t.Errorf("unexpected slippage %f", decision.Trade.Slippage)
	}
	if decision.Rationale != "趋势向上" {
		t.Errorf("unexpected rationale %q", decision.Rationale)
	}
	if decision.Raw != raw {
		t.Errorf("raw output must be preserved")
	}
}

func TestParseDecision_JSONEmbeddedInProse(t *testing.T) {
	raw := "分析如下。\n```json\n" +
		`{"action":"trade","venue":"event-contract","kind":"buy","symbol":"RAIN-NYC","amount":10,"price":0.4,"reasoning":"概率被低估"}` +
		"\n```\n以上。"

	decision := ParseDecision(raw)
	if decision.Action != ActionTrade {
		t.Fatalf("expected trade action, got %s", decision.Action)
	}
	if decision.Trade.Venue != trade.VenueEvent {
		t.Errorf("unexpected venue %s", decision.Trade.Venue)
	}
	if decision.Trade.Slippage != 0.01 {
		t.Errorf("missing slippage should default to 0.01, got %f", decision.Trade.Slippage)
	}
}

func TestParseDecision_HoldJSON(t *testing.T) {
	decision := ParseDecision(`{"action":"hold","reasoning":"波动过大"}`)
	if decision.Action != ActionHold {
		t.Fatalf("expected hold, got %s", decision.Action)
	}
	if decision.Trade != nil {
		t.Errorf("hold must not carry a trade request")
	}
	if decision.Rationale != "波动过大" {
		t.Errorf("unexpected rationale %q", decision.Rationale)
	}
}

func TestParseDecision_ProseFallsBackToHold(t *testing.T) {
	raw := "市场目前缺乏明确方向，建议继续观望。"
	decision := ParseDecision(raw)
	if decision.Action != ActionHold {
		t.Fatalf("prose must fall back to hold, got %s", decision.Action)
	}
	if decision.Raw != raw {
		t.Errorf("raw prose must be preserved")
	}
	if !strings.Contains(decision.Rationale, "观望") {
		t.Errorf("rationale should carry the original text, got %q", decision.Rationale)
	}
}

func TestParseDecision_InvalidTradeFallsBackToHold(t *testing.T) {
	cases := map[string]string{
		"bad venue":  `{"action":"trade","venue":"nasdaq","kind":"buy","symbol":"AAPL","amount":1}`,
		"bad amount": `{"action":"trade","venue":"dex","kind":"swap","symbol":"SOL/USDC","amount":-1}`,
		"no symbol":  `{"action":"trade","venue":"dex","kind":"swap","amount":1}`,
		"broken":     `{"action":"trade","venue":`,
	}

	for name, raw := range cases {
		decision := ParseDecision(raw)
		if decision.Action != ActionHold {
			t.Errorf("%s: expected hold fallback, got %s", name, decision.Action)
		}
		if decision.Trade != nil {
			t.Errorf("%s: fallback must not carry a trade", name)
		}
	}
}

func TestParseDecision_EmptyInput(t *testing.T) {
	decision := ParseDecision("")
	if decision.Action != ActionHold {
		t.Fatalf("expected hold for empty input, got %s", decision.Action)
	}
}
