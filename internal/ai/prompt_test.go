package ai

import (
	"strings"
	"testing"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

func TestBuildSystemPrompt_AppendsGuidelinesAndVenues(t *testing.T) {
	prompt := BuildSystemPrompt("你是稳健的交易员。", []trade.Venue{trade.VenueDEX, trade.VenueEvent})

	if !strings.HasPrefix(prompt, "你是稳健的交易员。") {
		t.Errorf("base prompt must come first")
	}
	if !strings.Contains(prompt, "交易守则") {
		t.Errorf("guidelines missing")
	}
	if !strings.Contains(prompt, "dex, event-contract") {
		t.Errorf("allowed venues missing, got:\n%s", prompt)
	}
}

func TestBuildDecisionPrompt_RendersInputs(t *testing.T) {
	prompt, err := BuildDecisionPrompt(PromptInput{
		MarketData:      map[string]interface{}{"symbol": "SOL/USDC", "price": 101.5},
		Portfolio:       trade.Portfolio{TotalValue: 5000},
		Context:         "资金费率转负",
		Venues:          []trade.Venue{trade.VenueDEX},
		MaxPositionSize: 500,
		RiskLimit:       0.05,
	})
	if err != nil {
		t.Fatalf("BuildDecisionPrompt failed: %v", err)
	}

	for _, want := range []string{"SOL/USDC", "5000", "资金费率转负", "dex", "500.00", "0.0500", `"action"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildAnalysisPrompt_HasNoTradeInstructions(t *testing.T) {
	prompt, err := BuildAnalysisPrompt(PromptInput{
		MarketData: map[string]interface{}{"symbol": "SOL/USDC"},
	})
	if err != nil {
		t.Fatalf("BuildAnalysisPrompt failed: %v", err)
	}
	if strings.Contains(prompt, `"action"`) {
		t.Errorf("analysis prompt must not ask for a trade decision")
	}
}
