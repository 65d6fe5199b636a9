package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/SyrupLabs-code/Syrup/internal/agent"
	"github.com/SyrupLabs-code/Syrup/internal/ai"
	"github.com/SyrupLabs-code/Syrup/internal/risk"
	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

// fakeProvider 返回预置的模型输出。
type fakeProvider struct {
	reply  string
	err    error
	chunks []ai.Chunk

	completeCalls int
	lastRequest   ai.CompletionRequest
}

func (f *fakeProvider) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	f.completeCalls++
	f.lastRequest = req
	return f.reply, f.err
}

func (f *fakeProvider) Stream(ctx context.Context, _ ai.CompletionRequest) (<-chan ai.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan ai.Chunk)
	go func() {
		defer close(out)
		for _, c := range f.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// spyExecutor 记录到达路由层的调用。
type spyExecutor struct {
	mu      sync.Mutex
	calls   int
	lastReq trade.Request
	lastKey string
	result  trade.Result
	err     error
}

func (s *spyExecutor) Execute(_ context.Context, req trade.Request, key string) (trade.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastReq = req
	s.lastKey = key
	return s.result, s.err
}

func testPolicy() agent.Policy {
	return agent.Policy{
		Name:            "tester",
		Provider:        agent.ProviderOpenAI,
		Model:           "gpt-4.1",
		SystemPrompt:    "你是稳健的交易员。",
		MaxPositionSize: 1000,
		RiskLimit:       0.1,
		Venues:          []trade.Venue{trade.VenueDEX},
	}
}

func newTestPipeline(provider *fakeProvider, executor *spyExecutor) *Pipeline {
	return New(Providers{agent.ProviderOpenAI: provider}, executor, nil)
}

const tradeReply = `{"action":"trade","venue":"dex","kind":"swap","symbol":"SOL/USDC","amount":1,"price":100,"slippage":0.01,"reasoning":"趋势向上"}`

func TestAnalyze_NeverExecutes(t *testing.T) {
	provider := &fakeProvider{reply: tradeReply}
	executor := &spyExecutor{}
	p := newTestPipeline(provider, executor)

	decision, err := p.Analyze(context.Background(), testPolicy(), map[string]interface{}{"price": 100}, "")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if decision.Action != ai.ActionTrade {
		t.Errorf("expected trade decision, got %s", decision.Action)
	}
	if executor.calls != 0 {
		t.Errorf("Analyze must never reach the router, got %d calls", executor.calls)
	}
}

func TestGenerateTrade_PreviewDoesNotExecute(t *testing.T) {
	provider := &fakeProvider{reply: tradeReply}
	executor := &spyExecutor{}
	p := newTestPipeline(provider, executor)

	decision, result, err := p.GenerateTrade(context.Background(), testPolicy(),
		map[string]interface{}{"price": 100}, trade.Portfolio{TotalValue: 100000}, "", false)
	if err != nil {
		t.Fatalf("GenerateTrade failed: %v", err)
	}
	if decision.Action != ai.ActionTrade {
		t.Errorf("expected trade decision, got %s", decision.Action)
	}
	if result != nil {
		t.Errorf("preview must not carry an execution result")
	}
	if executor.calls != 0 {
		t.Errorf("preview must not reach the router, got %d calls", executor.calls)
	}
}

func TestGenerateTrade_ExecutesWithFreshKey(t *testing.T) {
	provider := &fakeProvider{reply: tradeReply}
	executor := &spyExecutor{result: trade.Result{TradeID: "t1", Status: trade.StatusCompleted}}
	p := newTestPipeline(provider, executor)

	keys := map[string]bool{}
	for i := 0; i < 2; i++ {
		_, result, err := p.GenerateTrade(context.Background(), testPolicy(),
			map[string]interface{}{"price": 100}, trade.Portfolio{TotalValue: 100000}, "", true)
		if err != nil {
			t.Fatalf("GenerateTrade failed: %v", err)
		}
		if result == nil || result.TradeID != "t1" {
			t.Fatalf("expected routed result, got %+v", result)
		}
		if executor.lastKey == "" {
			t.Fatalf("expected generated idempotency key")
		}
		keys[executor.lastKey] = true
	}
	if len(keys) != 2 {
		t.Errorf("each execution must use a fresh idempotency key")
	}
	if executor.calls != 2 {
		t.Errorf("expected 2 router calls, got %d", executor.calls)
	}
}

func TestGenerateTrade_HoldSkipsRiskAndRouter(t *testing.T) {
	provider := &fakeProvider{reply: `{"action":"hold","reasoning":"方向不明"}`}
	executor := &spyExecutor{}
	p := newTestPipeline(provider, executor)

	decision, result, err := p.GenerateTrade(context.Background(), testPolicy(),
		nil, trade.Portfolio{TotalValue: 1000}, "", true)
	if err != nil {
		t.Fatalf("GenerateTrade failed: %v", err)
	}
	if decision.Action != ai.ActionHold {
		t.Errorf("expected hold, got %s", decision.Action)
	}
	if result != nil || executor.calls != 0 {
		t.Errorf("hold must not reach the router")
	}
}

func TestGenerateTrade_RiskDenialBecomesHold(t *testing.T) {
	// 名义 100000 超过最大仓位 1000。
	reply := `{"action":"trade","venue":"dex","kind":"swap","symbol":"SOL/USDC","amount":1000,"price":100,"slippage":0.01,"reasoning":"重仓"}`
	provider := &fakeProvider{reply: reply}
	executor := &spyExecutor{}
	p := newTestPipeline(provider, executor)

	decision, result, err := p.GenerateTrade(context.Background(), testPolicy(),
		nil, trade.Portfolio{TotalValue: 1000000}, "", true)
	if err != nil {
		t.Fatalf("risk denial must not be an error: %v", err)
	}
	if decision.Action != ai.ActionHold {
		t.Errorf("expected hold after denial, got %s", decision.Action)
	}
	if decision.Trade != nil {
		t.Errorf("denied decision must not carry the trade")
	}
	if result != nil || executor.calls != 0 {
		t.Errorf("denied trade must never reach the router")
	}
}

func TestGenerateTrade_VenueNotAllowedBecomesHold(t *testing.T) {
	reply := `{"action":"trade","venue":"event-contract","kind":"buy","symbol":"RAIN-NYC","amount":1,"price":0.4,"reasoning":"低估"}`
	provider := &fakeProvider{reply: reply}
	executor := &spyExecutor{}
	p := newTestPipeline(provider, executor)

	decision, _, err := p.GenerateTrade(context.Background(), testPolicy(),
		nil, trade.Portfolio{TotalValue: 1000}, "", true)
	if err != nil {
		t.Fatalf("GenerateTrade failed: %v", err)
	}
	if decision.Action != ai.ActionHold {
		t.Errorf("expected hold, got %s", decision.Action)
	}
	if executor.calls != 0 {
		t.Errorf("agent must not trade outside its allowed venues")
	}
}

func TestGenerateTrade_ProviderErrorPropagates(t *testing.T) {
	provider := &fakeProvider{err: &ai.ProviderError{Provider: "openai", Err: errors.New("boom")}}
	executor := &spyExecutor{}
	p := newTestPipeline(provider, executor)

	_, _, err := p.GenerateTrade(context.Background(), testPolicy(),
		nil, trade.Portfolio{}, "", true)
	var pe *ai.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if executor.calls != 0 {
		t.Errorf("provider failure must not reach the router")
	}
}

func TestGenerateTrade_UnconfiguredProvider(t *testing.T) {
	p := New(Providers{}, &spyExecutor{}, nil)

	_, _, err := p.GenerateTrade(context.Background(), testPolicy(), nil, trade.Portfolio{}, "", false)
	if err == nil {
		t.Fatalf("expected error for unconfigured provider")
	}
}

func TestGenerateTrade_SystemPromptCarriesGuidelines(t *testing.T) {
	provider := &fakeProvider{reply: `{"action":"hold","reasoning":"观望"}`}
	p := newTestPipeline(provider, &spyExecutor{})

	if _, _, err := p.GenerateTrade(context.Background(), testPolicy(), nil, trade.Portfolio{}, "", false); err != nil {
		t.Fatalf("GenerateTrade failed: %v", err)
	}
	if provider.lastRequest.Model != "gpt-4.1" {
		t.Errorf("model from policy expected, got %q", provider.lastRequest.Model)
	}
	if provider.lastRequest.SystemPrompt == "你是稳健的交易员。" {
		t.Errorf("system prompt should be extended with guidelines")
	}
}

// recorderSpy 验证审计钩子被调用。
type recorderSpy struct {
	decisions int
	denials   int
}

func (r *recorderSpy) RecordDecision(context.Context, string, ai.Decision) { r.decisions++ }
func (r *recorderSpy) RecordRiskDenial(context.Context, string, trade.Request, risk.Verdict) {
	r.denials++
}

func TestGenerateTrade_RecordsDenial(t *testing.T) {
	reply := `{"action":"trade","venue":"dex","kind":"swap","symbol":"SOL/USDC","amount":1000,"price":100,"reasoning":"重仓"}`
	provider := &fakeProvider{reply: reply}
	rec := &recorderSpy{}
	p := newTestPipeline(provider, &spyExecutor{}).WithRecorder(rec)

	if _, _, err := p.GenerateTrade(context.Background(), testPolicy(), nil, trade.Portfolio{TotalValue: 1e6}, "", true); err != nil {
		t.Fatalf("GenerateTrade failed: %v", err)
	}
	if rec.decisions != 1 {
		t.Errorf("expected 1 decision event, got %d", rec.decisions)
	}
	if rec.denials != 1 {
		t.Errorf("expected 1 denial event, got %d", rec.denials)
	}
}
