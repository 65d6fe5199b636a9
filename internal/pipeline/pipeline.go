package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SyrupLabs-code/Syrup/internal/agent"
	"github.com/SyrupLabs-code/Syrup/internal/ai"
	"github.com/SyrupLabs-code/Syrup/internal/feature"
	"github.com/SyrupLabs-code/Syrup/internal/risk"
	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

// Executor 为管线消费的路由能力，真实实现为 router.Router。
type Executor interface {
	Execute(ctx context.Context, req trade.Request, idempotencyKey string) (trade.Result, error)
}

// Providers 按提供方标识索引大模型客户端。
type Providers map[agent.Provider]ai.CompletionProvider

// Recorder 接收管线产出的审计事件，真实实现为 monitor.Service。
// 记录失败不影响决策流程。
type Recorder interface {
	RecordDecision(ctx context.Context, agent string, decision ai.Decision)
	RecordRiskDenial(ctx context.Context, agent string, req trade.Request, verdict risk.Verdict)
}

// Pipeline 编排 AI 分析与交易生成：构建提示词、调用提供方、
// 解析决策、施加风控，必要时把交易提交给路由器。
// 代理在调用之间无状态，每次调用相互独立。
type Pipeline struct {
	providers Providers
	executor  Executor
	recorder  Recorder
	logger    *zap.Logger
	newKey    func() string
}

// WithRecorder 挂载审计记录器，返回管线自身便于链式配置。
func (p *Pipeline) WithRecorder(rec Recorder) *Pipeline {
	p.recorder = rec
	return p
}

// New 创建决策管线。
func New(providers Providers, executor Executor, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		providers: providers,
		executor:  executor,
		logger:    logger,
		newKey:    uuid.NewString,
	}
}

// Analyze 获取代理决策但绝不执行：不做风控，不触达路由器。
// 返回的 Decision 仅供参考。
func (p *Pipeline) Analyze(ctx context.Context, policy agent.Policy, marketData map[string]interface{}, contextText string) (ai.Decision, error) {
	provider, err := p.provider(policy)
	if err != nil {
		return ai.Decision{}, err
	}

	prompt, err := ai.BuildDecisionPrompt(p.promptInput(policy, marketData, trade.Portfolio{}, contextText))
	if err != nil {
		return ai.Decision{}, err
	}

	raw, err := provider.Complete(ctx, p.completionRequest(policy, prompt))
	if err != nil {
		return ai.Decision{}, err
	}

	decision := ai.ParseDecision(raw)
	if p.recorder != nil {
		p.recorder.RecordDecision(ctx, policy.Name, decision)
	}
	p.logger.Info("代理分析完成",
		zap.String("agent", policy.Name),
		zap.String("action", string(decision.Action)),
	)
	return decision, nil
}

// GenerateTrade 生成交易决策。单次调用的状态机为
// drafting → (hold | risk-checked) → (preview-returned | routed) → done：
//   - 模型观望则直接返回，不做风控；
//   - 风控拒绝则降级为观望并附上拒绝理由，代理的越界提案
//     永远不会被转发到场所；
//   - execute=false 为预览模式，不触达路由器；
//   - execute=true 以新生成的幂等键提交路由器。
func (p *Pipeline) GenerateTrade(ctx context.Context, policy agent.Policy, marketData map[string]interface{}, portfolio trade.Portfolio, contextText string, execute bool) (ai.Decision, *trade.Result, error) {
	provider, err := p.provider(policy)
	if err != nil {
		return ai.Decision{}, nil, err
	}

	prompt, err := ai.BuildDecisionPrompt(p.promptInput(policy, marketData, portfolio, contextText))
	if err != nil {
		return ai.Decision{}, nil, err
	}

	raw, err := provider.Complete(ctx, p.completionRequest(policy, prompt))
	if err != nil {
		return ai.Decision{}, nil, err
	}

	decision := ai.ParseDecision(raw)
	if p.recorder != nil {
		p.recorder.RecordDecision(ctx, policy.Name, decision)
	}
	if decision.Action == ai.ActionHold {
		p.logger.Info("代理决定观望", zap.String("agent", policy.Name))
		return decision, nil, nil
	}

	// 风控先于任何场所调用，且在任何锁之外计算。
	verdict := risk.Evaluate(policy, *decision.Trade, portfolio)
	if !verdict.Allowed {
		if p.recorder != nil {
			p.recorder.RecordRiskDenial(ctx, policy.Name, *decision.Trade, verdict)
		}
		p.logger.Warn("风控拒绝代理提案",
			zap.String("agent", policy.Name),
			zap.String("reason", string(verdict.Reason)),
			zap.String("detail", verdict.Detail),
		)
		decision.Action = ai.ActionHold
		decision.Trade = nil
		decision.Rationale = fmt.Sprintf("%s: %s", verdict.Reason, verdict.Detail)
		return decision, nil, nil
	}

	if !execute {
		return decision, nil, nil
	}

	result, err := p.executor.Execute(ctx, *decision.Trade, p.newKey())
	if err != nil {
		return decision, &result, fmt.Errorf("路由执行失败: %w", err)
	}

	p.logger.Info("代理交易已执行",
		zap.String("agent", policy.Name),
		zap.String("trade_id", result.TradeID),
		zap.String("status", string(result.Status)),
	)
	return decision, &result, nil
}

func (p *Pipeline) provider(policy agent.Policy) (ai.CompletionProvider, error) {
	provider, ok := p.providers[policy.Provider]
	if !ok || provider == nil {
		return nil, fmt.Errorf("未配置提供方 %q", policy.Provider)
	}
	return provider, nil
}

func (p *Pipeline) promptInput(policy agent.Policy, marketData map[string]interface{}, portfolio trade.Portfolio, contextText string) ai.PromptInput {
	return ai.PromptInput{
		MarketData:      feature.Enrich(marketData),
		Portfolio:       portfolio,
		Context:         strings.TrimSpace(contextText),
		Venues:          policy.Venues,
		MaxPositionSize: policy.MaxPositionSize,
		RiskLimit:       policy.RiskLimit,
	}
}

func (p *Pipeline) completionRequest(policy agent.Policy, prompt string) ai.CompletionRequest {
	return ai.CompletionRequest{
		Model:        policy.Model,
		SystemPrompt: ai.BuildSystemPrompt(policy.SystemPrompt, policy.Venues),
		Prompt:       prompt,
	}
}
