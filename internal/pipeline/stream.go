package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/SyrupLabs-code/Syrup/internal/agent"
	"github.com/SyrupLabs-code/Syrup/internal/ai"
	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

// Stream 为一次流式分析会话：惰性产生、有限、不可重启的
// 片段序列。调用方必须消费到通道关闭，或显式 Cancel；
// Cancel 会传播到底层提供方调用，不留下孤儿生成。
type Stream struct {
	chunks <-chan ai.Chunk
	cancel context.CancelFunc
}

// Chunks 返回片段通道。提供方结束或出错后通道关闭。
func (s *Stream) Chunks() <-chan ai.Chunk {
	return s.chunks
}

// Cancel 中止底层生成。可重复调用。
func (s *Stream) Cancel() {
	s.cancel()
}

// StreamAnalyze 发起流式市场分析。每次调用开启一次新的
// 提供方生成，先前的会话无法恢复。
func (p *Pipeline) StreamAnalyze(ctx context.Context, policy agent.Policy, marketData map[string]interface{}, contextText string) (*Stream, error) {
	provider, err := p.provider(policy)
	if err != nil {
		return nil, err
	}

	prompt, err := ai.BuildAnalysisPrompt(p.promptInput(policy, marketData, trade.Portfolio{}, contextText))
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	chunks, err := provider.Stream(streamCtx, p.completionRequest(policy, prompt))
	if err != nil {
		cancel()
		return nil, err
	}

	p.logger.Info("流式分析已开启", zap.String("agent", policy.Name))
	return &Stream{chunks: chunks, cancel: cancel}, nil
}
