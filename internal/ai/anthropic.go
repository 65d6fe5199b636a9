package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/SyrupLabs-code/Syrup/internal/config"
)

const defaultMaxTokens = 2048

// AnthropicProvider 基于 Anthropic Messages API 实现 CompletionProvider。
type AnthropicProvider struct {
	cfg    config.AnthropicConfig
	logger *zap.Logger
	sdk    *anthropic.Client
}

// NewAnthropicProvider 使用给定配置创建 Anthropic 提供方。
func NewAnthropicProvider(cfg config.AnthropicConfig, logger *zap.Logger) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := make([]anthropic.ClientOption, 0, 1)
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		cfg:    cfg,
		logger: logger,
		sdk:    anthropic.NewClient(cfg.APIKey, opts...),
	}, nil
}

// Complete 实现 CompletionProvider。
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	response, err := p.sdk.CreateMessages(callCtx, p.messagesRequest(req))
	if err != nil {
		p.logger.Error("调用 Anthropic 失败", zap.Error(err))
		return "", &ProviderError{Provider: "anthropic", Err: err}
	}

	var sb strings.Builder
	for _, block := range response.Content {
		sb.WriteString(block.GetText())
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", &ProviderError{Provider: "anthropic", Err: errors.New("返回内容为空")}
	}
	return content, nil
}

// Stream 实现 CompletionProvider。
func (p *AnthropicProvider) Stream(ctx context.Context, req CompletionRequest) (<-chan Chunk, error) {
	out := make(chan Chunk)

	go func() {
		defer close(out)

		emit := func(chunk Chunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		_, err := p.sdk.CreateMessagesStream(ctx, anthropic.MessagesStreamRequest{
			MessagesRequest: p.messagesRequest(req),
			OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
				if data.Delta.Text == nil || *data.Delta.Text == "" {
					return
				}
				emit(Chunk{Text: *data.Delta.Text})
			},
		})
		if err != nil && ctx.Err() == nil {
			p.logger.Error("Anthropic 流式调用失败", zap.Error(err))
			emit(Chunk{Err: &ProviderError{Provider: "anthropic", Err: err}})
		}
	}()

	return out, nil
}

func (p *AnthropicProvider) messagesRequest(req CompletionRequest) anthropic.MessagesRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	return anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		System:    req.SystemPrompt,
		MaxTokens: p.cfg.MaxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(req.Prompt),
		},
	}
}
