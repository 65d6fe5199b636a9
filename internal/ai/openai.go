package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/SyrupLabs-code/Syrup/internal/config"
)

// OpenAIProvider 基于 OpenAI 兼容接口实现 CompletionProvider。
type OpenAIProvider struct {
	cfg    config.OpenAIConfig
	logger *zap.Logger
	sdk    *openai.Client
}

// NewOpenAIProvider 使用给定配置创建 OpenAI 提供方。
func NewOpenAIProvider(cfg config.OpenAIConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sdkConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkConfig.BaseURL = cfg.BaseURL
	}
	sdkConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return &OpenAIProvider{
		cfg:    cfg,
		logger: logger,
		sdk:    openai.NewClientWithConfig(sdkConfig),
	}, nil
}

// Complete 实现 CompletionProvider。
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	response, err := p.sdk.CreateChatCompletion(ctx, p.chatRequest(req, false))
	if err != nil {
		p.logger.Error("调用 OpenAI 失败", zap.Error(err))
		return "", &ProviderError{Provider: "openai", Err: err}
	}

	if len(response.Choices) == 0 {
		return "", &ProviderError{Provider: "openai", Err: errors.New("返回结果为空")}
	}

	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if content == "" {
		return "", &ProviderError{Provider: "openai", Err: errors.New("返回内容为空")}
	}
	return content, nil
}

// Stream 实现 CompletionProvider。
func (p *OpenAIProvider) Stream(ctx context.Context, req CompletionRequest) (<-chan Chunk, error) {
	stream, err := p.sdk.CreateChatCompletionStream(ctx, p.chatRequest(req, true))
	if err != nil {
		p.logger.Error("创建 OpenAI 流失败", zap.Error(err))
		return nil, &ProviderError{Provider: "openai", Err: err}
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer func() {
			_ = stream.Close()
		}()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case out <- Chunk{Err: &ProviderError{Provider: "openai", Err: err}}:
				case <-ctx.Done():
				}
				return
			}
			if len(response.Choices) == 0 {
				continue
			}
			delta := response.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- Chunk{Text: delta}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *OpenAIProvider) chatRequest(req CompletionRequest, stream bool) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0,
		Stream:      stream,
	}
}
