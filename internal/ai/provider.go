package ai

import (
	"context"
	"fmt"
)

// CompletionRequest 为一次大模型调用的标准输入。
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Prompt       string
}

// Chunk 为流式输出的单个片段。Err 非空时序列随即终止。
type Chunk struct {
	Text string
	Err  error
}

// CompletionProvider 为外部大模型能力。提供方鉴权与模型
// 选择属外部关注点，核心层只消费该接口。
type CompletionProvider interface {
	// Complete 同步获取完整回复文本。
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Stream 以懒惰产生的片段序列返回回复。序列有限、
	// 不可重启；取消 ctx 会中止底层生成，通道随之关闭。
	Stream(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)
}

// ProviderError 包装提供方调用失败。解析失败不属于此类，
// 模型输出散文而非结构化结果是预期情形。
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
