package agent

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry 维护已注册代理策略的权威记录。
// 展示层只持有缓存，真实来源在这里。
type Registry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	policies map[string]Policy
}

// NewRegistry 创建代理注册表。
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:   logger,
		policies: make(map[string]Policy),
	}
}

// Create 注册新代理。名称冲突或校验失败时拒绝。
func (r *Registry) Create(policy Policy) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("代理策略非法: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.policies[policy.Name]; exists {
		return fmt.Errorf("代理 %q 已存在", policy.Name)
	}

	r.policies[policy.Name] = policy.clone()
	r.logger.Info("代理已注册",
		zap.String("agent", policy.Name),
		zap.String("provider", string(policy.Provider)),
		zap.String("model", policy.Model),
	)
	return nil
}

// Update 显式替换既有代理策略。在途决策持有旧策略的拷贝，
// 不受替换影响。
func (r *Registry) Update(policy Policy) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("代理策略非法: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.policies[policy.Name]; !exists {
		return fmt.Errorf("代理 %q 不存在", policy.Name)
	}

	r.policies[policy.Name] = policy.clone()
	return nil
}

// Get 查询代理策略，返回拷贝。
func (r *Registry) Get(name string) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	policy, ok := r.policies[name]
	if !ok {
		return Policy{}, false
	}
	return policy.clone(), true
}

// List 返回全部代理的摘要（按名称排序）。
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]Summary, 0, len(r.policies))
	for _, policy := range r.policies {
		summaries = append(summaries, policy.Summarize())
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries
}

// Delete 注销代理。
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.policies[name]; !exists {
		return fmt.Errorf("代理 %q 不存在", name)
	}

	delete(r.policies, name)
	r.logger.Info("代理已注销", zap.String("agent", name))
	return nil
}
