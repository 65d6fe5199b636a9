package venue

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

var (
	// ErrCredentialsNotFound 表示凭据存储中不存在该场所的配置。
	ErrCredentialsNotFound = errors.New("venue: 未找到场所凭据")
)

// Factory 根据场所与凭据构造适配器实例。
type Factory func(v trade.Venue, creds trade.Credentials, logger *zap.Logger) (Adapter, error)

// Registry 维护当前已注册的适配器集合。
// Register 在连通性校验通过之前不会让适配器可见；
// 重复注册同一场所时原子替换，旧适配器排空后关闭。
type Registry struct {
	factory Factory
	logger  *zap.Logger

	mu       sync.RWMutex
	adapters map[trade.Venue]*trackedAdapter
}

// NewRegistry 创建注册表。
func NewRegistry(factory Factory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factory:  factory,
		logger:   logger,
		adapters: make(map[trade.Venue]*trackedAdapter),
	}
}

// Register 构造并校验适配器，成功后使其可见。
// 校验失败时注册表保持原状，返回 connectivity 类错误。
func (r *Registry) Register(ctx context.Context, v trade.Venue, creds trade.Credentials) error {
	if r.factory == nil {
		return errors.New("venue: 注册表缺少适配器工厂")
	}

	adapter, err := r.factory(v, creds, r.logger)
	if err != nil {
		return WrapError(KindConnectivity, v, "构造适配器失败", err)
	}

	if err := adapter.Ping(ctx); err != nil {
		_ = adapter.Close()
		if KindOf(err) != "" {
			return err
		}
		return WrapError(KindConnectivity, v, "场所握手失败", err)
	}

	tracked := newTrackedAdapter(adapter)

	r.mu.Lock()
	old := r.adapters[v]
	r.adapters[v] = tracked
	r.mu.Unlock()

	if old != nil {
		go r.drain(old)
		r.logger.Info("场所适配器已替换", zap.String("venue", string(v)))
	} else {
		r.logger.Info("场所适配器已注册", zap.String("venue", string(v)))
	}

	return nil
}

// Unregister 注销场所适配器。未注册时返回 UnknownVenue。
func (r *Registry) Unregister(v trade.Venue) error {
	r.mu.Lock()
	old, ok := r.adapters[v]
	if ok {
		delete(r.adapters, v)
	}
	r.mu.Unlock()

	if !ok {
		return NewError(KindUnknownVenue, v, "场所未注册")
	}

	go r.drain(old)
	r.logger.Info("场所适配器已注销", zap.String("venue", string(v)))
	return nil
}

// Get 查询场所适配器。未注册时返回 found=false，
// 调用方必须将其视为 UnknownVenue，绝不会得到默认适配器。
func (r *Registry) Get(v trade.Venue) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[v]
	if !ok {
		return nil, false
	}
	return adapter, true
}

// List 返回当前已注册的场所列表（按字典序）。
func (r *Registry) List() []trade.Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	venues := make([]trade.Venue, 0, len(r.adapters))
	for v := range r.adapters {
		venues = append(venues, v)
	}
	sort.Slice(venues, func(i, j int) bool { return venues[i] < venues[j] })
	return venues
}

// Close 排空并关闭全部适配器。
func (r *Registry) Close() {
	r.mu.Lock()
	adapters := r.adapters
	r.adapters = make(map[trade.Venue]*trackedAdapter)
	r.mu.Unlock()

	for _, a := range adapters {
		r.drain(a)
	}
}

func (r *Registry) drain(a *trackedAdapter) {
	a.wait()
	if err := a.Adapter.Close(); err != nil {
		r.logger.Warn("关闭场所适配器失败",
			zap.String("venue", string(a.Venue())),
			zap.Error(err),
		)
	}
}

// trackedAdapter 统计在途调用，使替换/注销时旧适配器
// 能等待在途请求返回后再关闭。
type trackedAdapter struct {
	Adapter
	inflight sync.WaitGroup
}

func newTrackedAdapter(a Adapter) *trackedAdapter {
	return &trackedAdapter{Adapter: a}
}

func (t *trackedAdapter) wait() {
	t.inflight.Wait()
}

func (t *trackedAdapter) ExecuteTrade(ctx context.Context, req trade.Request) (trade.Result, error) {
	t.inflight.Add(1)
	defer t.inflight.Done()
	return t.Adapter.ExecuteTrade(ctx, req)
}

func (t *trackedAdapter) GetBalance(ctx context.Context, symbol string) (trade.Balance, error) {
	t.inflight.Add(1)
	defer t.inflight.Done()
	return t.Adapter.GetBalance(ctx, symbol)
}

func (t *trackedAdapter) GetPrice(ctx context.Context, symbol string) (float64, error) {
	t.inflight.Add(1)
	defer t.inflight.Done()
	return t.Adapter.GetPrice(ctx, symbol)
}

func (t *trackedAdapter) GetOrderStatus(ctx context.Context, orderID string) (trade.Result, error) {
	t.inflight.Add(1)
	defer t.inflight.Done()
	return t.Adapter.GetOrderStatus(ctx, orderID)
}

func (t *trackedAdapter) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	t.inflight.Add(1)
	defer t.inflight.Done()
	return t.Adapter.CancelOrder(ctx, orderID)
}
