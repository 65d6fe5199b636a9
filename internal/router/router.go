package router

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
	"github.com/SyrupLabs-code/Syrup/internal/venue"
)

// Config 控制路由层的重试与账本行为。
type Config struct {
	// MaxAttempts 为单笔执行的最大尝试次数（含首次）。
	MaxAttempts int
	// MinBackoff/MaxBackoff 界定指数退避区间。
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// LedgerWindow 为幂等账本的保留窗口。
	LedgerWindow time.Duration
	// PollInterval/PollWindow 控制 pending 结果的状态轮询。
	PollInterval time.Duration
	PollWindow   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.LedgerWindow <= 0 {
		c.LedgerWindow = 10 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.PollWindow <= 0 {
		c.PollWindow = 30 * time.Second
	}
	return c
}

// Router 负责把标准化交易请求分发到正确的场所适配器，
// 并维护每场所串行执行、幂等账本与受限重试。
type Router struct {
	registry *venue.Registry
	cfg      Config
	logger   *zap.Logger
	ledger   *Ledger

	slotMu sync.Mutex
	slots  map[trade.Venue]chan struct{}
}

// New 创建路由器。
func New(registry *venue.Registry, cfg Config, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Router{
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		ledger:   NewLedger(cfg.LedgerWindow),
		slots:    make(map[trade.Venue]chan struct{}),
	}
}

// Ledger 返回幂等账本（测试与监控使用）。
func (r *Router) Ledger() *Ledger {
	return r.ledger
}

// Execute 路由并执行一笔交易。同一 (venue, idempotencyKey)
// 的重复提交返回首次产生的结果，不再触达场所。
func (r *Router) Execute(ctx context.Context, req trade.Request, idempotencyKey string) (trade.Result, error) {
	if err := req.Validate(); err != nil {
		return trade.Result{}, fmt.Errorf("非法交易请求: %w", err)
	}
	if idempotencyKey == "" {
		return trade.Result{}, fmt.Errorf("幂等键不能为空")
	}

	adapter, ok := r.registry.Get(req.Venue)
	if !ok {
		return trade.Result{}, venue.NewError(venue.KindUnknownVenue, req.Venue, "场所未注册")
	}

	// 每场所唯一执行槽：同场所严格串行，不同场所完全并行。
	slot := r.slot(req.Venue)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return trade.Result{}, ctx.Err()
	}
	defer func() { <-slot }()

	if stored, found := r.ledger.Lookup(req.Venue, idempotencyKey); found {
		r.logger.Debug("幂等键命中，返回账本结果",
			zap.String("venue", string(req.Venue)),
			zap.String("idempotency_key", idempotencyKey),
			zap.String("trade_id", stored.TradeID),
		)
		return stored, nil
	}

	tradeID := uuid.NewString()
	result, err := r.executeWithRetry(ctx, adapter, req)
	result.TradeID = tradeID
	result.Venue = req.Venue
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}

	if err != nil {
		if result.Status == "" {
			result.Status = trade.StatusFailed
		}
		if result.Error == "" {
			result.Error = err.Error()
		}
		r.ledger.Record(req.Venue, idempotencyKey, result)
		return result, err
	}

	if !result.Status.Terminal() {
		result, err = r.awaitTerminal(ctx, adapter, req.Venue, idempotencyKey, result)
		if venue.IsKind(err, venue.KindTimeout) {
			// 终局未知：账本里保留的是 pending 记录，等后台轮询覆盖，
			// 这里不能用超时失败把它冲掉。
			return result, err
		}
	}

	r.ledger.Record(req.Venue, idempotencyKey, result)
	return result, err
}

// executeWithRetry 调用适配器执行，仅对瞬时的场所不可用错误
// 做指数退避重试；业务拒绝或歧义失败立即上抛。
func (r *Router) executeWithRetry(ctx context.Context, adapter venue.Adapter, req trade.Request) (trade.Result, error) {
	var (
		result trade.Result
		err    error
	)

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		result, err = adapter.ExecuteTrade(ctx, req)
		if err == nil {
			return result, nil
		}
		if !venue.IsRetryable(err) {
			return result, err
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		wait := r.backoff(attempt)
		r.logger.Warn("场所暂不可用，准备重试",
			zap.String("venue", string(req.Venue)),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(wait):
		}
	}

	return result, fmt.Errorf("重试 %d 次后仍失败: %w", r.cfg.MaxAttempts, err)
}

// awaitTerminal 在轮询窗口内等待 pending 订单终局。窗口耗尽时
// 向调用方返回 Timeout 失败，但路由器不忘记 order_id：后台
// 继续轮询并把终态写回账本，供后续状态查询。
func (r *Router) awaitTerminal(ctx context.Context, adapter venue.Adapter, v trade.Venue, idempotencyKey string, result trade.Result) (trade.Result, error) {
	if result.TxRef == "" {
		return result, nil
	}

	deadline := time.Now().Add(r.cfg.PollWindow)
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			r.pollInBackground(adapter, v, idempotencyKey, result)
			return result, ctx.Err()
		case <-ticker.C:
		}

		polled, err := adapter.GetOrderStatus(ctx, result.TxRef)
		if err != nil {
			continue
		}
		polled.TradeID = result.TradeID
		polled.Venue = v
		if polled.TxRef == "" {
			polled.TxRef = result.TxRef
		}
		result = polled
		if result.Status.Terminal() {
			return result, nil
		}
	}

	// 账本先记 pending，保证驱逐不会丢掉终局未知的订单。
	r.ledger.Record(v, idempotencyKey, result)
	r.pollInBackground(adapter, v, idempotencyKey, result)

	timeoutErr := venue.NewError(venue.KindTimeout, v,
		fmt.Sprintf("订单 %s 在轮询窗口内未终局", result.TxRef))
	failed := result
	failed.Status = trade.StatusFailed
	failed.Error = timeoutErr.Error()
	return failed, timeoutErr
}

// pollInBackground 在账本窗口内继续轮询未终局订单。
func (r *Router) pollInBackground(adapter venue.Adapter, v trade.Venue, idempotencyKey string, result trade.Result) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.LedgerWindow)
		defer cancel()

		ticker := time.NewTicker(r.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			polled, err := adapter.GetOrderStatus(ctx, result.TxRef)
			if err != nil {
				continue
			}
			if !polled.Status.Terminal() {
				continue
			}
			polled.TradeID = result.TradeID
			polled.Venue = v
			if polled.TxRef == "" {
				polled.TxRef = result.TxRef
			}
			r.ledger.Record(v, idempotencyKey, polled)
			r.logger.Info("后台轮询获得订单终态",
				zap.String("venue", string(v)),
				zap.String("trade_id", polled.TradeID),
				zap.String("status", string(polled.Status)),
			)
			return
		}
	}()
}

// GetBalance 读取场所余额。读路径不占用执行槽。
func (r *Router) GetBalance(ctx context.Context, v trade.Venue, symbol string) (trade.Balance, error) {
	adapter, ok := r.registry.Get(v)
	if !ok {
		return nil, venue.NewError(venue.KindUnknownVenue, v, "场所未注册")
	}
	return adapter.GetBalance(ctx, symbol)
}

// AllBalances 并发读取全部已注册场所的余额。
// 单个场所失败不影响其余场所的读取结果。
func (r *Router) AllBalances(ctx context.Context) (map[trade.Venue]trade.Balance, error) {
	venues := r.registry.List()

	var mu sync.Mutex
	balances := make(map[trade.Venue]trade.Balance, len(venues))

	group, groupCtx := errgroup.WithContext(ctx)
	for _, v := range venues {
		v := v
		group.Go(func() error {
			balance, err := r.GetBalance(groupCtx, v, "")
			if err != nil {
				r.logger.Warn("读取场所余额失败",
					zap.String("venue", string(v)),
					zap.Error(err),
				)
				balance = trade.Balance{}
			}
			mu.Lock()
			balances[v] = balance
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return balances, nil
}

// GetPrice 读取场所价格。读路径不占用执行槽。
func (r *Router) GetPrice(ctx context.Context, v trade.Venue, symbol string) (float64, error) {
	adapter, ok := r.registry.Get(v)
	if !ok {
		return 0, venue.NewError(venue.KindUnknownVenue, v, "场所未注册")
	}
	return adapter.GetPrice(ctx, symbol)
}

// GetOrderStatus 读取订单状态。读路径不占用执行槽。
func (r *Router) GetOrderStatus(ctx context.Context, v trade.Venue, orderID string) (trade.Result, error) {
	adapter, ok := r.registry.Get(v)
	if !ok {
		return trade.Result{}, venue.NewError(venue.KindUnknownVenue, v, "场所未注册")
	}
	return adapter.GetOrderStatus(ctx, orderID)
}

// CancelOrder 撤销挂单。
func (r *Router) CancelOrder(ctx context.Context, v trade.Venue, orderID string) (bool, error) {
	adapter, ok := r.registry.Get(v)
	if !ok {
		return false, venue.NewError(venue.KindUnknownVenue, v, "场所未注册")
	}
	return adapter.CancelOrder(ctx, orderID)
}

func (r *Router) slot(v trade.Venue) chan struct{} {
	r.slotMu.Lock()
	defer r.slotMu.Unlock()

	slot, ok := r.slots[v]
	if !ok {
		slot = make(chan struct{}, 1)
		r.slots[v] = slot
	}
	return slot
}

// backoff 计算第 attempt 次失败后的等待时长：指数退避加随机抖动。
func (r *Router) backoff(attempt int) time.Duration {
	wait := r.cfg.MinBackoff << (attempt - 1)
	if wait > r.cfg.MaxBackoff {
		wait = r.cfg.MaxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(wait)/2 + 1))
	return wait + jitter
}
