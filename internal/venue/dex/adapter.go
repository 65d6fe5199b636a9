package dex

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
	"github.com/SyrupLabs-code/Syrup/internal/venue"
)

// swapClient 抽象链上聚合器客户端，便于用桩实现测试适配器。
type swapClient interface {
	Health(ctx context.Context) error
	GetQuote(ctx context.Context, symbol string, amount, slippage float64) (Quote, error)
	ExecuteSwap(ctx context.Context, quote Quote) (SwapOutcome, error)
	GetBalances(ctx context.Context) (map[string]float64, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetTxStatus(ctx context.Context, signature string) (TxStatus, error)
}

// Adapter 将标准化交易请求翻译为聚合器兑换调用。
// 链上场所只支持 swap；已提交的交易无法撤销。
type Adapter struct {
	client swapClient
	logger *zap.Logger
}

// New 根据凭据创建 DEX 适配器。
func New(creds trade.Credentials, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(creds.Wallet) == "" && strings.TrimSpace(creds.PrivateKey) == "" {
		return nil, venue.NewError(venue.KindInvalidCredentials, trade.VenueDEX, "缺少钱包地址或私钥")
	}
	return &Adapter{
		client: newRestClient(creds),
		logger: logger,
	}, nil
}

// newWithClient 供测试注入桩客户端。
func newWithClient(client swapClient, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, logger: logger}
}

// Venue 实现 venue.Adapter。
func (a *Adapter) Venue() trade.Venue {
	return trade.VenueDEX
}

// Ping 通过聚合器健康检查校验连通性。
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.client.Health(ctx); err != nil {
		return venue.WrapError(venue.KindConnectivity, trade.VenueDEX, "聚合器不可达", err)
	}
	return nil
}

// ExecuteTrade 执行一次兑换：先取报价，再提交交易。
func (a *Adapter) ExecuteTrade(ctx context.Context, req trade.Request) (trade.Result, error) {
	if req.Kind != trade.KindSwap {
		err := venue.NewError(venue.KindRejected, trade.VenueDEX, "链上场所仅支持 swap")
		return a.failed(err), err
	}

	quote, err := a.client.GetQuote(ctx, req.Symbol, req.Amount, req.Slippage)
	if err != nil {
		classified := a.classify(err, "获取报价失败")
		return a.failed(classified), classified
	}

	if quote.SlippageBps > 0 && float64(quote.SlippageBps)/10000 > req.Slippage {
		err := venue.NewError(venue.KindSlippageExceeded, trade.VenueDEX, "报价滑点超出容忍度")
		return a.failed(err), err
	}

	outcome, err := a.client.ExecuteSwap(ctx, quote)
	if err != nil {
		classified := a.classify(err, "提交兑换失败")
		return a.failed(classified), classified
	}

	status := trade.StatusPending
	if outcome.Confirmed {
		status = trade.StatusCompleted
	}

	a.logger.Info("链上兑换已提交",
		zap.String("symbol", req.Symbol),
		zap.String("signature", outcome.Signature),
		zap.Bool("confirmed", outcome.Confirmed),
	)

	return trade.Result{
		Venue:          trade.VenueDEX,
		Status:         status,
		TxRef:          outcome.Signature,
		ExecutedAmount: req.Amount,
		ExecutedPrice:  outcome.Price,
		Fee:            outcome.Fee,
		Timestamp:      time.Now().UTC(),
	}, nil
}

// GetBalance 查询钱包余额。
func (a *Adapter) GetBalance(ctx context.Context, symbol string) (trade.Balance, error) {
	balances, err := a.client.GetBalances(ctx)
	if err != nil {
		return nil, a.classify(err, "查询余额失败")
	}

	if symbol == "" {
		return trade.Balance(balances), nil
	}

	filtered := trade.Balance{}
	if qty, ok := balances[symbol]; ok {
		filtered[symbol] = qty
	}
	return filtered, nil
}

// GetPrice 查询交易对价格。
func (a *Adapter) GetPrice(ctx context.Context, symbol string) (float64, error) {
	price, err := a.client.GetPrice(ctx, symbol)
	if err != nil {
		return 0, a.classify(err, "查询价格失败")
	}
	return price, nil
}

// GetOrderStatus 以交易签名查询链上确认状态。
func (a *Adapter) GetOrderStatus(ctx context.Context, orderID string) (trade.Result, error) {
	st, err := a.client.GetTxStatus(ctx, orderID)
	if err != nil {
		return trade.Result{}, a.classify(err, "查询交易状态失败")
	}

	result := trade.Result{
		Venue:     trade.VenueDEX,
		TxRef:     orderID,
		Timestamp: time.Now().UTC(),
	}

	switch st.Status {
	case "confirmed", "finalized":
		result.Status = trade.StatusCompleted
	case "failed":
		result.Status = trade.StatusFailed
		result.Error = st.Err
	default:
		result.Status = trade.StatusPending
	}
	return result, nil
}

// CancelOrder 链上交易一经提交无法撤销。
func (a *Adapter) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	return false, nil
}

// Close 实现 venue.Adapter。REST 客户端无持久连接可释放。
func (a *Adapter) Close() error {
	return nil
}

func (a *Adapter) failed(err error) trade.Result {
	return trade.Result{
		Venue:     trade.VenueDEX,
		Status:    trade.StatusFailed,
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	}
}

// classify 保留已分类错误，未分类的网络/解析异常按瞬时不可用处理。
func (a *Adapter) classify(err error, reason string) error {
	if venue.KindOf(err) != "" {
		return err
	}
	return venue.WrapError(venue.KindVenueUnavailable, trade.VenueDEX, reason, err)
}
