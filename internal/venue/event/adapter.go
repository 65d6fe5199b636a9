package event

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
	"github.com/SyrupLabs-code/Syrup/internal/venue"
)

// eventClient 抽象事件合约交易所客户端，便于桩测试。
type eventClient interface {
	Login(ctx context.Context) error
	PlaceOrder(ctx context.Context, ticker, action string, count int, priceCents int) (Order, error)
	GetBalanceUSD(ctx context.Context) (float64, error)
	GetLastPrice(ctx context.Context, ticker string) (float64, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
}

// Adapter 将标准化请求翻译为事件合约交易所调用。
// 合约以整数张数交易，价格以美分报价。
type Adapter struct {
	client eventClient
	logger *zap.Logger
}

// New 根据凭据创建事件合约适配器。
func New(creds trade.Credentials, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(creds.APIKey) == "" || strings.TrimSpace(creds.PrivateKey) == "" {
		return nil, venue.NewError(venue.KindInvalidCredentials, trade.VenueEvent, "缺少 api_key 或 private_key")
	}
	return &Adapter{
		client: newRestClient(creds),
		logger: logger,
	}, nil
}

func newWithClient(client eventClient, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, logger: logger}
}

// Venue 实现 venue.Adapter。
func (a *Adapter) Venue() trade.Venue {
	return trade.VenueEvent
}

// Ping 通过登录流程校验凭据与连通性。
func (a *Adapter) Ping(ctx context.Context) error {
	return a.client.Login(ctx)
}

// ExecuteTrade 下单。数量按整数合约张数截断。
func (a *Adapter) ExecuteTrade(ctx context.Context, req trade.Request) (trade.Result, error) {
	if req.Kind == trade.KindSwap {
		err := venue.NewError(venue.KindRejected, trade.VenueEvent, "事件合约交易所不支持 swap")
		return a.failed(err), err
	}

	count := int(math.Floor(req.Amount))
	if count <= 0 {
		err := venue.NewError(venue.KindRejected, trade.VenueEvent, "合约张数不足一张")
		return a.failed(err), err
	}

	order, err := a.client.PlaceOrder(ctx, req.Symbol, strings.ToUpper(string(req.Kind)), count, toCents(req.Price))
	if err != nil {
		classified := a.classify(err, "下单失败")
		return a.failed(classified), classified
	}

	a.logger.Info("事件合约订单已提交",
		zap.String("ticker", req.Symbol),
		zap.String("order_id", order.OrderID),
		zap.String("status", order.Status),
	)

	return a.toResult(order), nil
}

// GetBalance 查询账户美元余额。
func (a *Adapter) GetBalance(ctx context.Context, symbol string) (trade.Balance, error) {
	usd, err := a.client.GetBalanceUSD(ctx)
	if err != nil {
		return nil, a.classify(err, "查询余额失败")
	}

	balance := trade.Balance{"USD": usd}
	if symbol != "" && symbol != "USD" {
		return trade.Balance{}, nil
	}
	return balance, nil
}

// GetPrice 查询事件合约最新成交价（美元）。
func (a *Adapter) GetPrice(ctx context.Context, symbol string) (float64, error) {
	price, err := a.client.GetLastPrice(ctx, symbol)
	if err != nil {
		return 0, a.classify(err, "查询价格失败")
	}
	return price, nil
}

// GetOrderStatus 查询订单状态。
func (a *Adapter) GetOrderStatus(ctx context.Context, orderID string) (trade.Result, error) {
	order, err := a.client.GetOrder(ctx, orderID)
	if err != nil {
		return trade.Result{}, a.classify(err, "查询订单状态失败")
	}
	return a.toResult(order), nil
}

// CancelOrder 撤销挂单。
func (a *Adapter) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	ok, err := a.client.CancelOrder(ctx, orderID)
	if err != nil {
		return false, a.classify(err, "撤单失败")
	}
	return ok, nil
}

// Close 实现 venue.Adapter。
func (a *Adapter) Close() error {
	return nil
}

func (a *Adapter) toResult(order Order) trade.Result {
	result := trade.Result{
		Venue:          trade.VenueEvent,
		TxRef:          order.OrderID,
		ExecutedAmount: float64(order.FilledCount),
		ExecutedPrice:  float64(order.PriceCents) / 100,
		Fee:            float64(order.FeeCents) / 100,
		Timestamp:      time.Now().UTC(),
	}

	switch strings.ToLower(order.Status) {
	case "executed", "filled":
		result.Status = trade.StatusCompleted
		if result.ExecutedAmount == 0 {
			result.ExecutedAmount = float64(order.Count)
		}
	case "canceled", "cancelled":
		result.Status = trade.StatusCancelled
	case "rejected":
		result.Status = trade.StatusFailed
		result.Error = "订单被场所拒绝"
	case "resting", "open":
		result.Status = trade.StatusExecuting
	default:
		result.Status = trade.StatusPending
	}
	return result
}

func (a *Adapter) failed(err error) trade.Result {
	return trade.Result{
		Venue:     trade.VenueEvent,
		Status:    trade.StatusFailed,
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	}
}

func (a *Adapter) classify(err error, reason string) error {
	if venue.KindOf(err) != "" {
		return err
	}
	return venue.WrapError(venue.KindVenueUnavailable, trade.VenueEvent, reason, err)
}
