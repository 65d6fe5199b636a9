package prediction

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
	"github.com/SyrupLabs-code/Syrup/internal/venue"
)

// marketClient 抽象预测市场 CLOB 客户端，便于桩测试。
type marketClient interface {
	ServerTime(ctx context.Context) error
	PlaceOrder(ctx context.Context, market, side string, size, price, slippage float64) (Order, error)
	GetBalances(ctx context.Context) (map[string]float64, error)
	GetMidPrice(ctx context.Context, market string) (float64, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
}

// Adapter 将标准化请求翻译为预测市场 CLOB 调用。
type Adapter struct {
	client marketClient
	logger *zap.Logger
}

// New 根据凭据创建预测市场适配器。
func New(creds trade.Credentials, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(creds.APIKey) == "" || strings.TrimSpace(creds.APISecret) == "" {
		return nil, venue.NewError(venue.KindInvalidCredentials, trade.VenuePrediction, "缺少 api_key 或 api_secret")
	}
	return &Adapter{
		client: newRestClient(creds),
		logger: logger,
	}, nil
}

func newWithClient(client marketClient, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, logger: logger}
}

// Venue 实现 venue.Adapter。
func (a *Adapter) Venue() trade.Venue {
	return trade.VenuePrediction
}

// Ping 通过服务器时间接口校验连通性与签名有效性。
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.client.ServerTime(ctx); err != nil {
		if venue.KindOf(err) == venue.KindInvalidCredentials {
			return err
		}
		return venue.WrapError(venue.KindConnectivity, trade.VenuePrediction, "预测市场握手失败", err)
	}
	return nil
}

// ExecuteTrade 下单。buy/sell 直接映射为 CLOB 方向，
// swap 不属于预测市场语义。
func (a *Adapter) ExecuteTrade(ctx context.Context, req trade.Request) (trade.Result, error) {
	if req.Kind == trade.KindSwap {
		err := venue.NewError(venue.KindRejected, trade.VenuePrediction, "预测市场不支持 swap")
		return a.failed(err), err
	}

	order, err := a.client.PlaceOrder(ctx, req.Symbol, string(req.Kind), req.Amount, req.Price, req.Slippage)
	if err != nil {
		classified := a.classify(err, "下单失败")
		return a.failed(classified), classified
	}

	a.logger.Info("预测市场订单已提交",
		zap.String("market", req.Symbol),
		zap.String("order_id", order.OrderID),
		zap.String("status", order.Status),
	)

	return a.toResult(order), nil
}

// GetBalance 查询账户余额。
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

// GetPrice 查询市场中间价。
func (a *Adapter) GetPrice(ctx context.Context, symbol string) (float64, error) {
	price, err := a.client.GetMidPrice(ctx, symbol)
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

// toResult 把场所订单归一化为标准交易结果。
func (a *Adapter) toResult(order Order) trade.Result {
	result := trade.Result{
		Venue:          trade.VenuePrediction,
		TxRef:          order.OrderID,
		ExecutedAmount: order.Filled,
		ExecutedPrice:  order.AvgPrice,
		Fee:            order.Fee,
		Timestamp:      time.Now().UTC(),
	}

	switch strings.ToLower(order.Status) {
	case "filled", "matched":
		result.Status = trade.StatusCompleted
		if result.ExecutedAmount == 0 {
			result.ExecutedAmount = order.Size
		}
		if result.ExecutedPrice == 0 {
			result.ExecutedPrice = order.Price
		}
	case "canceled", "cancelled":
		result.Status = trade.StatusCancelled
	case "rejected":
		result.Status = trade.StatusFailed
		result.Error = "订单被场所拒绝"
	case "live", "open":
		result.Status = trade.StatusExecuting
	default:
		result.Status = trade.StatusPending
	}
	return result
}

func (a *Adapter) failed(err error) trade.Result {
	return trade.Result{
		Venue:     trade.VenuePrediction,
		Status:    trade.StatusFailed,
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	}
}

func (a *Adapter) classify(err error, reason string) error {
	if venue.KindOf(err) != "" {
		return err
	}
	return venue.WrapError(venue.KindVenueUnavailable, trade.VenuePrediction, reason, err)
}
