package trade

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Venue 标识一个受支持的交易场所。
type Venue string

const (
	// VenueDEX 为链上聚合器类 DEX（Jupiter 风格）。
	VenueDEX Venue = "dex"
	// VenuePrediction 为预测市场平台（Polymarket 风格）。
	VenuePrediction Venue = "prediction-market"
	// VenueEvent 为事件合约交易所（Kalshi 风格）。
	VenueEvent Venue = "event-contract"
)

// AllVenues 返回全部受支持的场所列表。
func AllVenues() []Venue {
	return []Venue{VenueDEX, VenuePrediction, VenueEvent}
}

// ParseVenue 将字符串解析为 Venue。
func ParseVenue(raw string) (Venue, error) {
	switch Venue(strings.ToLower(strings.TrimSpace(raw))) {
	case VenueDEX:
		return VenueDEX, nil
	case VenuePrediction:
		return VenuePrediction, nil
	case VenueEvent:
		return VenueEvent, nil
	default:
		return "", fmt.Errorf("不支持的交易场所: %q", raw)
	}
}

// Kind 表示交易方向类型。
type Kind string

const (
	KindBuy  Kind = "buy"
	KindSell Kind = "sell"
	KindSwap Kind = "swap"
)

// ParseKind 将字符串解析为 Kind。
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindBuy:
		return KindBuy, nil
	case KindSell:
		return KindSell, nil
	case KindSwap:
		return KindSwap, nil
	default:
		return "", fmt.Errorf("不支持的交易类型: %q", raw)
	}
}

// Status 表示一笔交易的执行状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal 判断状态是否为终态。终态之后结果不再变化。
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Request 为标准化的交易请求。创建后不可变，进入路由前没有身份。
type Request struct {
	Venue    Venue             `json:"venue"`
	Kind     Kind              `json:"kind"`
	Symbol   string            `json:"symbol"`
	Amount   float64           `json:"amount"`
	Price    float64           `json:"price,omitempty"`
	Slippage float64           `json:"slippage"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate 校验请求字段合法性。
func (r Request) Validate() error {
	if _, err := ParseVenue(string(r.Venue)); err != nil {
		return err
	}
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(r.Symbol) == "" {
		return errors.New("symbol 不能为空")
	}
	if r.Amount <= 0 {
		return fmt.Errorf("amount 必须为正数，当前为 %f", r.Amount)
	}
	if r.Price < 0 {
		return fmt.Errorf("price 不能为负数，当前为 %f", r.Price)
	}
	if r.Slippage < 0 || r.Slippage > 1 {
		return fmt.Errorf("slippage 必须位于 [0,1]，当前为 %f", r.Slippage)
	}
	return nil
}

// Result 为标准化的交易结果。TradeID 由路由层生成；
// 状态进入终态后不再被修改。
type Result struct {
	TradeID        string    `json:"trade_id"`
	Venue          Venue     `json:"venue"`
	Status         Status    `json:"status"`
	TxRef          string    `json:"tx_ref,omitempty"`
	ExecutedAmount float64   `json:"executed_amount,omitempty"`
	ExecutedPrice  float64   `json:"executed_price,omitempty"`
	Fee            float64   `json:"fee,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Error          string    `json:"error,omitempty"`
}

// Balance 表示单一场所内资产符号到数量的映射。
// 核心层按需读取，不跨调用缓存。
type Balance map[string]float64

// Portfolio 描述风险评估所需的当前资产组合快照。
type Portfolio struct {
	// TotalValue 为组合总市值（计价货币）。
	TotalValue float64 `json:"total_value"`
	// Positions 为符号到持仓数量的映射。
	Positions map[string]float64 `json:"positions,omitempty"`
	// Prices 为符号到最近已知价格的映射。
	Prices map[string]float64 `json:"prices,omitempty"`
}

// LastPrice 返回符号的最近已知价格，未知时返回 0。
func (p Portfolio) LastPrice(symbol string) float64 {
	if p.Prices == nil {
		return 0
	}
	return p.Prices[symbol]
}

// Credentials 为场所专属的私密凭据集合。
// 核心层仅在构造适配器时短暂持有引用，从不持久化。
type Credentials struct {
	APIKey     string `json:"api_key,omitempty" mapstructure:"api_key"`
	APISecret  string `json:"api_secret,omitempty" mapstructure:"api_secret"`
	Passphrase string `json:"passphrase,omitempty" mapstructure:"passphrase"`
	PrivateKey string `json:"private_key,omitempty" mapstructure:"private_key"`
	RPCURL     string `json:"rpc_url,omitempty" mapstructure:"rpc_url"`
	Wallet     string `json:"wallet_address,omitempty" mapstructure:"wallet_address"`
	BaseURL    string `json:"base_url,omitempty" mapstructure:"base_url"`
}
