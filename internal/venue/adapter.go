package venue

import (
	"context"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

// Adapter 为每个交易场所必须实现的能力集合。
// 实现负责把标准化请求翻译为场所专属调用，并把响应
// 归一化到 trade 包的类型与本包的错误分类。
type Adapter interface {
	// Venue 返回适配器所属的场所标识。
	Venue() trade.Venue

	// Ping 执行场所握手以校验连通性与凭据有效性，
	// 注册时在适配器可见之前调用。
	Ping(ctx context.Context) error

	// ExecuteTrade 执行交易。调用方视角为同步，实现内部
	// 可等待网络确认；必须返回终态或 pending 的结果，
	// 绝不静默丢弃已提交的订单。
	ExecuteTrade(ctx context.Context, req trade.Request) (trade.Result, error)

	// GetBalance 查询余额。symbol 为空时返回全部资产。
	GetBalance(ctx context.Context, symbol string) (trade.Balance, error)

	// GetPrice 查询符号的当前价格。
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// GetOrderStatus 查询订单状态。
	GetOrderStatus(ctx context.Context, orderID string) (trade.Result, error)

	// CancelOrder 撤销挂单，返回是否成功。
	CancelOrder(ctx context.Context, orderID string) (bool, error)

	// Close 释放底层连接。注册表在替换或注销后调用。
	Close() error
}

// CredentialStore 为外部凭据存储能力。核心层仅在注册
// 适配器时查询一次，从不持有返回值之外的凭据状态。
type CredentialStore interface {
	// Lookup 查询场所凭据，未配置时返回 ErrCredentialsNotFound。
	Lookup(v trade.Venue) (trade.Credentials, error)
}
