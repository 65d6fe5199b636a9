package risk

import (
	"fmt"

	"github.com/SyrupLabs-code/Syrup/internal/agent"
	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

// DenyReason 标识风控拒绝的具体规则。
type DenyReason string

const (
	ReasonVenueNotAllowed       DenyReason = "venue_not_allowed"
	ReasonPositionLimitExceeded DenyReason = "position_limit_exceeded"
	ReasonRiskLimitExceeded     DenyReason = "risk_limit_exceeded"
)

// Verdict 为一次风控评估的结论。
type Verdict struct {
	Allowed bool
	Reason  DenyReason
	Detail  string
}

// Evaluate 以纯函数方式评估一笔拟议交易是否符合代理的风控约束。
// 规则按序应用，命中即止：
//  1. 场所不在允许列表 → VenueNotAllowed；
//  2. 名义金额超过最大仓位 → PositionLimitExceeded；
//  3. 最坏滑点损失占组合比例超过风险上限 → RiskLimitExceeded。
//
// 函数无副作用且确定，风控检查必须先于任何场所调用。
func Evaluate(policy agent.Policy, req trade.Request, portfolio trade.Portfolio) Verdict {
	if !policy.AllowsVenue(req.Venue) {
		return Verdict{
			Reason: ReasonVenueNotAllowed,
			Detail: fmt.Sprintf("代理 %q 未被允许在场所 %s 交易", policy.Name, req.Venue),
		}
	}

	price := req.Price
	if price <= 0 {
		price = portfolio.LastPrice(req.Symbol)
	}

	notional := req.Amount * price
	if price <= 0 {
		// 无任何已知价格时按数量本身保守估计名义金额。
		notional = req.Amount
	}

	if notional > policy.MaxPositionSize {
		return Verdict{
			Reason: ReasonPositionLimitExceeded,
			Detail: fmt.Sprintf("名义金额 %.2f 超过最大仓位 %.2f", notional, policy.MaxPositionSize),
		}
	}

	if portfolio.TotalValue > 0 {
		worstCaseLoss := notional * req.Slippage
		lossFraction := worstCaseLoss / portfolio.TotalValue
		if lossFraction > policy.RiskLimit {
			return Verdict{
				Reason: ReasonRiskLimitExceeded,
				Detail: fmt.Sprintf("最坏损失占组合 %.4f 超过风险上限 %.4f", lossFraction, policy.RiskLimit),
			}
		}
	}

	return Verdict{Allowed: true}
}
