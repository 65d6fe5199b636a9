package dex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
	"github.com/SyrupLabs-code/Syrup/internal/venue"
)

const (
	defaultBaseURL = "https://quote-api.jup.ag/v6"
	defaultRPS     = 5
)

// Quote 为聚合器返回的一次兑换报价。
type Quote struct {
	InputSymbol  string  `json:"input_symbol"`
	OutputSymbol string  `json:"output_symbol"`
	InAmount     float64 `json:"in_amount"`
	OutAmount    float64 `json:"out_amount"`
	Price        float64 `json:"price"`
	FeeAmount    float64 `json:"fee_amount"`
	Route        string  `json:"route"`
	SlippageBps  int     `json:"slippage_bps"`
	QuoteID      string  `json:"quote_id"`
}

// SwapOutcome 为一次链上兑换的提交结果。
type SwapOutcome struct {
	Signature string  `json:"signature"`
	Confirmed bool    `json:"confirmed"`
	OutAmount float64 `json:"out_amount"`
	Price     float64 `json:"price"`
	Fee       float64 `json:"fee"`
}

// TxStatus 表示链上交易确认状态。
type TxStatus struct {
	Signature string `json:"signature"`
	Status    string `json:"status"`
	Slot      int64  `json:"slot"`
	Err       string `json:"err"`
}

// restClient 基于聚合器 REST API 实现 swapClient。
type restClient struct {
	rest   *venue.RestClient
	wallet string
}

func newRestClient(creds trade.Credentials) *restClient {
	base := creds.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &restClient{
		rest:   venue.NewRestClient(base, defaultRPS, 0),
		wallet: creds.Wallet,
	}
}

func (c *restClient) Health(ctx context.Context) error {
	status, _, err := c.rest.DoJSON(ctx, http.MethodGet, "/health", nil, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("聚合器健康检查返回 %d", status)
	}
	return nil
}

func (c *restClient) GetQuote(ctx context.Context, symbol string, amount, slippage float64) (Quote, error) {
	in, out, err := splitPair(symbol)
	if err != nil {
		return Quote{}, err
	}

	path := fmt.Sprintf("/quote?inputMint=%s&outputMint=%s&amount=%f&slippageBps=%d",
		url.QueryEscape(in), url.QueryEscape(out), amount, int(slippage*10000))

	var quote Quote
	status, raw, err := c.rest.DoJSON(ctx, http.MethodGet, path, nil, nil, &quote)
	if err != nil {
		return Quote{}, err
	}
	if status != http.StatusOK {
		return Quote{}, httpError(status, raw, "获取报价失败")
	}
	quote.InputSymbol = in
	quote.OutputSymbol = out
	return quote, nil
}

func (c *restClient) ExecuteSwap(ctx context.Context, quote Quote) (SwapOutcome, error) {
	body := map[string]interface{}{
		"quoteId":    quote.QuoteID,
		"userWallet": c.wallet,
	}

	var outcome SwapOutcome
	status, raw, err := c.rest.DoJSON(ctx, http.MethodPost, "/swap", nil, body, &outcome)
	if err != nil {
		return SwapOutcome{}, err
	}
	if status != http.StatusOK {
		return SwapOutcome{}, httpError(status, raw, "提交兑换失败")
	}
	return outcome, nil
}

func (c *restClient) GetBalances(ctx context.Context) (map[string]float64, error) {
	path := fmt.Sprintf("/balances/%s", url.PathEscape(c.wallet))

	var resp struct {
		Balances map[string]float64 `json:"balances"`
	}
	status, raw, err := c.rest.DoJSON(ctx, http.MethodGet, path, nil, nil, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, httpError(status, raw, "查询余额失败")
	}
	return resp.Balances, nil
}

func (c *restClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	in, out, err := splitPair(symbol)
	if err != nil {
		return 0, err
	}

	path := fmt.Sprintf("/price?ids=%s&vsToken=%s", url.QueryEscape(in), url.QueryEscape(out))

	var resp struct {
		Data map[string]struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}
	status, raw, err := c.rest.DoJSON(ctx, http.MethodGet, path, nil, nil, &resp)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, httpError(status, raw, "查询价格失败")
	}

	entry, ok := resp.Data[in]
	if !ok {
		return 0, fmt.Errorf("价格响应缺少符号 %s", in)
	}
	return entry.Price, nil
}

func (c *restClient) GetTxStatus(ctx context.Context, signature string) (TxStatus, error) {
	path := fmt.Sprintf("/tx/%s", url.PathEscape(signature))

	var st TxStatus
	status, raw, err := c.rest.DoJSON(ctx, http.MethodGet, path, nil, nil, &st)
	if err != nil {
		return TxStatus{}, err
	}
	if status != http.StatusOK {
		return TxStatus{}, httpError(status, raw, "查询交易状态失败")
	}
	return st, nil
}

// httpError 把非 2xx 响应映射为带类别的场所错误。
func httpError(status int, raw []byte, action string) error {
	kind := venue.RefineBody(venue.ClassifyStatus(status), raw)
	if kind == "" {
		kind = venue.KindVenueUnavailable
	}
	return venue.NewError(kind, trade.VenueDEX,
		fmt.Sprintf("%s status=%d body=%s", action, status, string(raw)))
}

// splitPair 将 "SOL/USDC" 形式的交易对拆分为输入/输出符号。
func splitPair(symbol string) (string, string, error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", venue.NewError(venue.KindInvalidSymbol, trade.VenueDEX,
			fmt.Sprintf("非法交易对符号: %q", symbol))
	}
	return parts[0], parts[1], nil
}
