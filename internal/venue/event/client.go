package event

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sync"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
	"github.com/SyrupLabs-code/Syrup/internal/venue"
)

const (
	defaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"
	defaultRPS     = 4
)

// Order 为事件合约订单的场所侧表示。价格字段以美分计。
type Order struct {
	OrderID     string `json:"order_id"`
	Ticker      string `json:"ticker"`
	Action      string `json:"action"`
	Count       int    `json:"count"`
	FilledCount int    `json:"filled_count"`
	PriceCents  int    `json:"yes_price"`
	FeeCents    int    `json:"fee"`
	Status      string `json:"status"`
}

// restClient 基于事件交易所 REST API 实现 eventClient。
// 登录换取 bearer token，过期后在下一次 401 时重新登录。
type restClient struct {
	rest   *venue.RestClient
	apiKey string
	secret string

	mu    sync.Mutex
	token string
}

func newRestClient(creds trade.Credentials) *restClient {
	base := creds.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &restClient{
		rest:   venue.NewRestClient(base, defaultRPS, 0),
		apiKey: creds.APIKey,
		secret: creds.PrivateKey,
	}
}

// Login 登录并缓存访问令牌。
func (c *restClient) Login(ctx context.Context) error {
	body := map[string]string{
		"email":    c.apiKey,
		"password": c.secret,
	}

	var resp struct {
		Token string `json:"token"`
	}
	status, raw, err := c.rest.DoJSON(ctx, http.MethodPost, "/login", nil, body, &resp)
	if err != nil {
		return venue.WrapError(venue.KindConnectivity, trade.VenueEvent, "登录请求失败", err)
	}
	if status != http.StatusOK || resp.Token == "" {
		return venue.NewError(venue.KindInvalidCredentials, trade.VenueEvent,
			fmt.Sprintf("登录被拒绝 status=%d body=%s", status, string(raw)))
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

func (c *restClient) authHeaders() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]string{"Authorization": "Bearer " + c.token}
}

func (c *restClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	c.mu.Lock()
	hasToken := c.token != ""
	c.mu.Unlock()
	if !hasToken {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	status, raw, err := c.rest.DoJSON(ctx, method, path, c.authHeaders(), body, out)
	if err != nil {
		return err
	}

	// token 过期时重新登录并重放一次。
	if status == http.StatusUnauthorized {
		if err := c.Login(ctx); err != nil {
			return err
		}
		status, raw, err = c.rest.DoJSON(ctx, method, path, c.authHeaders(), body, out)
		if err != nil {
			return err
		}
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		kind := venue.RefineBody(venue.ClassifyStatus(status), raw)
		if kind == "" {
			kind = venue.KindVenueUnavailable
		}
		return venue.NewError(kind, trade.VenueEvent,
			fmt.Sprintf("%s %s status=%d body=%s", method, path, status, string(raw)))
	}
	return nil
}

func (c *restClient) PlaceOrder(ctx context.Context, ticker, action string, count int, priceCents int) (Order, error) {
	body := map[string]interface{}{
		"ticker": ticker,
		"action": action,
		"count":  count,
		"type":   "market",
		"side":   "yes",
	}
	if priceCents > 0 {
		body["type"] = "limit"
		body["yes_price"] = priceCents
	}

	var resp struct {
		Order Order  `json:"order"`
		Error string `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, "/portfolio/orders", body, &resp); err != nil {
		return Order{}, err
	}
	if resp.Order.OrderID == "" {
		reason := resp.Error
		if reason == "" {
			reason = "场所未返回订单"
		}
		return Order{}, venue.NewError(venue.KindRejected, trade.VenueEvent, reason)
	}
	return resp.Order, nil
}

func (c *restClient) GetBalanceUSD(ctx context.Context) (float64, error) {
	var resp struct {
		BalanceCents int64 `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, "/portfolio/balance", nil, &resp); err != nil {
		return 0, err
	}
	return float64(resp.BalanceCents) / 100, nil
}

func (c *restClient) GetLastPrice(ctx context.Context, ticker string) (float64, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(ticker))

	var resp struct {
		Market struct {
			LastPriceCents int `json:"last_price"`
		} `json:"market"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return float64(resp.Market.LastPriceCents) / 100, nil
}

func (c *restClient) GetOrder(ctx context.Context, orderID string) (Order, error) {
	path := fmt.Sprintf("/portfolio/orders/%s", url.PathEscape(orderID))

	var resp struct {
		Order Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return Order{}, err
	}
	return resp.Order, nil
}

func (c *restClient) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	path := fmt.Sprintf("/portfolio/orders/%s", url.PathEscape(orderID))

	var resp struct {
		Order Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Order.Status == "canceled", nil
}

// toCents 把美元价格转换为整数美分。
func toCents(price float64) int {
	return int(math.Round(price * 100))
}
