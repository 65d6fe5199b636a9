package prediction

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
	"github.com/SyrupLabs-code/Syrup/internal/venue"
)

const (
	defaultBaseURL = "https://clob.polymarket.com"
	defaultRPS     = 4
)

// Order 为预测市场订单的场所侧表示。
type Order struct {
	OrderID  string  `json:"order_id"`
	Market   string  `json:"market"`
	Side     string  `json:"side"`
	Size     float64 `json:"size"`
	Price    float64 `json:"price"`
	Fee      float64 `json:"fee"`
	Status   string  `json:"status"`
	Filled   float64 `json:"filled"`
	AvgPrice float64 `json:"avg_price"`
}

// restClient 基于 CLOB REST API 实现 marketClient。
// 每个请求携带 HMAC-SHA256 签名头。
type restClient struct {
	rest       *venue.RestClient
	apiKey     string
	secret     string
	passphrase string
	now        func() time.Time
}

func newRestClient(creds trade.Credentials) *restClient {
	base := creds.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &restClient{
		rest:       venue.NewRestClient(base, defaultRPS, 0),
		apiKey:     creds.APIKey,
		secret:     creds.APISecret,
		passphrase: creds.Passphrase,
		now:        time.Now,
	}
}

// sign 生成 timestamp+method+path+body 的 HMAC 签名。
func (c *restClient) sign(timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(timestamp + method + path + body))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *restClient) headers(method, path string, body interface{}) (map[string]string, error) {
	payload := ""
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("序列化签名载荷失败: %w", err)
		}
		payload = string(raw)
	}

	ts := strconv.FormatInt(c.now().Unix(), 10)
	return map[string]string{
		"POLY-API-KEY":    c.apiKey,
		"POLY-SIGNATURE":  c.sign(ts, method, path, payload),
		"POLY-TIMESTAMP":  ts,
		"POLY-PASSPHRASE": c.passphrase,
	}, nil
}

func (c *restClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	headers, err := c.headers(method, path, body)
	if err != nil {
		return err
	}

	status, raw, err := c.rest.DoJSON(ctx, method, path, headers, body, out)
	if err != nil {
		return err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		kind := venue.RefineBody(venue.ClassifyStatus(status), raw)
		if kind == "" {
			kind = venue.KindVenueUnavailable
		}
		return venue.NewError(kind, trade.VenuePrediction,
			fmt.Sprintf("%s %s status=%d body=%s", method, path, status, string(raw)))
	}
	return nil
}

func (c *restClient) ServerTime(ctx context.Context) error {
	var resp struct {
		Timestamp int64 `json:"timestamp"`
	}
	return c.do(ctx, http.MethodGet, "/time", nil, &resp)
}

func (c *restClient) PlaceOrder(ctx context.Context, market, side string, size, price, slippage float64) (Order, error) {
	body := map[string]interface{}{
		"market":   market,
		"side":     side,
		"size":     size,
		"slippage": slippage,
	}
	orderType := "market"
	if price > 0 {
		orderType = "limit"
		body["price"] = price
	}
	body["type"] = orderType

	var resp struct {
		Order Order  `json:"order"`
		Error string `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", body, &resp); err != nil {
		return Order{}, err
	}
	if resp.Order.OrderID == "" {
		reason := resp.Error
		if reason == "" {
			reason = "场所未返回订单"
		}
		return Order{}, venue.NewError(venue.KindRejected, trade.VenuePrediction, reason)
	}
	return resp.Order, nil
}

func (c *restClient) GetBalances(ctx context.Context) (map[string]float64, error) {
	var resp struct {
		Balances map[string]float64 `json:"balances"`
	}
	if err := c.do(ctx, http.MethodGet, "/balances", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}

func (c *restClient) GetMidPrice(ctx context.Context, market string) (float64, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(market))

	var resp struct {
		Market struct {
			MidPrice  float64 `json:"mid_price"`
			LastPrice float64 `json:"last_price"`
		} `json:"market"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	if resp.Market.MidPrice > 0 {
		return resp.Market.MidPrice, nil
	}
	return resp.Market.LastPrice, nil
}

func (c *restClient) GetOrder(ctx context.Context, orderID string) (Order, error) {
	path := fmt.Sprintf("/orders/%s", url.PathEscape(orderID))

	var resp struct {
		Order Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return Order{}, err
	}
	return resp.Order, nil
}

func (c *restClient) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	path := fmt.Sprintf("/orders/%s", url.PathEscape(orderID))

	var resp struct {
		Order Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Order.Status == "canceled" || resp.Order.Status == "cancelled", nil
}
