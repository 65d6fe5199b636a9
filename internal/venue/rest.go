package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultBurst          = 5
)

// RestClient 为带限速的 REST 客户端，供各场所客户端复用。
// 限速在客户端一侧执行，避免触发场所侧的频率限制。
type RestClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewRestClient 创建限速 REST 客户端。
func NewRestClient(baseURL string, requestsPerSecond float64, timeout time.Duration) *RestClient {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &RestClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout + 5*time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), defaultBurst),
		timeout: timeout,
	}
}

// BaseURL 返回客户端的基础地址。
func (c *RestClient) BaseURL() string {
	return c.baseURL
}

// DoJSON 发送 JSON 请求并解析响应体。headers 会覆盖默认头；
// out 为 nil 时丢弃响应体。返回 HTTP 状态码与原始响应字节。
func (c *RestClient) DoJSON(ctx context.Context, method, path string, headers map[string]string, body interface{}, out interface{}) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("等待限速器失败: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("序列化请求体失败: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("请求 %s %s 失败: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, raw, fmt.Errorf("解析响应体失败: %w", err)
		}
	}

	return resp.StatusCode, raw, nil
}

// RefineBody 根据响应体文本细化 4xx 类错误。场所在余额不足、
// 滑点超限、符号非法时通常返回同一个状态码，只能靠文案区分。
func RefineBody(kind Kind, body []byte) Kind {
	if kind != KindRejected {
		return kind
	}
	text := strings.ToLower(string(body))
	switch {
	case strings.Contains(text, "insufficient"):
		return KindInsufficientFunds
	case strings.Contains(text, "slippage"):
		return KindSlippageExceeded
	case strings.Contains(text, "unknown symbol"),
		strings.Contains(text, "invalid symbol"),
		strings.Contains(text, "market not found"),
		strings.Contains(text, "unknown market"),
		strings.Contains(text, "unknown ticker"):
		return KindInvalidSymbol
	default:
		return kind
	}
}

// ClassifyStatus 按通用 HTTP 语义给出默认错误类别。
// 适配器可在调用后按场所语义覆盖具体类别。
func ClassifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindInvalidCredentials
	case status == http.StatusNotFound:
		return KindInvalidSymbol
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return KindVenueUnavailable
	case status >= http.StatusBadRequest:
		return KindRejected
	default:
		return ""
	}
}
