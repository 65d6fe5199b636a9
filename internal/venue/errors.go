package venue

import (
	"errors"
	"fmt"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

// Kind 划分统一的错误类别。每个适配器必须把场所特有的
// 失败映射进该分类，路由层据此决定是否重试。
type Kind string

const (
	KindUnknownVenue       Kind = "unknown_venue"
	KindConnectivity       Kind = "connectivity_error"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindInvalidSymbol      Kind = "invalid_symbol"
	KindSlippageExceeded   Kind = "slippage_exceeded"
	KindVenueUnavailable   Kind = "venue_unavailable"
	KindRejected           Kind = "rejected"
	KindTimeout            Kind = "timeout"
	KindProvider           Kind = "provider_error"
)

// Error 携带错误类别、来源场所与可读原因。
type Error struct {
	Kind   Kind
	Venue  trade.Venue
	Reason string
	Err    error
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	msg := fmt.Sprintf("venue %s: %s", e.Kind, e.Reason)
	if e.Venue != "" {
		msg = fmt.Sprintf("venue %s [%s]: %s", e.Kind, e.Venue, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap 返回底层错误。
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError 构造携带分类信息的错误。
func NewError(kind Kind, v trade.Venue, reason string) *Error {
	return &Error{Kind: kind, Venue: v, Reason: reason}
}

// WrapError 在保留底层错误的同时附加分类信息。
func WrapError(kind Kind, v trade.Venue, reason string, err error) *Error {
	return &Error{Kind: kind, Venue: v, Reason: reason, Err: err}
}

// KindOf 提取错误类别，无法识别时返回空串。
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// IsKind 判断错误是否属于指定类别。
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable 判断错误是否可重试。仅瞬时的场所不可用错误
// 可以重试；业务拒绝或歧义的部分成交不允许重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == KindVenueUnavailable
}
