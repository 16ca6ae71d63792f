package dispatch

import "net/http"

// ErrorKind 转发失败类别
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"         // 请求参数或内容不合法
	KindAccessDenied      ErrorKind = "access_denied"      // 模型访问权限不足
	KindRateLimited       ErrorKind = "rate_limited"       // 触发限流
	KindNoCapacity        ErrorKind = "no_capacity"        // 没有可用渠道
	KindInsufficientCoins ErrorKind = "insufficient_coins" // 金币余额不足
	KindNotFound          ErrorKind = "not_found"          // 模型或会话不存在
	KindUpstream          ErrorKind = "upstream"           // 上游请求失败
	KindInternal          ErrorKind = "internal"           // 内部错误
)

// Error 转发错误
// 同步阶段的失败以该类型返回，交给 HTTP 层映射状态码
type Error struct {
	Kind       ErrorKind
	Message    string
	RetryAfter int // 秒，仅 KindRateLimited 有效
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus 映射到 HTTP 状态码
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAccessDenied:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNoCapacity:
		return http.StatusServiceUnavailable
	case KindInsufficientCoins:
		return http.StatusPaymentRequired
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// newError 构造转发错误
func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
