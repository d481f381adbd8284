package errors

import "net/http"

// Kind 错误分类
// 调度器根据 Kind 将错误映射为响应状态码
type Kind int

const (
	// KindHandler 处理器或中间件抛出的未分类错误
	KindHandler Kind = iota
	// KindBodyTooLarge 请求体超出限制
	KindBodyTooLarge
	// KindInvalidBody 请求体无法解析
	KindInvalidBody
	// KindRateLimited 触发限流
	KindRateLimited
	// KindNotFound 无匹配路由
	KindNotFound
	// KindNotAcceptable 内容协商失败
	KindNotAcceptable
	// KindUpgradeRejected WebSocket 握手前置条件不满足
	// 该类错误不产生 JSON 响应体，仅以状态行终止原始连接
	KindUpgradeRejected
	// KindUnknownRoute 命名路由不存在
	KindUnknownRoute
)

// Status 返回该分类的默认 HTTP 状态码
func (k Kind) Status() int {
	switch k {
	case KindBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindInvalidBody:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound, KindUnknownRoute:
		return http.StatusNotFound
	case KindNotAcceptable:
		return http.StatusNotAcceptable
	case KindUpgradeRejected:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// String 实现 fmt.Stringer 接口
func (k Kind) String() string {
	switch k {
	case KindHandler:
		return "handler_error"
	case KindBodyTooLarge:
		return "body_too_large"
	case KindInvalidBody:
		return "invalid_body"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindNotAcceptable:
		return "not_acceptable"
	case KindUpgradeRejected:
		return "upgrade_rejected"
	case KindUnknownRoute:
		return "unknown_route"
	default:
		return "unknown"
	}
}
