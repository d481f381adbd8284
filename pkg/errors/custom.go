package errors

/*
	内置常用错误
*/

var (
	// ErrServer 服务器内部错误
	ErrServer = New(KindHandler, "internal server error")
	// ErrBodyTooLarge 请求体超出限制
	ErrBodyTooLarge = New(KindBodyTooLarge, "request body too large")
	// ErrInvalidBody 请求体解析失败
	ErrInvalidBody = New(KindInvalidBody, "invalid request body")
	// ErrRateLimited 请求被限流
	ErrRateLimited = New(KindRateLimited, "rate limit exceeded")
	// ErrNotFound 无匹配路由
	ErrNotFound = New(KindNotFound, "route not found")
	// ErrNotAcceptable 内容协商失败
	ErrNotAcceptable = New(KindNotAcceptable, "not acceptable")
	// ErrUpgradeRejected WebSocket 升级被拒绝
	ErrUpgradeRejected = New(KindUpgradeRejected, "websocket upgrade rejected")
	// ErrUnknownRoute 命名路由不存在
	ErrUnknownRoute = New(KindUnknownRoute, "unknown route name")
)
