package ws

import "errors"

// 错误定义
var (
	// 握手相关错误
	ErrMissingKey        = errors.New("ws: missing Sec-WebSocket-Key")
	ErrOriginNotAllowed  = errors.New("ws: origin not allowed")
	ErrHijackUnsupported = errors.New("ws: response writer does not support hijacking")

	// 连接相关错误
	ErrConnectionClosed = errors.New("ws: connection closed")
	ErrConnNotFound     = errors.New("ws: connection not found")

	// 帧相关错误
	ErrMalformedFrame = errors.New("ws: malformed frame")
	ErrFrameTooLarge  = errors.New("ws: frame exceeds size limit")
)

// 关闭状态码，RFC 6455 §7.4.1
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseProtocolError   = 1002
	CloseUnsupportedData = 1003
	CloseNoStatus        = 1005
	CloseAbnormal        = 1006
	CloseMessageTooBig   = 1009
	CloseInternalError   = 1011
)
