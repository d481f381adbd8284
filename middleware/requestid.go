package middleware

import (
	"github.com/google/uuid"

	"github.com/tokmz/dao"
)

// RequestIDHeader 请求标识头名称
const RequestIDHeader = "X-Request-ID"

// RequestID 创建请求标识中间件
// 请求未携带标识时生成 uuid v4；标识同时写入响应头、
// Context 与请求上下文（日志按上下文自动提取）
func RequestID() dao.MiddlewareFunc {
	return func(c *dao.Context) (dao.Result, error) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.SetRequestID(id)
		c.Header(RequestIDHeader, id)
		return dao.Result{}, nil
	}
}
