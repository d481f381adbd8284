package logger

import "context"

// contextKey 上下文键类型，避免与其他包冲突
type contextKey string

const (
	traceIDKey   contextKey = "trace_id"
	requestIDKey contextKey = "request_id"
	connIDKey    contextKey = "conn_id"
)

// WithTraceID 将 TraceID 写入上下文
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFrom 从上下文读取 TraceID
func TraceIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestID 将请求 ID 写入上下文
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFrom 从上下文读取请求 ID
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithConnID 将 WebSocket 连接 ID 写入上下文
func WithConnID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, connIDKey, connID)
}

// ConnIDFrom 从上下文读取 WebSocket 连接 ID
func ConnIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(connIDKey).(string); ok {
		return v
	}
	return ""
}
