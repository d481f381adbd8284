package dao

import (
	"bufio"
	"context"
	"encoding/json"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/tokmz/dao/pkg/logger"
)

// ResponseWriter 响应写入器
// 在标准接口上增加写入状态观测，供访问日志与错误兜底判断
type ResponseWriter interface {
	http.ResponseWriter

	// Status 已写出的状态码，未写出时为 0
	Status() int

	// Size 已写出的正文字节数
	Size() int

	// Written 是否已写出响应头
	Written() bool
}

// responseWriter ResponseWriter 实现
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func (w *responseWriter) Status() int { return w.status }

func (w *responseWriter) Size() int { return w.size }

func (w *responseWriter) Written() bool { return w.status != 0 }

// Flush 透传底层 Flusher
func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack 透传底层 Hijacker
// 注意：WebSocket 升级在进入调度流程前已分流，不经过此处
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Context 请求上下文，贯穿一次调度的全部阶段
type Context struct {
	Request *http.Request
	Writer  ResponseWriter

	engine        *Engine
	route         *Route
	params        map[string]string
	body          map[string]any
	raw           []byte
	version       string
	requestID     string
	negotiatedRes *Result

	mu   sync.RWMutex
	keys map[string]any
}

// newContext 创建请求上下文
func newContext(w ResponseWriter, r *http.Request, e *Engine) *Context {
	return &Context{Request: r, Writer: w, engine: e}
}

// ============ 请求访问方法 ============

// Method 请求方法
func (c *Context) Method() string { return c.Request.Method }

// Path 请求路径
func (c *Context) Path() string { return c.Request.URL.Path }

// FullPath 命中路由的模式路径（如 /users/:id(\d+)），未命中时为空
func (c *Context) FullPath() string {
	if c.route == nil {
		return ""
	}
	return c.route.Path
}

// RouteName 命中路由的注册名，未命名时为空
func (c *Context) RouteName() string {
	if c.route == nil {
		return ""
	}
	return c.route.Name
}

// Version 本次请求解析出的 API 版本，未启用版本路由时为空
func (c *Context) Version() string { return c.version }

// Param 获取路径参数
func (c *Context) Param(key string) string { return c.params[key] }

// Params 获取全部路径参数的拷贝
func (c *Context) Params() map[string]string {
	out := make(map[string]string, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// Query 获取 URL 查询参数
func (c *Context) Query(key string) string {
	return c.Request.URL.Query().Get(key)
}

// DefaultQuery 获取 URL 查询参数（带默认值）
func (c *Context) DefaultQuery(key, defaultValue string) string {
	if v, ok := c.GetQuery(key); ok {
		return v
	}
	return defaultValue
}

// GetQuery 获取 URL 查询参数（返回是否存在）
func (c *Context) GetQuery(key string) (string, bool) {
	vs, ok := c.Request.URL.Query()[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// QueryInt 获取整数查询参数，缺失或非法时返回默认值
func (c *Context) QueryInt(key string, defaultValue int) int {
	v, ok := c.GetQuery(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// QueryBool 获取布尔查询参数，缺失或非法时返回默认值
func (c *Context) QueryBool(key string, defaultValue bool) bool {
	v, ok := c.GetQuery(key)
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetHeader 获取请求头
func (c *Context) GetHeader(key string) string {
	return c.Request.Header.Get(key)
}

// Header 设置响应头，value 为空时删除该头
func (c *Context) Header(key, value string) {
	if value == "" {
		c.Writer.Header().Del(key)
		return
	}
	c.Writer.Header().Set(key, value)
}

// ContentType 请求的 Content-Type（不含参数）
func (c *Context) ContentType() string {
	ct := c.Request.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.TrimSpace(strings.Split(ct, ";")[0])
}

// Cookie 获取请求 Cookie 值
func (c *Context) Cookie(name string) (string, error) {
	ck, err := c.Request.Cookie(name)
	if err != nil {
		return "", err
	}
	return ck.Value, nil
}

// SetCookie 设置响应 Cookie
func (c *Context) SetCookie(cookie *http.Cookie) {
	http.SetCookie(c.Writer, cookie)
}

// ClientIP 解析客户端 IP
// 依次取 X-Forwarded-For 首个地址、X-Real-IP、RemoteAddr
func (c *Context) ClientIP() string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

// RequestID 本次请求的标识，未注入时为空
func (c *Context) RequestID() string { return c.requestID }

// SetRequestID 注入请求标识并写入请求上下文，供日志提取
func (c *Context) SetRequestID(id string) {
	c.requestID = id
	ctx := logger.WithRequestID(c.Request.Context(), id)
	c.Request = c.Request.WithContext(ctx)
}

// Context 返回请求的 context.Context
func (c *Context) Context() context.Context {
	return c.Request.Context()
}

// SetRequestContext 更新请求的 Context（用于注入 Span、超时等）
func (c *Context) SetRequestContext(ctx context.Context) {
	c.Request = c.Request.WithContext(ctx)
}

// ============ 请求体方法 ============

// Body 解析并清洗后的 JSON 请求体
// 非 JSON 或空请求体为一个空对象
func (c *Context) Body() map[string]any {
	if c.body == nil {
		return map[string]any{}
	}
	return c.body
}

// BodyValue 取请求体顶层字段
func (c *Context) BodyValue(key string) (any, bool) {
	v, ok := c.Body()[key]
	return v, ok
}

// Raw 原始请求体字节（已受大小限制约束，未经清洗）
func (c *Context) Raw() []byte { return c.raw }

// BindJSON 将清洗后的请求体绑定到目标结构
func (c *Context) BindJSON(obj any) error {
	b, err := json.Marshal(c.Body())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, obj)
}

// ============ 上下文键值方法 ============

// Set 设置上下文键值对
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	if c.keys == nil {
		c.keys = make(map[string]any)
	}
	c.keys[key] = value
	c.mu.Unlock()
}

// Get 获取上下文键值对
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	v, ok := c.keys[key]
	c.mu.RUnlock()
	return v, ok
}

// GetString 获取字符串类型的上下文值
func (c *Context) GetString(key string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt 获取整数类型的上下文值
func (c *Context) GetInt(key string) int {
	if v, ok := c.Get(key); ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}

// GetInt64 获取 int64 类型的上下文值
func (c *Context) GetInt64(key string) int64 {
	if v, ok := c.Get(key); ok {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}

// GetBool 获取布尔类型的上下文值
func (c *Context) GetBool(key string) bool {
	if v, ok := c.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// ============ 直接响应方法 ============

// 以下方法立即写出响应，处理函数使用后应返回 dao.Written()

// Status 写出状态码
func (c *Context) Status(code int) {
	c.Writer.WriteHeader(code)
}

// JSON 写出 JSON 响应
func (c *Context) JSON(code int, obj any) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return c.writeBody(code, contentTypeJSON, b)
}

// String 写出格式化文本响应
func (c *Context) String(code int, format string, values ...any) error {
	return c.writeBody(code, contentTypeText, []byte(sprintf(format, values...)))
}

// HTML 写出 HTML 响应
func (c *Context) HTML(code int, html string) error {
	return c.writeBody(code, contentTypeHTML, []byte(html))
}

// Data 写出任意字节响应
func (c *Context) Data(code int, contentType string, data []byte) error {
	return c.writeBody(code, contentType, data)
}

// Redirect 写出重定向响应
func (c *Context) Redirect(code int, location string) {
	http.Redirect(c.Writer, c.Request, location, code)
}

// writeBody 统一响应写出路径
// Content-Type 未被显式设置时按参数补齐；满足条件时套用 gzip 压缩
func (c *Context) writeBody(status int, contentType string, body []byte) error {
	h := c.Writer.Header()
	if h.Get("Content-Type") == "" && contentType != "" {
		h.Set("Content-Type", contentType)
	}
	if c.engine != nil && c.engine.cfg.Compression &&
		shouldCompress(c.Request, h, len(body)) {
		return writeGzip(c.Writer, status, body)
	}
	c.Writer.WriteHeader(status)
	_, err := c.Writer.Write(body)
	return err
}
