package dao

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tokmz/dao/pkg/errors"
	"github.com/tokmz/dao/pkg/tracing"
)

// ServeHTTP 调度入口，按固定序列处理一次请求：
// 升级分流 → 安全/CORS 头 → 预检应答 → 限流 → 请求体解析清洗 →
// 缓存查询/路由匹配 → 中间件链 → 处理函数 → 响应写出 → 指标记录
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e.isUpgrade(r) {
		e.handleUpgrade(w, r)
		return
	}

	start := time.Now()
	rw := &responseWriter{ResponseWriter: w}
	c := newContext(rw, r, e)

	if e.cfg.Metrics {
		e.metrics.IncRequests()
	}

	var span trace.Span
	if e.traced {
		ctx, s := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer))
		c.SetRequestContext(ctx)
		span = s
		defer span.End()
	}

	e.applySecurityHeaders(rw)

	if e.cfg.CORS.Enabled && r.Method == http.MethodOptions {
		rw.WriteHeader(http.StatusNoContent)
		e.finish(c, start, span, nil)
		return
	}

	if e.limiter != nil {
		if blocked := e.checkRateLimit(c); blocked {
			e.finish(c, start, span, errors.ErrRateLimited)
			return
		}
	}

	if err := e.prepareBody(c); err != nil {
		e.writeError(c, err)
		e.finish(c, start, span, err)
		return
	}

	version, matchPath := "", r.URL.Path
	if e.cfg.Version.Enabled {
		version, matchPath = resolveVersion(r, e.cfg.Version)
	}
	c.version = version

	route, params, ok := e.lookupRoute(r.Method, matchPath, version)
	if !ok {
		err := errors.ErrNotFound
		e.writeError(c, err)
		e.finish(c, start, span, err)
		return
	}
	c.route = route
	c.params = params

	if e.cfg.Metrics {
		e.metrics.RouteMatched(route.Method + " " + route.Path)
		if version != "" {
			e.metrics.VersionServed(version)
		}
	}
	if span != nil {
		span.SetAttributes(
			attribute.String("http.route", route.Path),
			attribute.String("http.method", route.Method),
		)
	}

	res, err := e.runRoute(c, route)
	if err != nil {
		e.handleRouteError(c, route, err)
		e.finish(c, start, span, err)
		return
	}
	if werr := e.writeRouteResult(c, route, res); werr != nil {
		e.log.Warn("写响应失败",
			zap.String("path", r.URL.Path), zap.Error(werr))
	}
	e.finish(c, start, span, nil)
}

// lookupRoute 先查调度缓存，未命中回退全量匹配并尝试回填
func (e *Engine) lookupRoute(method, path, version string) (*Route, map[string]string, bool) {
	key := cacheKey(method, version, path)
	if route, params, ok := e.dispatch.get(key); ok {
		return route, params, true
	}
	route, params, ok := e.matchRoute(method, path, version)
	if !ok {
		return nil, nil, false
	}
	e.dispatch.put(key, route, params)
	return route, params, true
}

// runRoute 依次执行中间件链、校验器与处理函数
// 中间件返回非零 Result 或 error 即短路；panic 被捕获映射为
// HandlerError，调度器本身绝不因处理代码崩溃
func (e *Engine) runRoute(c *Context, route *Route) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Newf(errors.KindHandler, "panic: %v", rec)
			e.log.Error("处理函数 panic",
				zap.String("route", route.Method+" "+route.Path),
				zap.Any("panic", rec))
		}
	}()

	for _, mw := range route.chain {
		mres, merr := mw(c)
		if merr != nil {
			return Result{}, merr
		}
		if !mres.IsZero() {
			return mres, nil
		}
	}

	if route.validator != nil {
		if verr := route.validator(c); verr != nil {
			return Result{}, errors.Wrap(errors.KindInvalidBody, verr.Error(), verr)
		}
	}

	if len(route.negotiated) > 0 {
		return e.runNegotiated(c, route)
	}
	if route.handler == nil {
		return NoContent(), nil
	}
	return route.handler(c)
}

// runNegotiated 选择协商处理函数并记录所选类型
func (e *Engine) runNegotiated(c *Context, route *Route) (Result, error) {
	selected, err := negotiate(c.GetHeader("Accept"), route.negotiated)
	if err != nil {
		return Result{}, err
	}
	c.Set("negotiated_type", selected.Type)
	if e.cfg.Metrics {
		e.metrics.ContentTypeServed(selected.Type)
	}
	res, err := selected.Handler(c)
	if err != nil {
		return Result{}, err
	}
	if res.IsZero() {
		return NoContent(), nil
	}
	c.negotiatedRes = &res
	return res, nil
}

// writeRouteResult 写出处理结果
// 协商路由按选中类型序列化，普通路由走统一 Result 写出
func (e *Engine) writeRouteResult(c *Context, route *Route, res Result) error {
	if len(route.negotiated) > 0 && c.negotiatedRes != nil {
		return writeNegotiated(c, c.GetString("negotiated_type"), res)
	}
	return writeResult(c, res)
}

// writeResult 统一 Result → 响应写出
// 零值与 NoContent 均落到 204；Written 表示处理函数已自行写出
func writeResult(c *Context, res Result) error {
	status := res.StatusCode()
	switch res.Kind() {
	case ResultJSON:
		return c.JSON(status, res.Value())
	case ResultText:
		return c.String(status, "%s", res.Body())
	case ResultHTML:
		return c.HTML(status, res.Body())
	case ResultRedirect:
		c.Redirect(status, res.Body())
		return nil
	case ResultWritten:
		return nil
	default:
		c.Status(http.StatusNoContent)
		return nil
	}
}

// checkRateLimit 限流检查，超限时写出 429 与配额头
// 限流器自身出错放行并告警，存储故障不致拒绝服务
func (e *Engine) checkRateLimit(c *Context) bool {
	result, err := e.limiter.Allow(c.Context(), c.ClientIP())
	if err != nil {
		e.log.Warn("限流器故障，本次放行", zap.Error(err))
		return false
	}
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
	h.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
	if result.Allowed {
		return false
	}
	retry := int(result.RetryAfter.Seconds())
	if retry < 1 {
		retry = 1
	}
	h.Set("Retry-After", fmt.Sprintf("%d", retry))
	e.writeError(c, errors.ErrRateLimited)
	return true
}

// prepareBody 读取、解析并清洗请求体
func (e *Engine) prepareBody(c *Context) error {
	switch c.Method() {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		c.body = map[string]any{}
		return nil
	}
	raw, err := readBody(c.Request, e.cfg.BodyLimit)
	if err != nil {
		return err
	}
	c.raw = raw
	body, err := parseBody(raw, c.GetHeader("Content-Type"))
	if err != nil {
		return err
	}
	c.body = sanitizeBody(body)
	return nil
}

// handleRouteError 路由级错误处理
// 配置了错误处理函数时由其生成响应，否则走默认 JSON 错误体
func (e *Engine) handleRouteError(c *Context, route *Route, err error) {
	if route.errorHandler != nil {
		res := route.errorHandler(c, err)
		if !res.IsZero() {
			if werr := writeResult(c, res); werr != nil {
				e.log.Warn("写错误响应失败", zap.Error(werr))
			}
			if e.cfg.Metrics {
				e.metrics.IncErrors()
			}
			return
		}
	}
	e.writeError(c, err)
}

// writeError 统一错误响应：{"error": message}
// 响应已写出时不再覆盖，仅记录
func (e *Engine) writeError(c *Context, err error) {
	if e.cfg.Metrics {
		e.metrics.IncErrors()
	}
	status := errors.StatusOf(err)
	if c.Writer.Written() {
		e.log.Warn("响应已写出，错误仅记录",
			zap.Int("status", status), zap.Error(err))
		return
	}
	if jerr := c.JSON(status, map[string]string{"error": errors.MessageOf(err)}); jerr != nil {
		e.log.Warn("写错误响应失败", zap.Error(jerr))
	}
}

// applySecurityHeaders 写出无条件安全头与 CORS 头
func (e *Engine) applySecurityHeaders(w http.ResponseWriter) {
	h := w.Header()
	if e.cfg.CORS.Enabled {
		h.Set("Access-Control-Allow-Origin", e.cfg.CORS.Origin)
		h.Set("Access-Control-Allow-Methods", e.cfg.CORS.Methods)
		h.Set("Access-Control-Allow-Headers", e.cfg.CORS.Headers)
		if e.cfg.CORS.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
	}
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	h.Set("Content-Security-Policy", "default-src 'self'")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

// finish 收尾：耗时样本、span 状态与访问日志
func (e *Engine) finish(c *Context, start time.Time, span trace.Span, err error) {
	elapsed := time.Since(start)
	if e.cfg.Metrics {
		e.metrics.ObserveResponseTime(elapsed)
	}
	status := c.Writer.Status()
	if span != nil {
		span.SetAttributes(attribute.Int("http.status_code", status))
		tracing.RecordError(span, err)
	}
	if e.cfg.AccessLog {
		e.accessLog(c, status, elapsed, err)
	}
}

// accessLog 按状态级别输出访问日志
func (e *Engine) accessLog(c *Context, status int, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", elapsed),
		zap.String("client_ip", c.ClientIP()),
	}
	if c.RequestID() != "" {
		fields = append(fields, zap.String("request_id", c.RequestID()))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	log := e.log
	switch {
	case status >= 500:
		log.ErrorContext(c.Context(), "request", fields...)
	case status >= 400:
		log.WarnContext(c.Context(), "request", fields...)
	default:
		log.InfoContext(c.Context(), "request", fields...)
	}
}
