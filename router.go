package dao

import (
	"net/http"
	"sort"
	"strings"

	"github.com/tokmz/dao/pkg/errors"
	"github.com/tokmz/dao/pkg/ws"
)

// Route 已注册路由
// 注册完成后只读；匹配按注册顺序进行，首个结构匹配者胜出
type Route struct {
	// Method HTTP 方法
	Method string

	// Path 完整模式路径（含组前缀），如 /api/users/:id(\d+)
	Path string

	// Name 命名路由名，空表示未命名
	Name string

	// Version 路由所属版本，空表示对所有版本可见
	Version string

	compiled     *CompiledRoute
	chain        []MiddlewareFunc
	handler      HandlerFunc
	negotiated   ContentHandlers
	validator    func(*Context) error
	errorHandler func(*Context, error) Result
}

// RouteInfo 路由表条目，供启动打印与自省使用
type RouteInfo struct {
	Method  string
	Path    string
	Name    string
	Version string
}

// routeOptions 路由注册选项集
type routeOptions struct {
	name         string
	version      string
	middleware   []MiddlewareFunc
	validator    func(*Context) error
	errorHandler func(*Context, error) Result
}

// RouteOption 路由注册选项
type RouteOption func(*routeOptions)

// WithName 命名路由，供 URL 反向生成使用
// 同名重复注册时名字索引指向最后一次注册，先前路由仍可匹配
func WithName(name string) RouteOption {
	return func(o *routeOptions) {
		o.name = name
	}
}

// WithVersion 将路由绑定到指定版本（需启用版本路由）
func WithVersion(version string) RouteOption {
	return func(o *routeOptions) {
		o.version = normalizeVersion(version)
	}
}

// WithMiddleware 追加路由级中间件，在全局与组中间件之后执行
func WithMiddleware(mw ...MiddlewareFunc) RouteOption {
	return func(o *routeOptions) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithValidator 设置请求校验函数，在处理函数之前执行
// 返回非 nil 错误时以 400 InvalidBody 应答
func WithValidator(fn func(*Context) error) RouteOption {
	return func(o *routeOptions) {
		o.validator = fn
	}
}

// WithErrorHandler 设置路由级错误处理函数
// 中间件或处理函数出错时由其生成响应，替代默认的 JSON 错误体
func WithErrorHandler(fn func(*Context, error) Result) RouteOption {
	return func(o *routeOptions) {
		o.errorHandler = fn
	}
}

// Router 路由注册面
// Engine 与 RouterGroup 均实现，供泛型注册等辅助函数使用
type Router interface {
	Handle(method, path string, handler HandlerFunc, opts ...RouteOption)
}

// RouterGroup 路由组：共享前缀与中间件的注册视图
// 组为值持有，嵌套组在创建时拼接前缀与中间件链，
// 注册回调中的 panic 不会污染任何共享栈
type RouterGroup struct {
	engine     *Engine
	prefix     string
	middleware []MiddlewareFunc
}

// Group 创建子路由组
func (g *RouterGroup) Group(prefix string, mw ...MiddlewareFunc) *RouterGroup {
	return &RouterGroup{
		engine:     g.engine,
		prefix:     joinPath(g.prefix, prefix),
		middleware: concatMiddleware(g.middleware, mw),
	}
}

// Use 向组追加中间件，仅影响此后注册的路由
func (g *RouterGroup) Use(mw ...MiddlewareFunc) {
	g.middleware = append(g.middleware, mw...)
}

// Route 作用域式注册：fn 在子组上执行完毕后组即失效
func (g *RouterGroup) Route(prefix string, fn func(*RouterGroup), mw ...MiddlewareFunc) {
	fn(g.Group(prefix, mw...))
}

// Handle 注册路由
// 完整路径 = 组前缀 + path；中间件链 = 全局 + 组 + 路由级
func (g *RouterGroup) Handle(method, path string, handler HandlerFunc, opts ...RouteOption) {
	g.engine.addRoute(method, joinPath(g.prefix, path), handler, nil, g.middleware, opts)
}

// GET 注册 GET 路由
func (g *RouterGroup) GET(path string, handler HandlerFunc, opts ...RouteOption) {
	g.Handle(http.MethodGet, path, handler, opts...)
}

// POST 注册 POST 路由
func (g *RouterGroup) POST(path string, handler HandlerFunc, opts ...RouteOption) {
	g.Handle(http.MethodPost, path, handler, opts...)
}

// PUT 注册 PUT 路由
func (g *RouterGroup) PUT(path string, handler HandlerFunc, opts ...RouteOption) {
	g.Handle(http.MethodPut, path, handler, opts...)
}

// DELETE 注册 DELETE 路由
func (g *RouterGroup) DELETE(path string, handler HandlerFunc, opts ...RouteOption) {
	g.Handle(http.MethodDelete, path, handler, opts...)
}

// PATCH 注册 PATCH 路由
func (g *RouterGroup) PATCH(path string, handler HandlerFunc, opts ...RouteOption) {
	g.Handle(http.MethodPatch, path, handler, opts...)
}

// HEAD 注册 HEAD 路由
func (g *RouterGroup) HEAD(path string, handler HandlerFunc, opts ...RouteOption) {
	g.Handle(http.MethodHead, path, handler, opts...)
}

// OPTIONS 注册 OPTIONS 路由
func (g *RouterGroup) OPTIONS(path string, handler HandlerFunc, opts ...RouteOption) {
	g.Handle(http.MethodOptions, path, handler, opts...)
}

// Any 注册全部常用 HTTP 方法的路由
func (g *RouterGroup) Any(path string, handler HandlerFunc, opts ...RouteOption) {
	for _, m := range anyMethods {
		g.Handle(m, path, handler, opts...)
	}
}

// Negotiate 注册内容协商路由
// handlers 按偏好排序，首个类型在协商失败兜底与通配展开时优先
func (g *RouterGroup) Negotiate(method, path string, handlers ContentHandlers, opts ...RouteOption) {
	g.engine.addRoute(method, joinPath(g.prefix, path), nil, handlers, g.middleware, opts)
}

// Socket 注册 WebSocket 路由
func (g *RouterGroup) Socket(path string, handler ws.Handler, opts ...SocketOption) {
	g.engine.addSocketRoute(joinPath(g.prefix, path), handler, opts)
}

// Static 以 ** 通配路由提供目录下的静态文件
func (g *RouterGroup) Static(prefix, dir string) {
	full := joinPath(g.prefix, prefix)
	fs := http.StripPrefix(full, http.FileServer(http.Dir(dir)))
	g.Handle(http.MethodGet, joinPath(prefix, "/**"), WrapHTTP(fs))
}

var anyMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut,
	http.MethodDelete, http.MethodPatch, http.MethodHead, http.MethodOptions,
}

// joinPath 拼接组前缀与路径，保证单斜杠分隔
func joinPath(prefix, path string) string {
	if prefix == "" {
		if path == "" {
			return "/"
		}
		if !strings.HasPrefix(path, "/") {
			return "/" + path
		}
		return path
	}
	p := strings.TrimSuffix(prefix, "/")
	if path == "" || path == "/" {
		if p == "" {
			return "/"
		}
		return p
	}
	if !strings.HasPrefix(path, "/") {
		return p + "/" + path
	}
	return p + path
}

// ============ Engine 注册面 ============

// Use 注册全局中间件，仅影响此后注册的路由
func (e *Engine) Use(mw ...MiddlewareFunc) {
	e.global = append(e.global, mw...)
}

// Group 创建路由组
func (e *Engine) Group(prefix string, mw ...MiddlewareFunc) *RouterGroup {
	return &RouterGroup{engine: e, prefix: joinPath("", prefix), middleware: mw}
}

// Route 作用域式注册
func (e *Engine) Route(prefix string, fn func(*RouterGroup), mw ...MiddlewareFunc) {
	fn(e.Group(prefix, mw...))
}

// Handle 注册路由
func (e *Engine) Handle(method, path string, handler HandlerFunc, opts ...RouteOption) {
	e.addRoute(method, joinPath("", path), handler, nil, nil, opts)
}

// GET 注册 GET 路由
func (e *Engine) GET(path string, handler HandlerFunc, opts ...RouteOption) {
	e.Handle(http.MethodGet, path, handler, opts...)
}

// POST 注册 POST 路由
func (e *Engine) POST(path string, handler HandlerFunc, opts ...RouteOption) {
	e.Handle(http.MethodPost, path, handler, opts...)
}

// PUT 注册 PUT 路由
func (e *Engine) PUT(path string, handler HandlerFunc, opts ...RouteOption) {
	e.Handle(http.MethodPut, path, handler, opts...)
}

// DELETE 注册 DELETE 路由
func (e *Engine) DELETE(path string, handler HandlerFunc, opts ...RouteOption) {
	e.Handle(http.MethodDelete, path, handler, opts...)
}

// PATCH 注册 PATCH 路由
func (e *Engine) PATCH(path string, handler HandlerFunc, opts ...RouteOption) {
	e.Handle(http.MethodPatch, path, handler, opts...)
}

// HEAD 注册 HEAD 路由
func (e *Engine) HEAD(path string, handler HandlerFunc, opts ...RouteOption) {
	e.Handle(http.MethodHead, path, handler, opts...)
}

// OPTIONS 注册 OPTIONS 路由
func (e *Engine) OPTIONS(path string, handler HandlerFunc, opts ...RouteOption) {
	e.Handle(http.MethodOptions, path, handler, opts...)
}

// Any 注册全部常用 HTTP 方法的路由
func (e *Engine) Any(path string, handler HandlerFunc, opts ...RouteOption) {
	for _, m := range anyMethods {
		e.Handle(m, path, handler, opts...)
	}
}

// Negotiate 注册内容协商路由
func (e *Engine) Negotiate(method, path string, handlers ContentHandlers, opts ...RouteOption) {
	e.addRoute(method, joinPath("", path), nil, handlers, nil, opts)
}

// Static 以 ** 通配路由提供目录下的静态文件
func (e *Engine) Static(prefix, dir string) {
	full := joinPath("", prefix)
	fs := http.StripPrefix(full, http.FileServer(http.Dir(dir)))
	e.Handle(http.MethodGet, joinPath(prefix, "/**"), WrapHTTP(fs))
}

// addRoute 编译模式并追加路由
// handler 与 handlers 二选一：后者非空表示内容协商路由
func (e *Engine) addRoute(method, fullPath string, handler HandlerFunc, handlers ContentHandlers, groupMW []MiddlewareFunc, opts []RouteOption) {
	o := &routeOptions{}
	for _, opt := range opts {
		opt(o)
	}

	compiled, err := e.compile.compile(fullPath)
	if err != nil {
		// 非法模式属注册期编程错误，立即暴露
		panic("dao: " + err.Error())
	}

	rt := &Route{
		Method:       strings.ToUpper(method),
		Path:         fullPath,
		Name:         o.name,
		Version:      o.version,
		compiled:     compiled,
		chain:        concatMiddleware(e.global, groupMW, o.middleware),
		handler:      handler,
		negotiated:   handlers,
		validator:    o.validator,
		errorHandler: o.errorHandler,
	}

	e.mu.Lock()
	e.routes = append(e.routes, rt)
	if o.name != "" {
		e.names[o.name] = rt
	}
	e.mu.Unlock()

	// 路由表已变，旧的调度结论作废
	e.dispatch.purge()
}

// URL 反向生成命名路由的具体路径
// params 中的值经 URL 转义；未提供值的可选参数丢弃所在段；
// 名字未注册时返回 UnknownRoute 错误
func (e *Engine) URL(name string, params map[string]any) (string, error) {
	e.mu.RLock()
	rt, ok := e.names[name]
	e.mu.RUnlock()
	if !ok {
		return "", errors.ErrUnknownRoute.WithMessagef("unknown route name %q", name)
	}
	return buildURL(rt.Path, params)
}

// TestRoute 按注册表匹配一次，不经过调度缓存
// 返回命中路由与路径参数；无匹配时 ok 为假
func (e *Engine) TestRoute(method, path string) (*Route, map[string]string, bool) {
	return e.matchRoute(strings.ToUpper(method), path, "")
}

// matchRoute 按注册顺序匹配，首个结构匹配者胜出
// version 非空时仅考虑该版本与无版本路由
func (e *Engine) matchRoute(method, path, version string) (*Route, map[string]string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, rt := range e.routes {
		if rt.Method != method {
			continue
		}
		if version != "" && rt.Version != "" && rt.Version != version {
			continue
		}
		if params, ok := rt.compiled.Match(path); ok {
			return rt, params, true
		}
	}
	return nil, nil, false
}

// Routes 返回路由表快照，方法+路径字典序排序
func (e *Engine) Routes() []RouteInfo {
	e.mu.RLock()
	out := make([]RouteInfo, 0, len(e.routes))
	for _, rt := range e.routes {
		out = append(out, RouteInfo{Method: rt.Method, Path: rt.Path, Name: rt.Name, Version: rt.Version})
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}
