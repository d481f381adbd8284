package dao

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tokmz/dao/pkg/ws"
)

// wsRoute 已注册的 WebSocket 路由
type wsRoute struct {
	path     string
	compiled *CompiledRoute
	handler  ws.Handler
	onClose  func(*ws.Conn)
}

// socketOptions Socket 注册选项集
type socketOptions struct {
	onClose func(*ws.Conn)
}

// SocketOption WebSocket 路由注册选项
type SocketOption func(*socketOptions)

// WithCloseHandler 设置路由级关闭回调
// 连接清理不依赖回调成功：回调 panic 会被隔离，不阻断注销
func WithCloseHandler(fn func(*ws.Conn)) SocketOption {
	return func(o *socketOptions) {
		o.onClose = fn
	}
}

// Socket 注册 WebSocket 路由
// 路径模式与 HTTP 路由同语法；升级请求按注册顺序匹配，
// 不参与版本过滤
func (e *Engine) Socket(path string, handler ws.Handler, opts ...SocketOption) {
	e.addSocketRoute(joinPath("", path), handler, opts)
}

func (e *Engine) addSocketRoute(fullPath string, handler ws.Handler, opts []SocketOption) {
	o := &socketOptions{}
	for _, opt := range opts {
		opt(o)
	}
	compiled, err := e.compile.compile(fullPath)
	if err != nil {
		panic("dao: " + err.Error())
	}
	e.wsMu.Lock()
	e.wsRoutes = append(e.wsRoutes, &wsRoute{
		path:     fullPath,
		compiled: compiled,
		handler:  handler,
		onClose:  o.onClose,
	})
	e.wsMu.Unlock()
}

// isUpgrade 判断是否为 WebSocket 升级请求
func (e *Engine) isUpgrade(r *http.Request) bool {
	return ws.IsUpgradeRequest(r)
}

// matchSocketRoute 按注册顺序匹配升级路径
func (e *Engine) matchSocketRoute(path string) (*wsRoute, map[string]string, bool) {
	e.wsMu.RLock()
	defer e.wsMu.RUnlock()
	for _, rt := range e.wsRoutes {
		if params, ok := rt.compiled.Match(path); ok {
			return rt, params, true
		}
	}
	return nil, nil, false
}

// handleUpgrade 处理升级请求
// 接管原始连接后：无匹配路由以 404 状态行终止；握手前置条件
// 不满足由 Upgrader 以状态行拒绝；成功后在本 goroutine 运行读循环
func (e *Engine) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		e.log.Error("底层连接不支持接管，无法升级",
			zap.String("path", r.URL.Path))
		http.Error(w, "websocket unsupported", http.StatusInternalServerError)
		return
	}
	nc, brw, err := hj.Hijack()
	if err != nil {
		e.log.Error("接管连接失败", zap.Error(err))
		return
	}

	route, params, matched := e.matchSocketRoute(r.URL.Path)
	if !matched {
		e.upgrader.Reject(nc, brw.Writer, http.StatusNotFound)
		return
	}

	conn, err := e.upgrader.Accept(nc, brw, r, r.URL.Path, params, route.onClose)
	if err != nil {
		// 拒绝响应已由 Upgrader 写出
		e.log.Debug("升级被拒绝",
			zap.String("path", r.URL.Path), zap.Error(err))
		return
	}

	if route.handler != nil {
		route.handler(conn)
	}
	conn.Serve()
}

// Broadcast 向路径匹配的所有连接发送文本消息
// path 为 "*" 时广播到全部连接；exclude 中的连接跳过；
// 返回成功送达的连接数
func (e *Engine) Broadcast(path, message string, exclude ...string) int {
	return e.upgrader.Registry().Broadcast(path, message, exclude...)
}

// Connections 当前存活的 WebSocket 连接数
func (e *Engine) Connections() int64 {
	return e.upgrader.Registry().Count()
}

// Connection 按 id 查找连接
func (e *Engine) Connection(id string) (*ws.Conn, bool) {
	return e.upgrader.Registry().Get(id)
}
