package dao

import (
	"net/http"

	"github.com/tokmz/dao/pkg/ws"
)

// leafKind 叶子类别
type leafKind int

const (
	leafHTTP leafKind = iota
	leafNegotiate
	leafSocket
)

// treeLeaf 路由树叶子：一条待注册的路由
type treeLeaf struct {
	kind       leafKind
	method     string
	extraPath  string
	handler    HandlerFunc
	negotiated ContentHandlers
	socket     ws.Handler
	opts       []RouteOption
	socketOpts []SocketOption
}

// PathNode 声明式路由树节点
// 以构建器 API 组装递归标记树，再由 Engine.Mount 一次性注册；
// 不依赖任何运行期键形嗅探
type PathNode struct {
	segment    string
	children   []*PathNode
	leaves     []treeLeaf
	middleware []MiddlewareFunc
}

// Tree 创建路由树根节点
func Tree() *PathNode {
	return &PathNode{}
}

// Child 添加子路径段并返回子节点
// fn 非 nil 时在子节点上执行，便于嵌套书写
func (n *PathNode) Child(segment string, fn func(*PathNode)) *PathNode {
	child := &PathNode{segment: segment}
	n.children = append(n.children, child)
	if fn != nil {
		fn(child)
	}
	return child
}

// Use 为该节点的整棵子树追加中间件
func (n *PathNode) Use(mw ...MiddlewareFunc) *PathNode {
	n.middleware = append(n.middleware, mw...)
	return n
}

// Handle 在当前节点路径上注册路由
func (n *PathNode) Handle(method string, handler HandlerFunc, opts ...RouteOption) *PathNode {
	n.leaves = append(n.leaves, treeLeaf{kind: leafHTTP, method: method, handler: handler, opts: opts})
	return n
}

// HandleAt 在当前节点路径加 extraPath 上注册路由
// 供叶子携带参数段的场景，如 HandleAt("GET", "/:id(\\d+)", h)
func (n *PathNode) HandleAt(method, extraPath string, handler HandlerFunc, opts ...RouteOption) *PathNode {
	n.leaves = append(n.leaves, treeLeaf{kind: leafHTTP, method: method, extraPath: extraPath, handler: handler, opts: opts})
	return n
}

// GET 注册 GET 叶子
func (n *PathNode) GET(handler HandlerFunc, opts ...RouteOption) *PathNode {
	return n.Handle(http.MethodGet, handler, opts...)
}

// POST 注册 POST 叶子
func (n *PathNode) POST(handler HandlerFunc, opts ...RouteOption) *PathNode {
	return n.Handle(http.MethodPost, handler, opts...)
}

// PUT 注册 PUT 叶子
func (n *PathNode) PUT(handler HandlerFunc, opts ...RouteOption) *PathNode {
	return n.Handle(http.MethodPut, handler, opts...)
}

// DELETE 注册 DELETE 叶子
func (n *PathNode) DELETE(handler HandlerFunc, opts ...RouteOption) *PathNode {
	return n.Handle(http.MethodDelete, handler, opts...)
}

// PATCH 注册 PATCH 叶子
func (n *PathNode) PATCH(handler HandlerFunc, opts ...RouteOption) *PathNode {
	return n.Handle(http.MethodPatch, handler, opts...)
}

// Negotiate 注册内容协商叶子
func (n *PathNode) Negotiate(method string, handlers ContentHandlers, opts ...RouteOption) *PathNode {
	n.leaves = append(n.leaves, treeLeaf{kind: leafNegotiate, method: method, negotiated: handlers, opts: opts})
	return n
}

// Socket 注册 WebSocket 叶子
func (n *PathNode) Socket(handler ws.Handler, opts ...SocketOption) *PathNode {
	n.leaves = append(n.leaves, treeLeaf{kind: leafSocket, socket: handler, socketOpts: opts})
	return n
}

// Mount 将路由树注册到引擎
// 深度优先遍历：路径段逐层拼接，子树中间件自上而下累加
func (e *Engine) Mount(root *PathNode) error {
	if root == nil {
		return nil
	}
	return e.mountNode(root, "", nil)
}

func (e *Engine) mountNode(n *PathNode, prefix string, mw []MiddlewareFunc) error {
	path := prefix
	if n.segment != "" {
		path = joinPath(prefix, n.segment)
	}
	chain := concatMiddleware(mw, n.middleware)

	for _, leaf := range n.leaves {
		leafPath := path
		if leaf.extraPath != "" {
			leafPath = joinPath(path, leaf.extraPath)
		}
		if leafPath == "" {
			leafPath = "/"
		}
		opts := leaf.opts
		if len(chain) > 0 {
			opts = append([]RouteOption{WithMiddleware(chain...)}, opts...)
		}
		switch leaf.kind {
		case leafHTTP:
			e.addRoute(leaf.method, leafPath, leaf.handler, nil, nil, opts)
		case leafNegotiate:
			e.addRoute(leaf.method, leafPath, nil, leaf.negotiated, nil, opts)
		case leafSocket:
			e.addSocketRoute(leafPath, leaf.socket, leaf.socketOpts)
		}
	}

	for _, child := range n.children {
		if err := e.mountNode(child, path, chain); err != nil {
			return err
		}
	}
	return nil
}
