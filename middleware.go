package dao

// HandlerFunc 路由处理函数
// 返回带标签的 Result 描述响应，由调度器统一序列化写出
type HandlerFunc func(c *Context) (Result, error)

// MiddlewareFunc 中间件函数，与处理函数同构
// 返回非零 Result 或 error 时短路后续链并作为响应；
// 返回零值 Result 和 nil error 表示放行
type MiddlewareFunc func(c *Context) (Result, error)

// When 条件中间件：仅当 pred 为真时执行 mw
func When(pred func(c *Context) bool, mw MiddlewareFunc) MiddlewareFunc {
	return func(c *Context) (Result, error) {
		if pred(c) {
			return mw(c)
		}
		return Result{}, nil
	}
}

// Unless 条件中间件：仅当 pred 为假时执行 mw
func Unless(pred func(c *Context) bool, mw MiddlewareFunc) MiddlewareFunc {
	return When(func(c *Context) bool { return !pred(c) }, mw)
}

// SkipPaths 跳过指定路径的中间件包装
// 路径按请求的 URL.Path 精确匹配
func SkipPaths(mw MiddlewareFunc, paths ...string) MiddlewareFunc {
	skip := make(map[string]bool, len(paths))
	for _, p := range paths {
		skip[p] = true
	}
	return func(c *Context) (Result, error) {
		if skip[c.Request.URL.Path] {
			return Result{}, nil
		}
		return mw(c)
	}
}

// concatMiddleware 拼接中间件链：全局在前，路由级在后
func concatMiddleware(chains ...[]MiddlewareFunc) []MiddlewareFunc {
	n := 0
	for _, chain := range chains {
		n += len(chain)
	}
	if n == 0 {
		return nil
	}
	out := make([]MiddlewareFunc, 0, n)
	for _, chain := range chains {
		out = append(out, chain...)
	}
	return out
}
