package dao

import "net/http"

// WrapHTTP 将任意 http.Handler 适配为路由处理函数
// 用于挂载标准库生态的处理器，如 promhttp、pprof、文件服务：
//
//	e.GET("/metrics", dao.WrapHTTP(promhttp.Handler()))
func WrapHTTP(h http.Handler) HandlerFunc {
	if h == nil {
		panic("dao: handler cannot be nil")
	}
	return func(c *Context) (Result, error) {
		h.ServeHTTP(c.Writer, c.Request)
		return Written(), nil
	}
}

// WrapHTTPFunc 将 http.HandlerFunc 适配为路由处理函数
func WrapHTTPFunc(fn http.HandlerFunc) HandlerFunc {
	return WrapHTTP(fn)
}
