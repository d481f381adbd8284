package middleware

import "github.com/tokmz/dao"

// Headers 创建静态响应头中间件
// 引擎已无条件写出安全头；此中间件用于按路由追加或覆盖，
// 如局部放宽 Content-Security-Policy 或附加缓存策略
func Headers(headers map[string]string) dao.MiddlewareFunc {
	return func(c *dao.Context) (dao.Result, error) {
		for k, v := range headers {
			c.Header(k, v)
		}
		return dao.Result{}, nil
	}
}

// NoCache 创建禁用缓存头中间件
func NoCache() dao.MiddlewareFunc {
	return Headers(map[string]string{
		"Cache-Control": "no-store, no-cache, must-revalidate",
		"Pragma":        "no-cache",
		"Expires":       "0",
	})
}
