package dao

import "github.com/tokmz/dao/pkg/errors"

// ============ 高级泛型路由（自动绑定 + 自动响应）============

// Handle 有请求参数，有响应数据
// 清洗后的 JSON 请求体自动绑定到 Req，Resp 以 JSON 200 写出
func Handle[Req any, Resp any](r Router, method, path string, handler func(*Context, *Req) (*Resp, error), opts ...RouteOption) {
	r.Handle(method, path, func(c *Context) (Result, error) {
		var req Req
		if err := c.BindJSON(&req); err != nil {
			return Result{}, errors.Wrap(errors.KindInvalidBody, "bind request body", err)
		}
		resp, err := handler(c, &req)
		if err != nil {
			return Result{}, err
		}
		return JSON(resp), nil
	}, opts...)
}

// Handle0 有请求参数，无响应数据
// 成功时以 204 应答
func Handle0[Req any](r Router, method, path string, handler func(*Context, *Req) error, opts ...RouteOption) {
	r.Handle(method, path, func(c *Context) (Result, error) {
		var req Req
		if err := c.BindJSON(&req); err != nil {
			return Result{}, errors.Wrap(errors.KindInvalidBody, "bind request body", err)
		}
		if err := handler(c, &req); err != nil {
			return Result{}, err
		}
		return NoContent(), nil
	}, opts...)
}

// HandleOnly 无请求参数，有响应数据
func HandleOnly[Resp any](r Router, method, path string, handler func(*Context) (*Resp, error), opts ...RouteOption) {
	r.Handle(method, path, func(c *Context) (Result, error) {
		resp, err := handler(c)
		if err != nil {
			return Result{}, err
		}
		return JSON(resp), nil
	}, opts...)
}
