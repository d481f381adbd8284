package main

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tokmz/dao"
	"github.com/tokmz/dao/middleware"
	"github.com/tokmz/dao/pkg/metrics"
	"github.com/tokmz/dao/pkg/ws"
)

type createUserReq struct {
	Name string `json:"name"`
}

type userResp struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func main() {
	e := dao.New(
		dao.WithRateLimit(time.Minute, 300),
		dao.WithVersioning("v1"),
		dao.WithCompression(),
	)

	e.Use(middleware.RequestID())

	// 基础路由
	e.GET("/ping", func(c *dao.Context) (dao.Result, error) {
		return dao.Text("pong"), nil
	})

	// 命名路由 + 参数约束
	e.GET("/users/:id(\\d+)", func(c *dao.Context) (dao.Result, error) {
		return dao.JSON(map[string]string{"id": c.Param("id")}), nil
	}, dao.WithName("getUser"))

	// 泛型路由：自动绑定 + 自动响应
	dao.Handle(e, "POST", "/users", func(c *dao.Context, req *createUserReq) (*userResp, error) {
		return &userResp{ID: 1, Name: req.Name}, nil
	})

	// 路由组 + 令牌桶限流
	e.Route("/admin", func(g *dao.RouterGroup) {
		g.GET("/stats", func(c *dao.Context) (dao.Result, error) {
			return dao.JSON(e.Metrics()), nil
		})
	}, middleware.RateLimiter(&middleware.RateLimiterConfig{RequestsPerSecond: 10}))

	// 内容协商：同一资源按 Accept 返回 JSON 或 XML
	e.Negotiate("GET", "/report", dao.ContentHandlers{
		{Type: "application/json", Handler: func(c *dao.Context) (dao.Result, error) {
			return dao.JSON(map[string]any{"status": "ok"}), nil
		}},
		{Type: "text/xml", Handler: func(c *dao.Context) (dao.Result, error) {
			return dao.JSON(map[string]any{"status": "ok"}), nil
		}},
	})

	// WebSocket 聊天室：回显并广播
	e.Socket("/chat/:room", func(conn *ws.Conn) {
		conn.OnMessage(func(msg string) {
			e.Broadcast("/chat/"+conn.Param("room"), msg, conn.ID())
		})
	})

	// Prometheus 指标端点
	prometheus.MustRegister(metrics.NewExporter(e.Collector(), "dao"))
	e.GET("/metrics", dao.WrapHTTP(promhttp.Handler()))

	if err := e.Run(":8080"); err != nil {
		log.Fatal(err)
	}
}
