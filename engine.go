package dao

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/tokmz/dao/pkg/logger"
	"github.com/tokmz/dao/pkg/metrics"
	"github.com/tokmz/dao/pkg/ratelimit"
	"github.com/tokmz/dao/pkg/tracing"
	"github.com/tokmz/dao/pkg/ws"
)

// Engine 路由调度引擎
// 实现 http.Handler；调度缓存、限流器、WebSocket 注册表与
// 指标计数器均挂在引擎实例上，多实例（如测试中）互不干扰
type Engine struct {
	cfg     *Config
	log     logger.Logger
	metrics *metrics.Collector

	compile  *compileCache
	dispatch *dispatchCache

	limiter      ratelimit.Limiter
	limiterOwned bool

	mu     sync.RWMutex
	routes []*Route
	names  map[string]*Route
	global []MiddlewareFunc

	wsMu     sync.RWMutex
	wsRoutes []*wsRoute
	upgrader *ws.Upgrader

	tracer *tracing.Provider
	traced bool

	server *http.Server
}

// New 创建引擎实例，使用 Options 模式配置
func New(opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	e := &Engine{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		names:   make(map[string]*Route),
	}
	e.compile = newCompileCache(cfg.CompileCacheSize, e.metrics)
	e.dispatch = newDispatchCache(cfg.CacheSize, e.metrics, cfg.Metrics)

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Limiter != nil {
			e.limiter = cfg.RateLimit.Limiter
		} else {
			e.limiter = ratelimit.NewFixedWindow(cfg.RateLimit.Window, cfg.RateLimit.Max)
			e.limiterOwned = true
		}
	}

	wsCfg := cfg.WS
	if wsCfg == nil {
		wsCfg = ws.DefaultConfig()
	}
	e.upgrader = ws.NewUpgrader(wsCfg, log, e.metrics)

	if cfg.Tracing != nil && cfg.Tracing.Enabled {
		provider, err := tracing.NewProvider(cfg.Tracing)
		if err != nil {
			log.Error("初始化链路追踪失败", zap.Error(err))
		} else {
			e.tracer = provider
			e.traced = true
		}
	}

	return e
}

// Metrics 返回指标快照
func (e *Engine) Metrics() metrics.Snapshot {
	return e.metrics.Snapshot()
}

// Collector 返回底层指标采集器，供 Prometheus 导出器桥接：
//
//	prometheus.MustRegister(metrics.NewExporter(e.Collector(), "dao"))
func (e *Engine) Collector() *metrics.Collector {
	return e.metrics
}

// Logger 返回引擎日志器
func (e *Engine) Logger() logger.Logger {
	return e.log
}

// Run 启动 HTTP 服务器，收到 SIGINT/SIGTERM 时优雅关机
func (e *Engine) Run(addr ...string) error {
	address := e.cfg.Server.Addr
	if len(addr) > 0 && addr[0] != "" {
		address = addr[0]
	}
	e.server = e.newServer(address)
	if e.cfg.Banner {
		e.printBanner(address)
	}
	return e.serve(func() error {
		return e.server.ListenAndServe()
	})
}

// RunTLS 启动 HTTPS 服务器，支持优雅关机
func (e *Engine) RunTLS(addr, certFile, keyFile string) error {
	e.server = e.newServer(addr)
	if e.cfg.Banner {
		e.printBanner(addr)
	}
	return e.serve(func() error {
		return e.server.ListenAndServeTLS(certFile, keyFile)
	})
}

func (e *Engine) newServer(addr string) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        e,
		ReadTimeout:    e.cfg.Server.ReadTimeout,
		WriteTimeout:   e.cfg.Server.WriteTimeout,
		IdleTimeout:    e.cfg.Server.IdleTimeout,
		MaxHeaderBytes: e.cfg.Server.MaxHeaderBytes,
	}
}

// serve 统一的启动与优雅关机逻辑
func (e *Engine) serve(startFunc func() error) error {
	errChan := make(chan error, 1)
	go func() {
		if err := startFunc(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		e.log.Info("正在关闭服务器...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Shutdown.Timeout)
	defer cancel()
	return e.Shutdown(ctx)
}

// Shutdown 关闭引擎：先停 HTTP 服务器排空在途请求，
// 再关闭存活的 WebSocket 连接与引擎自有的限流器和追踪器
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.cfg.Shutdown.BeforeShutdown != nil {
		e.cfg.Shutdown.BeforeShutdown()
	}

	var err error
	if e.server != nil {
		if serr := e.server.Shutdown(ctx); serr != nil {
			e.log.Error("服务器强制关闭", zap.Error(serr))
			err = serr
		}
	}

	e.upgrader.Registry().CloseAll(ws.CloseGoingAway, "server shutting down")

	if e.limiterOwned {
		if fw, ok := e.limiter.(*ratelimit.FixedWindow); ok {
			_ = fw.Close()
		}
	}
	if e.tracer != nil {
		if terr := e.tracer.Shutdown(ctx); terr != nil {
			e.log.Warn("关闭追踪器失败", zap.Error(terr))
		}
	}

	if e.cfg.Shutdown.AfterShutdown != nil {
		e.cfg.Shutdown.AfterShutdown()
	}

	e.log.Info("服务器已退出")
	return err
}
