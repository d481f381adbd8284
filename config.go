package dao

import (
	"time"

	"github.com/tokmz/dao/pkg/config"
	"github.com/tokmz/dao/pkg/logger"
	"github.com/tokmz/dao/pkg/ratelimit"
	"github.com/tokmz/dao/pkg/tracing"
	"github.com/tokmz/dao/pkg/ws"
)

const (
	defaultCacheSize   = 1000
	defaultBodyLimit   = 1 << 20 // 1MB
	defaultCORSOrigin  = "http://localhost:3000"
	defaultVersionName = "api-version"
)

// ServerConfig 服务器配置
type ServerConfig struct {
	// Addr 监听地址，默认 ":8080"
	Addr string

	// ReadTimeout 读取超时
	ReadTimeout time.Duration

	// WriteTimeout 写入超时
	WriteTimeout time.Duration

	// IdleTimeout 空闲超时
	IdleTimeout time.Duration

	// MaxHeaderBytes 最大请求头字节数
	MaxHeaderBytes int
}

// ShutdownConfig 关机配置
type ShutdownConfig struct {
	// Timeout 关机超时时间，默认 10 秒
	Timeout time.Duration

	// BeforeShutdown 关机前回调
	BeforeShutdown func()

	// AfterShutdown 关机后回调
	AfterShutdown func()
}

// CORSConfig 跨域配置
// 启用时在每个响应上写出 CORS 头，并以 204 应答预检请求
type CORSConfig struct {
	Enabled          bool
	Origin           string
	Methods          string
	Headers          string
	AllowCredentials bool
}

// RateLimitConfig 请求限流配置
// Limiter 为 nil 时按 Window/Max 构建进程内固定窗口限流器；
// 多进程部署可注入 ratelimit.NewRedisFixedWindow 的实例
type RateLimitConfig struct {
	Enabled bool
	Window  time.Duration
	Max     int
	Limiter ratelimit.Limiter
}

// VersionConfig 版本路由配置
// 解析顺序：请求头 → URL 前缀 /vN → 查询参数 version → Default
type VersionConfig struct {
	Enabled bool
	Header  string
	Default string
}

// Config 引擎配置
type Config struct {
	// Server 服务器配置
	Server ServerConfig

	// Shutdown 关机配置
	Shutdown ShutdownConfig

	// CORS 跨域配置
	CORS CORSConfig

	// RateLimit 限流配置
	RateLimit RateLimitConfig

	// Version 版本路由配置
	Version VersionConfig

	// BodyLimit 请求体大小上限（字节）
	BodyLimit int64

	// CacheSize 调度缓存容量（条目数）
	CacheSize int

	// CompileCacheSize 模式编译缓存容量（条目数）
	CompileCacheSize int

	// Metrics 是否记录调度指标
	Metrics bool

	// Banner 启动时是否打印 banner 与路由表
	Banner bool

	// AccessLog 是否输出访问日志
	AccessLog bool

	// Compression 满足条件时对响应做 gzip 压缩
	Compression bool

	// Logger 引擎日志器，nil 时使用默认控制台日志
	Logger logger.Logger

	// Tracing 链路追踪配置，nil 表示不启用
	Tracing *tracing.Config

	// WS WebSocket 子系统配置，nil 时使用默认配置
	WS *ws.Config
}

// Option 配置选项函数
type Option func(*Config)

// defaultConfig 返回默认配置
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1MB
		},
		Shutdown: ShutdownConfig{
			Timeout: 10 * time.Second,
		},
		CORS: CORSConfig{
			Enabled:          true,
			Origin:           defaultCORSOrigin,
			Methods:          "GET, POST, PUT, DELETE, PATCH, OPTIONS",
			Headers:          "Content-Type, Authorization, X-Requested-With, api-version",
			AllowCredentials: true,
		},
		RateLimit: RateLimitConfig{
			Enabled: false,
			Window:  time.Minute,
			Max:     100,
		},
		Version: VersionConfig{
			Enabled: false,
			Header:  defaultVersionName,
			Default: "v1",
		},
		BodyLimit:        defaultBodyLimit,
		CacheSize:        defaultCacheSize,
		CompileCacheSize: defaultCacheSize,
		Metrics:          true,
		Banner:           true,
		AccessLog:        true,
	}
}

// WithAddr 设置监听地址
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Server.Addr = addr
	}
}

// WithReadTimeout 设置读取超时
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.ReadTimeout = timeout
	}
}

// WithWriteTimeout 设置写入超时
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.WriteTimeout = timeout
	}
}

// WithIdleTimeout 设置空闲超时
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.IdleTimeout = timeout
	}
}

// WithMaxHeaderBytes 设置最大请求头字节数
func WithMaxHeaderBytes(size int) Option {
	return func(c *Config) {
		c.Server.MaxHeaderBytes = size
	}
}

// WithShutdownTimeout 设置关机超时时间
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Shutdown.Timeout = timeout
	}
}

// WithBeforeShutdown 设置关机前回调
func WithBeforeShutdown(fn func()) Option {
	return func(c *Config) {
		c.Shutdown.BeforeShutdown = fn
	}
}

// WithAfterShutdown 设置关机后回调
func WithAfterShutdown(fn func()) Option {
	return func(c *Config) {
		c.Shutdown.AfterShutdown = fn
	}
}

// WithCORSOrigin 设置允许的跨域来源
func WithCORSOrigin(origin string) Option {
	return func(c *Config) {
		c.CORS.Origin = origin
	}
}

// WithoutCORS 关闭 CORS 头写出与预检应答
func WithoutCORS() Option {
	return func(c *Config) {
		c.CORS.Enabled = false
	}
}

// WithRateLimit 启用固定窗口限流
func WithRateLimit(window time.Duration, max int) Option {
	return func(c *Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.Window = window
		c.RateLimit.Max = max
	}
}

// WithLimiter 注入自定义限流器（如 Redis 固定窗口）
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.Limiter = l
	}
}

// WithVersioning 启用版本路由并设置默认版本
func WithVersioning(defaultVersion string) Option {
	return func(c *Config) {
		c.Version.Enabled = true
		if defaultVersion != "" {
			c.Version.Default = defaultVersion
		}
	}
}

// WithVersionHeader 设置版本解析的请求头名称
func WithVersionHeader(name string) Option {
	return func(c *Config) {
		c.Version.Header = name
	}
}

// WithBodyLimit 设置请求体大小上限
func WithBodyLimit(limit int64) Option {
	return func(c *Config) {
		c.BodyLimit = limit
	}
}

// WithCacheSize 设置调度缓存容量
func WithCacheSize(size int) Option {
	return func(c *Config) {
		c.CacheSize = size
	}
}

// WithCompileCacheSize 设置模式编译缓存容量
func WithCompileCacheSize(size int) Option {
	return func(c *Config) {
		c.CompileCacheSize = size
	}
}

// WithoutMetrics 关闭调度指标记录
func WithoutMetrics() Option {
	return func(c *Config) {
		c.Metrics = false
	}
}

// WithoutBanner 关闭启动 banner 与路由表打印
func WithoutBanner() Option {
	return func(c *Config) {
		c.Banner = false
	}
}

// WithoutAccessLog 关闭访问日志
func WithoutAccessLog() Option {
	return func(c *Config) {
		c.AccessLog = false
	}
}

// WithCompression 启用响应 gzip 压缩
func WithCompression() Option {
	return func(c *Config) {
		c.Compression = true
	}
}

// WithLogger 设置引擎日志器
func WithLogger(log logger.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithTracing 启用链路追踪
func WithTracing(cfg *tracing.Config) Option {
	return func(c *Config) {
		c.Tracing = cfg
	}
}

// WithWebSocket 设置 WebSocket 子系统配置
func WithWebSocket(opts ...ws.Option) Option {
	return func(c *Config) {
		cfg := ws.DefaultConfig()
		for _, opt := range opts {
			opt(cfg)
		}
		c.WS = cfg
	}
}

// FromFile 从配置文件加载引擎配置（YAML/TOML 等 viper 支持的格式）
// 文件中的键覆盖已有配置；缺失的键保持默认值不变
//
//	server:
//	  addr: ":9090"
//	cors:
//	  origin: "https://example.com"
//	rate_limit:
//	  enabled: true
//	  window: 1m
//	  max: 200
func FromFile(path string) (Option, error) {
	loader := config.New(config.WithConfigFile(path))
	if err := loader.Load(); err != nil {
		return nil, err
	}
	return func(c *Config) {
		applyFileConfig(c, loader)
	}, nil
}

// applyFileConfig 将文件配置覆盖到 Config
func applyFileConfig(c *Config, l *config.Config) {
	setString := func(key string, dst *string) {
		if l.IsSet(key) {
			*dst = l.GetString(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if l.IsSet(key) {
			*dst = l.GetBool(key)
		}
	}
	setInt := func(key string, dst *int) {
		if l.IsSet(key) {
			*dst = l.GetInt(key)
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if l.IsSet(key) {
			*dst = l.GetDuration(key)
		}
	}

	setString("server.addr", &c.Server.Addr)
	setDuration("server.read_timeout", &c.Server.ReadTimeout)
	setDuration("server.write_timeout", &c.Server.WriteTimeout)
	setDuration("server.idle_timeout", &c.Server.IdleTimeout)
	setInt("server.max_header_bytes", &c.Server.MaxHeaderBytes)
	setDuration("shutdown.timeout", &c.Shutdown.Timeout)
	setBool("cors.enabled", &c.CORS.Enabled)
	setString("cors.origin", &c.CORS.Origin)
	setString("cors.methods", &c.CORS.Methods)
	setString("cors.headers", &c.CORS.Headers)
	setBool("cors.allow_credentials", &c.CORS.AllowCredentials)
	setBool("rate_limit.enabled", &c.RateLimit.Enabled)
	setDuration("rate_limit.window", &c.RateLimit.Window)
	setInt("rate_limit.max", &c.RateLimit.Max)
	setBool("version.enabled", &c.Version.Enabled)
	setString("version.header", &c.Version.Header)
	setString("version.default", &c.Version.Default)
	setBool("metrics", &c.Metrics)
	setBool("banner", &c.Banner)
	setBool("access_log", &c.AccessLog)
	setBool("compression", &c.Compression)
	if l.IsSet("body_limit") {
		c.BodyLimit = l.GetInt64("body_limit")
	}
	setInt("cache_size", &c.CacheSize)
	setInt("compile_cache_size", &c.CompileCacheSize)
}
