package ws

import (
	"fmt"
	"net/http"
	"time"
)

// Config WebSocket 配置
type Config struct {
	// 握手配置
	CheckOrigin    func(*http.Request) bool // Origin 检查函数，nil 时允许所有来源
	AllowedOrigins []string                 // Origin 白名单，设置后覆盖 CheckOrigin

	// 帧配置
	MaxMessageSize int64         // 入站帧负载上限
	WriteTimeout   time.Duration // 单帧写超时
	ReadTimeout    time.Duration // 读空闲超时，0 表示不限

	// 心跳配置
	PingInterval time.Duration // 服务端 Ping 间隔，0 表示关闭

	// 关闭配置
	CloseGrace time.Duration // 主动关闭后等待对端回应的时长

	// 入站消息限速，0 表示不限
	MessageRate  float64 // 每秒消息数
	MessageBurst int     // 突发额度
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxMessageSize: 1 << 20, // 1MB
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    0,
		PingInterval:   0,
		CloseGrace:     5 * time.Second,
		MessageRate:    0,
		MessageBurst:   0,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("MaxMessageSize must be positive, got %d", c.MaxMessageSize)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("WriteTimeout must be positive, got %v", c.WriteTimeout)
	}
	if c.CloseGrace <= 0 {
		return fmt.Errorf("CloseGrace must be positive, got %v", c.CloseGrace)
	}
	if c.MessageRate < 0 {
		return fmt.Errorf("MessageRate must not be negative, got %v", c.MessageRate)
	}
	return nil
}

func (c *Config) setDefaults() {
	def := DefaultConfig()
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.CloseGrace <= 0 {
		c.CloseGrace = def.CloseGrace
	}
	if c.MessageRate > 0 && c.MessageBurst <= 0 {
		c.MessageBurst = 1
	}
}

// Option 配置选项
type Option func(*Config)

// WithCheckOrigin 设置 Origin 检查函数
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(c *Config) {
		c.CheckOrigin = fn
	}
}

// WithOriginWhitelist 设置 Origin 白名单
// 示例：WithOriginWhitelist([]string{"https://example.com", "https://app.example.com"})
func WithOriginWhitelist(origins []string) Option {
	return func(c *Config) {
		c.AllowedOrigins = origins
	}
}

// WithMaxMessageSize 设置入站帧负载上限
func WithMaxMessageSize(size int64) Option {
	return func(c *Config) {
		c.MaxMessageSize = size
	}
}

// WithPingInterval 设置服务端心跳间隔
func WithPingInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.PingInterval = interval
	}
}

// WithWriteTimeout 设置单帧写超时
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.WriteTimeout = timeout
	}
}

// WithReadTimeout 设置读空闲超时
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = timeout
	}
}

// WithCloseGrace 设置关闭等待时长
func WithCloseGrace(grace time.Duration) Option {
	return func(c *Config) {
		c.CloseGrace = grace
	}
}

// WithMessageRate 设置入站消息限速
func WithMessageRate(perSecond float64, burst int) Option {
	return func(c *Config) {
		c.MessageRate = perSecond
		c.MessageBurst = burst
	}
}

// resolveOriginCheck 计算生效的 Origin 检查函数。
// 白名单优先于自定义函数；两者都未设置时允许所有来源，
// 非浏览器客户端不携带 Origin 也能连接。
func (c *Config) resolveOriginCheck() func(*http.Request) bool {
	if len(c.AllowedOrigins) > 0 {
		return originWhitelistChecker(c.AllowedOrigins)
	}
	if c.CheckOrigin != nil {
		return c.CheckOrigin
	}
	return func(*http.Request) bool { return true }
}

// originWhitelistChecker 创建白名单检查器
func originWhitelistChecker(origins []string) func(*http.Request) bool {
	whitelist := make(map[string]bool, len(origins))
	for _, origin := range origins {
		whitelist[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// 白名单模式下拒绝空 Origin
			return false
		}
		return whitelist[origin]
	}
}
