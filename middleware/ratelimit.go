package middleware

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tokmz/dao"
	"github.com/tokmz/dao/pkg/errors"
	"github.com/tokmz/dao/pkg/logger"
)

// RateLimiterConfig 限流中间件配置
// 区别于引擎内建的固定窗口限流：本中间件按令牌桶平滑限速，
// 适合挂在个别高价值路由上做细粒度控制
type RateLimiterConfig struct {
	// RequestsPerSecond 每秒允许的请求数（默认 100）
	RequestsPerSecond float64

	// Burst 突发容量（默认等于 RequestsPerSecond）
	Burst int

	// KeyFunc 自定义限流 key 函数（默认使用客户端 IP）
	KeyFunc func(c *dao.Context) string

	// SkipFunc 跳过限流的函数
	SkipFunc func(c *dao.Context) bool

	// ExcludePaths 排除的路径（不限流）
	ExcludePaths []string

	// Logger 日志实例
	Logger logger.Logger

	// CleanupInterval 空闲限速器清理间隔（默认 10 分钟）
	CleanupInterval time.Duration

	// IdleExpiry 限速器空闲多久后清理（默认 30 分钟）
	IdleExpiry time.Duration
}

// defaultRateLimiterConfig 返回默认配置
func defaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		RequestsPerSecond: 100,
		Burst:             100,
		CleanupInterval:   10 * time.Minute,
		IdleExpiry:        30 * time.Minute,
	}
}

// keyedLimiter 单 key 的令牌桶及最近访问时间
type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore 按 key 持有令牌桶
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*keyedLimiter
	done     chan struct{}
}

func newLimiterStore() *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*keyedLimiter),
		done:     make(chan struct{}),
	}
}

// get 获取或创建 key 的限速器并刷新访问时间
func (s *limiterStore) get(key string, rps float64, burst int) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	kl, ok := s.limiters[key]
	if !ok {
		kl = &keyedLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		s.limiters[key] = kl
	}
	kl.lastSeen = time.Now()
	return kl.limiter
}

// cleanup 清理空闲限速器，仅回收内存，不影响限速语义
func (s *limiterStore) cleanup(expiry time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for key, kl := range s.limiters {
		if now.Sub(kl.lastSeen) > expiry {
			delete(s.limiters, key)
		}
	}
}

// RateLimiter 创建令牌桶限流中间件
// 按 key（默认客户端 IP）限速，超限时以 429 短路
func RateLimiter(cfgs ...*RateLimiterConfig) dao.MiddlewareFunc {
	cfg := defaultRateLimiterConfig()
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *dao.Context) string {
			return c.ClientIP()
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond)
	}

	skipMap := make(map[string]bool)
	for _, path := range cfg.ExcludePaths {
		skipMap[path] = true
	}

	// 每个中间件实例独立存储
	store := newLimiterStore()

	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				store.cleanup(cfg.IdleExpiry)
			case <-store.done:
				return
			}
		}
	}()

	return func(c *dao.Context) (dao.Result, error) {
		if cfg.SkipFunc != nil && cfg.SkipFunc(c) {
			return dao.Result{}, nil
		}
		if skipMap[c.Path()] {
			return dao.Result{}, nil
		}

		key := cfg.KeyFunc(c)
		if !store.get(key, cfg.RequestsPerSecond, cfg.Burst).Allow() {
			cfg.Logger.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Path()),
				zap.Float64("rate", cfg.RequestsPerSecond),
			)
			return dao.Result{}, errors.ErrRateLimited
		}
		return dao.Result{}, nil
	}
}
