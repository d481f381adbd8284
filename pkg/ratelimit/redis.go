package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultKeyPrefix Redis 键前缀
const defaultKeyPrefix = "dao:ratelimit:"

// incrScript 原子地自增并在窗口首个请求时设置过期
// 返回 {当前计数, 剩余毫秒}
var incrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// RedisFixedWindow 基于 Redis 的固定窗口限流器
// 多实例部署时共享窗口计数；键过期等价于惰性窗口重置
type RedisFixedWindow struct {
	client redis.UniversalClient
	window time.Duration
	max    int
	prefix string
}

// RedisOption 配置选项函数
type RedisOption func(*RedisFixedWindow)

// WithKeyPrefix 设置 Redis 键前缀
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisFixedWindow) {
		r.prefix = prefix
	}
}

// NewRedisFixedWindow 创建 Redis 固定窗口限流器
// client 生命周期由调用方管理
func NewRedisFixedWindow(client redis.UniversalClient, window time.Duration, max int, opts ...RedisOption) *RedisFixedWindow {
	r := &RedisFixedWindow{
		client: client,
		window: window,
		max:    max,
		prefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allow 消费一次配额
func (r *RedisFixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	raw, err := incrScript.Run(ctx, r.client, []string{r.prefix + key}, r.window.Milliseconds()).Result()
	if err != nil {
		return nil, fmt.Errorf("ratelimit: redis eval: %w", err)
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 2 {
		return nil, fmt.Errorf("ratelimit: unexpected script reply %T", raw)
	}
	count, _ := vals[0].(int64)
	ttlMs, _ := vals[1].(int64)

	resetAfter := time.Duration(ttlMs) * time.Millisecond
	if ttlMs < 0 {
		resetAfter = r.window
	}

	allowed := count <= int64(r.max)
	remaining := r.max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	res := &Result{
		Allowed:    allowed,
		Limit:      r.max,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}
	if !allowed {
		res.RetryAfter = resetAfter
	}
	return res, nil
}

// Reset 清除指定键的窗口
func (r *RedisFixedWindow) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Close 实现 Limiter 接口，连接由调用方关闭
func (r *RedisFixedWindow) Close() error {
	return nil
}
