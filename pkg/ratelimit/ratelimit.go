package ratelimit

import (
	"context"
	"time"
)

// Result 单次限流判定结果
type Result struct {
	Allowed    bool          // 是否放行
	Limit      int           // 窗口内允许的最大请求数
	Remaining  int           // 窗口内剩余配额
	ResetAfter time.Duration // 距窗口重置的时间
	RetryAfter time.Duration // 拒绝时建议的重试等待时间，放行时为 0
}

// Limiter 限流器接口
// Allow 原子地消费一次配额并返回判定结果
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	Reset(ctx context.Context, key string) error
	Close() error
}
