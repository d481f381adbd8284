package ratelimit

import (
	"context"
	"sync"
	"time"
)

// defaultSweepInterval 过期记录清扫间隔
const defaultSweepInterval = time.Minute

// record 单个客户端的窗口计数
type record struct {
	count   int
	resetAt time.Time
}

// FixedWindow 进程内固定窗口限流器
// 首次请求锚定窗口起点，过期采用惰性重置：
// now > resetAt 时窗口重新计数。窗口边界的突发放行是该算法的已知特性。
type FixedWindow struct {
	window time.Duration
	max    int

	mu      sync.Mutex
	records map[string]*record

	now       func() time.Time
	sweepEach time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

// FixedWindowOption 配置选项函数
type FixedWindowOption func(*FixedWindow)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) FixedWindowOption {
	return func(fw *FixedWindow) {
		fw.now = now
	}
}

// WithSweepInterval 设置过期记录清扫间隔，0 表示不清扫
// 清扫只回收内存，不改变任何键的判定语义
func WithSweepInterval(d time.Duration) FixedWindowOption {
	return func(fw *FixedWindow) {
		fw.sweepEach = d
	}
}

// NewFixedWindow 创建固定窗口限流器
func NewFixedWindow(window time.Duration, max int, opts ...FixedWindowOption) *FixedWindow {
	fw := &FixedWindow{
		window:    window,
		max:       max,
		records:   make(map[string]*record),
		now:       time.Now,
		sweepEach: defaultSweepInterval,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(fw)
	}
	if fw.sweepEach > 0 {
		go fw.sweep()
	}
	return fw
}

// Allow 消费一次配额
func (fw *FixedWindow) Allow(_ context.Context, key string) (*Result, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := fw.now()
	rec, ok := fw.records[key]
	if !ok || now.After(rec.resetAt) {
		// 新客户端或窗口已过期：重新计数并放行
		fw.records[key] = &record{count: 1, resetAt: now.Add(fw.window)}
		return &Result{
			Allowed:    true,
			Limit:      fw.max,
			Remaining:  fw.max - 1,
			ResetAfter: fw.window,
		}, nil
	}

	rec.count++
	allowed := rec.count <= fw.max
	remaining := fw.max - rec.count
	if remaining < 0 {
		remaining = 0
	}
	res := &Result{
		Allowed:    allowed,
		Limit:      fw.max,
		Remaining:  remaining,
		ResetAfter: rec.resetAt.Sub(now),
	}
	if !allowed {
		res.RetryAfter = res.ResetAfter
	}
	return res, nil
}

// Reset 清除指定键的窗口
func (fw *FixedWindow) Reset(_ context.Context, key string) error {
	fw.mu.Lock()
	delete(fw.records, key)
	fw.mu.Unlock()
	return nil
}

// Close 停止后台清扫
func (fw *FixedWindow) Close() error {
	fw.closeOnce.Do(func() {
		close(fw.done)
	})
	return nil
}

// sweep 周期清理已过期的记录
func (fw *FixedWindow) sweep() {
	ticker := time.NewTicker(fw.sweepEach)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := fw.now()
			fw.mu.Lock()
			for key, rec := range fw.records {
				if now.After(rec.resetAt) {
					delete(fw.records, key)
				}
			}
			fw.mu.Unlock()
		case <-fw.done:
			return
		}
	}
}
