package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestWindow(clock *fakeClock, window time.Duration, max int) *FixedWindow {
	return NewFixedWindow(window, max,
		WithClock(clock.Now),
		WithSweepInterval(0),
	)
}

// TestFixedWindowSequence 窗口内前三次放行第四次拒绝，窗口过后恢复
func TestFixedWindowSequence(t *testing.T) {
	clock := newFakeClock()
	fw := newTestWindow(clock, time.Second, 3)
	defer fw.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := fw.Allow(ctx, "client-a")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	res, err := fw.Allow(ctx, "client-a")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("fourth request in window should be rejected")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", res.RetryAfter)
	}

	// 窗口过后重新放行
	clock.Advance(1001 * time.Millisecond)
	res, err = fw.Allow(ctx, "client-a")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatal("request after window elapsed should be allowed")
	}
	if res.Remaining != 2 {
		t.Errorf("Remaining = %d, want 2", res.Remaining)
	}
}

// TestFixedWindowAnchoredAtFirstRequest 窗口锚定首个请求而非对齐墙钟
func TestFixedWindowAnchoredAtFirstRequest(t *testing.T) {
	clock := newFakeClock()
	fw := newTestWindow(clock, time.Second, 1)
	defer fw.Close()
	ctx := context.Background()

	clock.Advance(450 * time.Millisecond)
	if res, _ := fw.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("first request should be allowed")
	}

	// 尚在窗口内
	clock.Advance(999 * time.Millisecond)
	if res, _ := fw.Allow(ctx, "k"); res.Allowed {
		t.Fatal("still inside the window, should be rejected")
	}

	// 跨过 resetAt（严格大于判定）
	clock.Advance(2 * time.Millisecond)
	if res, _ := fw.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("past resetAt, should be allowed")
	}
}

// TestFixedWindowIndependentKeys 不同客户端互不影响
func TestFixedWindowIndependentKeys(t *testing.T) {
	clock := newFakeClock()
	fw := newTestWindow(clock, time.Second, 1)
	defer fw.Close()
	ctx := context.Background()

	if res, _ := fw.Allow(ctx, "a"); !res.Allowed {
		t.Fatal("a#1 should be allowed")
	}
	if res, _ := fw.Allow(ctx, "a"); res.Allowed {
		t.Fatal("a#2 should be rejected")
	}
	if res, _ := fw.Allow(ctx, "b"); !res.Allowed {
		t.Fatal("b#1 should be allowed despite a being limited")
	}
}

// TestFixedWindowReset 手动清除窗口
func TestFixedWindowReset(t *testing.T) {
	clock := newFakeClock()
	fw := newTestWindow(clock, time.Second, 1)
	defer fw.Close()
	ctx := context.Background()

	fw.Allow(ctx, "k")
	if res, _ := fw.Allow(ctx, "k"); res.Allowed {
		t.Fatal("should be limited before reset")
	}
	if err := fw.Reset(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if res, _ := fw.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("should be allowed after reset")
	}
}

// TestFixedWindowRemaining 剩余配额递减到零
func TestFixedWindowRemaining(t *testing.T) {
	clock := newFakeClock()
	fw := newTestWindow(clock, time.Second, 2)
	defer fw.Close()
	ctx := context.Background()

	res, _ := fw.Allow(ctx, "k")
	if res.Remaining != 1 {
		t.Errorf("Remaining#1 = %d, want 1", res.Remaining)
	}
	res, _ = fw.Allow(ctx, "k")
	if res.Remaining != 0 {
		t.Errorf("Remaining#2 = %d, want 0", res.Remaining)
	}
	res, _ = fw.Allow(ctx, "k")
	if res.Remaining != 0 {
		t.Errorf("Remaining#3 = %d, want 0 (not negative)", res.Remaining)
	}
	if res.Limit != 2 {
		t.Errorf("Limit = %d, want 2", res.Limit)
	}
}

// TestFixedWindowConcurrent 并发消费不超发
func TestFixedWindowConcurrent(t *testing.T) {
	clock := newFakeClock()
	fw := newTestWindow(clock, time.Minute, 50)
	defer fw.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := fw.Allow(ctx, "shared")
			if err != nil {
				t.Error(err)
				return
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want exactly 50", allowed)
	}
}
