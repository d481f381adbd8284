package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// defaultSampleCap 响应耗时样本环形缓冲默认容量
const defaultSampleCap = 1000

// Collector 引擎指标收集器
// 由 Engine 持有，计数器单调递增，可从任意协程并发调用
type Collector struct {
	requests      atomic.Uint64
	errors        atomic.Uint64
	cacheHits     atomic.Uint64
	cacheMisses   atomic.Uint64
	compileHits   atomic.Uint64
	compileMisses atomic.Uint64
	wsConnections atomic.Int64
	wsMessagesIn  atomic.Uint64
	wsMessagesOut atomic.Uint64

	mu           sync.RWMutex
	routeMatches map[string]uint64
	versions     map[string]uint64
	contentTypes map[string]uint64

	// 最近 N 次响应耗时，环形覆盖
	samples   []time.Duration
	sampleIdx int
	sampleLen int
}

// Option 配置选项函数
type Option func(*Collector)

// WithSampleCap 设置耗时样本容量
func WithSampleCap(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.samples = make([]time.Duration, n)
		}
	}
}

// New 创建指标收集器
func New(opts ...Option) *Collector {
	c := &Collector{
		routeMatches: make(map[string]uint64),
		versions:     make(map[string]uint64),
		contentTypes: make(map[string]uint64),
		samples:      make([]time.Duration, defaultSampleCap),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IncRequests 请求总数加一
func (c *Collector) IncRequests() {
	c.requests.Add(1)
}

// IncErrors 错误总数加一
func (c *Collector) IncErrors() {
	c.errors.Add(1)
}

// CacheHit 调度缓存命中
func (c *Collector) CacheHit() {
	c.cacheHits.Add(1)
}

// CacheMiss 调度缓存未命中
func (c *Collector) CacheMiss() {
	c.cacheMisses.Add(1)
}

// CompileHit 模式编译缓存命中
func (c *Collector) CompileHit() {
	c.compileHits.Add(1)
}

// CompileMiss 模式编译缓存未命中
func (c *Collector) CompileMiss() {
	c.compileMisses.Add(1)
}

// ConnectionOpened WebSocket 连接建立
func (c *Collector) ConnectionOpened() {
	c.wsConnections.Add(1)
}

// ConnectionClosed WebSocket 连接关闭
func (c *Collector) ConnectionClosed() {
	c.wsConnections.Add(-1)
}

// MessageReceived WebSocket 收到应用消息
func (c *Collector) MessageReceived() {
	c.wsMessagesIn.Add(1)
}

// MessageSent WebSocket 发出消息
func (c *Collector) MessageSent() {
	c.wsMessagesOut.Add(1)
}

// RouteMatched 记录路由命中
// route 形如 "GET /users/:id"
func (c *Collector) RouteMatched(route string) {
	c.mu.Lock()
	c.routeMatches[route]++
	c.mu.Unlock()
}

// VersionServed 记录版本请求
func (c *Collector) VersionServed(version string) {
	if version == "" {
		return
	}
	c.mu.Lock()
	c.versions[version]++
	c.mu.Unlock()
}

// ContentTypeServed 记录响应内容类型
func (c *Collector) ContentTypeServed(contentType string) {
	if contentType == "" {
		return
	}
	c.mu.Lock()
	c.contentTypes[contentType]++
	c.mu.Unlock()
}

// ObserveResponseTime 记录一次响应耗时
func (c *Collector) ObserveResponseTime(d time.Duration) {
	c.mu.Lock()
	c.samples[c.sampleIdx] = d
	c.sampleIdx = (c.sampleIdx + 1) % len(c.samples)
	if c.sampleLen < len(c.samples) {
		c.sampleLen++
	}
	c.mu.Unlock()
}

// Snapshot 指标快照
type Snapshot struct {
	Requests        uint64            `json:"requests"`
	Errors          uint64            `json:"errors"`
	CacheHits       uint64            `json:"cache_hits"`
	CacheMisses     uint64            `json:"cache_misses"`
	CacheHitRate    float64           `json:"cache_hit_rate"`
	CompileHits     uint64            `json:"compile_hits"`
	CompileMisses   uint64            `json:"compile_misses"`
	CompileHitRate  float64           `json:"compile_hit_rate"`
	WSConnections   int64             `json:"ws_connections"`
	WSMessagesIn    uint64            `json:"ws_messages_in"`
	WSMessagesOut   uint64            `json:"ws_messages_out"`
	RouteMatches    map[string]uint64 `json:"route_matches"`
	Versions        map[string]uint64 `json:"versions"`
	ContentTypes    map[string]uint64 `json:"content_types"`
	AvgResponseTime time.Duration     `json:"avg_response_time"`
	SampleCount     int               `json:"sample_count"`
}

// Snapshot 生成一致性快照（map 为拷贝，调用方可自由持有）
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		Requests:      c.requests.Load(),
		Errors:        c.errors.Load(),
		CacheHits:     c.cacheHits.Load(),
		CacheMisses:   c.cacheMisses.Load(),
		CompileHits:   c.compileHits.Load(),
		CompileMisses: c.compileMisses.Load(),
		WSConnections: c.wsConnections.Load(),
		WSMessagesIn:  c.wsMessagesIn.Load(),
		WSMessagesOut: c.wsMessagesOut.Load(),
	}
	s.CacheHitRate = rate(s.CacheHits, s.CacheMisses)
	s.CompileHitRate = rate(s.CompileHits, s.CompileMisses)

	c.mu.RLock()
	s.RouteMatches = copyMap(c.routeMatches)
	s.Versions = copyMap(c.versions)
	s.ContentTypes = copyMap(c.contentTypes)
	s.SampleCount = c.sampleLen
	if c.sampleLen > 0 {
		var total time.Duration
		for i := 0; i < c.sampleLen; i++ {
			total += c.samples[i]
		}
		s.AvgResponseTime = total / time.Duration(c.sampleLen)
	}
	c.mu.RUnlock()

	return s
}

func rate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func copyMap(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
