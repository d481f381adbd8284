package dao

import (
	"sync"

	"github.com/tokmz/dao/pkg/metrics"
)

// dispatchEntry 一次已解析的调度结果
type dispatchEntry struct {
	route  *Route
	params map[string]string
}

// dispatchCache 调度缓存：method[:version]:path → (route, params)
// 有界：达到容量后不再插入，未命中回退全量匹配，
// 这是请求期优化而非正确性机制
type dispatchCache struct {
	mu      sync.RWMutex
	max     int
	items   map[string]dispatchEntry
	metrics *metrics.Collector
	record  bool
}

func newDispatchCache(max int, m *metrics.Collector, record bool) *dispatchCache {
	if max <= 0 {
		max = defaultCacheSize
	}
	return &dispatchCache{
		max:     max,
		items:   make(map[string]dispatchEntry),
		metrics: m,
		record:  record,
	}
}

// cacheKey 构造缓存键
// 启用版本路由时键含版本段：同一 method+path 在不同版本下
// 可解析到不同路由，键必须区分
func cacheKey(method, version, path string) string {
	if version == "" {
		return method + ":" + path
	}
	return method + ":" + version + ":" + path
}

// get 查询缓存，命中时返回参数拷贝
// 拷贝保证处理函数改写参数不会污染缓存条目
func (dc *dispatchCache) get(key string) (*Route, map[string]string, bool) {
	dc.mu.RLock()
	entry, ok := dc.items[key]
	dc.mu.RUnlock()
	if !ok {
		if dc.record {
			dc.metrics.CacheMiss()
		}
		return nil, nil, false
	}
	if dc.record {
		dc.metrics.CacheHit()
	}
	params := make(map[string]string, len(entry.params))
	for k, v := range entry.params {
		params[k] = v
	}
	return entry.route, params, true
}

// put 写入缓存，仅在容量未满时插入
func (dc *dispatchCache) put(key string, route *Route, params map[string]string) {
	stored := make(map[string]string, len(params))
	for k, v := range params {
		stored[k] = v
	}
	dc.mu.Lock()
	if len(dc.items) < dc.max {
		if _, exists := dc.items[key]; !exists {
			dc.items[key] = dispatchEntry{route: route, params: stored}
		}
	}
	dc.mu.Unlock()
}

// size 当前缓存条目数
func (dc *dispatchCache) size() int {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return len(dc.items)
}

// purge 清空缓存（路由表变更后由注册方调用）
func (dc *dispatchCache) purge() {
	dc.mu.Lock()
	dc.items = make(map[string]dispatchEntry)
	dc.mu.Unlock()
}
