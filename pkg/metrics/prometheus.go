package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Exporter 将 Collector 快照桥接为 Prometheus 采集器
// 引擎自身的计数器保持原样，抓取时按需转换，不重复计数
type Exporter struct {
	collector *Collector

	requests      *prometheus.Desc
	errors        *prometheus.Desc
	cacheHits     *prometheus.Desc
	cacheMisses   *prometheus.Desc
	compileHits   *prometheus.Desc
	compileMisses *prometheus.Desc
	wsConnections *prometheus.Desc
	wsMessages    *prometheus.Desc
	routeMatches  *prometheus.Desc
	versions      *prometheus.Desc
	contentTypes  *prometheus.Desc
	avgLatency    *prometheus.Desc
}

// NewExporter 创建 Prometheus 采集器
// namespace 为空时使用 "dao"
func NewExporter(c *Collector, namespace string) *Exporter {
	if namespace == "" {
		namespace = "dao"
	}
	ns := func(name string) string {
		return prometheus.BuildFQName(namespace, "", name)
	}
	return &Exporter{
		collector: c,
		requests: prometheus.NewDesc(ns("requests_total"),
			"Total number of dispatched HTTP requests.", nil, nil),
		errors: prometheus.NewDesc(ns("errors_total"),
			"Total number of error responses.", nil, nil),
		cacheHits: prometheus.NewDesc(ns("dispatch_cache_hits_total"),
			"Dispatch cache hits.", nil, nil),
		cacheMisses: prometheus.NewDesc(ns("dispatch_cache_misses_total"),
			"Dispatch cache misses.", nil, nil),
		compileHits: prometheus.NewDesc(ns("pattern_compile_hits_total"),
			"Pattern compilation cache hits.", nil, nil),
		compileMisses: prometheus.NewDesc(ns("pattern_compile_misses_total"),
			"Pattern compilation cache misses.", nil, nil),
		wsConnections: prometheus.NewDesc(ns("ws_connections"),
			"Currently registered WebSocket connections.", nil, nil),
		wsMessages: prometheus.NewDesc(ns("ws_messages_total"),
			"WebSocket messages by direction.", []string{"direction"}, nil),
		routeMatches: prometheus.NewDesc(ns("route_matches_total"),
			"Route matches by route.", []string{"route"}, nil),
		versions: prometheus.NewDesc(ns("requests_by_version_total"),
			"Requests by resolved API version.", []string{"version"}, nil),
		contentTypes: prometheus.NewDesc(ns("responses_by_content_type_total"),
			"Responses by negotiated content type.", []string{"content_type"}, nil),
		avgLatency: prometheus.NewDesc(ns("response_time_avg_seconds"),
			"Average response time over the recent sample window.", nil, nil),
	}
}

// Describe 实现 prometheus.Collector 接口
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.requests
	ch <- e.errors
	ch <- e.cacheHits
	ch <- e.cacheMisses
	ch <- e.compileHits
	ch <- e.compileMisses
	ch <- e.wsConnections
	ch <- e.wsMessages
	ch <- e.routeMatches
	ch <- e.versions
	ch <- e.contentTypes
	ch <- e.avgLatency
}

// Collect 实现 prometheus.Collector 接口
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.collector.Snapshot()

	ch <- prometheus.MustNewConstMetric(e.requests, prometheus.CounterValue, float64(s.Requests))
	ch <- prometheus.MustNewConstMetric(e.errors, prometheus.CounterValue, float64(s.Errors))
	ch <- prometheus.MustNewConstMetric(e.cacheHits, prometheus.CounterValue, float64(s.CacheHits))
	ch <- prometheus.MustNewConstMetric(e.cacheMisses, prometheus.CounterValue, float64(s.CacheMisses))
	ch <- prometheus.MustNewConstMetric(e.compileHits, prometheus.CounterValue, float64(s.CompileHits))
	ch <- prometheus.MustNewConstMetric(e.compileMisses, prometheus.CounterValue, float64(s.CompileMisses))
	ch <- prometheus.MustNewConstMetric(e.wsConnections, prometheus.GaugeValue, float64(s.WSConnections))
	ch <- prometheus.MustNewConstMetric(e.wsMessages, prometheus.CounterValue, float64(s.WSMessagesIn), "in")
	ch <- prometheus.MustNewConstMetric(e.wsMessages, prometheus.CounterValue, float64(s.WSMessagesOut), "out")
	ch <- prometheus.MustNewConstMetric(e.avgLatency, prometheus.GaugeValue, s.AvgResponseTime.Seconds())

	for route, n := range s.RouteMatches {
		ch <- prometheus.MustNewConstMetric(e.routeMatches, prometheus.CounterValue, float64(n), route)
	}
	for version, n := range s.Versions {
		ch <- prometheus.MustNewConstMetric(e.versions, prometheus.CounterValue, float64(n), version)
	}
	for ct, n := range s.ContentTypes {
		ch <- prometheus.MustNewConstMetric(e.contentTypes, prometheus.CounterValue, float64(n), ct)
	}
}
