package ws

// Metrics 监控接口。方法名与 pkg/metrics.Collector 对齐，
// 引擎的采集器可以直接作为实现传入。
type Metrics interface {
	// 连接指标
	ConnectionOpened()
	ConnectionClosed()

	// 消息指标
	MessageReceived()
	MessageSent()
}

// NoopMetrics 空实现（默认）
type NoopMetrics struct{}

func (NoopMetrics) ConnectionOpened() {}
func (NoopMetrics) ConnectionClosed() {}
func (NoopMetrics) MessageReceived()  {}
func (NoopMetrics) MessageSent()      {}
