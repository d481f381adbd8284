package ws

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tokmz/dao/pkg/logger"
)

// Registry 连接注册表，按升级路径分组广播
type Registry struct {
	conns   sync.Map // id → *Conn
	count   atomic.Int64
	log     logger.Logger
	metrics Metrics
}

// NewRegistry 创建注册表。log、m 为 nil 时使用空实现。
func NewRegistry(log logger.Logger, m Metrics) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = NoopMetrics{}
	}
	return &Registry{log: log, metrics: m}
}

func (r *Registry) add(c *Conn) {
	r.conns.Store(c.id, c)
	r.count.Add(1)
	r.metrics.ConnectionOpened()
}

func (r *Registry) remove(id string) {
	if _, ok := r.conns.LoadAndDelete(id); ok {
		r.count.Add(-1)
		r.metrics.ConnectionClosed()
	}
}

// Get 按 id 查找连接
func (r *Registry) Get(id string) (*Conn, bool) {
	v, ok := r.conns.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Conn), true
}

// Count 返回当前连接数
func (r *Registry) Count() int64 { return r.count.Load() }

// Range 遍历所有连接，fn 返回 false 时停止
func (r *Registry) Range(fn func(*Conn) bool) {
	r.conns.Range(func(_, v any) bool {
		return fn(v.(*Conn))
	})
}

// Broadcast 向升级路径等于 path 的所有连接发送文本消息，
// path 为 "*" 时面向全部连接，exclude 中的连接 id 被跳过。
// 返回成功送达的连接数；单个连接的发送失败只记录日志，
// 不中断对其余连接的投递。
func (r *Registry) Broadcast(path, message string, exclude ...string) int {
	var skip map[string]struct{}
	if len(exclude) > 0 {
		skip = make(map[string]struct{}, len(exclude))
		for _, id := range exclude {
			skip[id] = struct{}{}
		}
	}
	sent := 0
	r.conns.Range(func(_, v any) bool {
		c := v.(*Conn)
		if path != "*" && c.path != path {
			return true
		}
		if _, ok := skip[c.id]; ok {
			return true
		}
		if err := c.Send(message); err != nil {
			r.log.Warn("广播发送失败",
				zap.String("conn_id", c.id),
				zap.String("path", c.path),
				zap.Error(err))
			return true
		}
		sent++
		return true
	})
	return sent
}

// CloseAll 向所有连接发起关闭握手，用于引擎停机
func (r *Registry) CloseAll(code int, reason string) {
	r.conns.Range(func(_, v any) bool {
		_ = v.(*Conn).Close(code, reason)
		return true
	})
}
