package ws

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tokmz/dao/pkg/logger"
)

// State 连接状态
type State int32

const (
	StateOpen    State = iota // 握手完成，可收发
	StateClosing              // 关闭握手进行中
	StateClosed               // 已终结
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler 升级成功后在连接协程中调用的处理函数
type Handler func(*Conn)

// Conn 一条已完成握手的 WebSocket 连接。
// Send、Close、Ping 可以跨协程调用；读循环由 Serve 驱动。
type Conn struct {
	id     string
	path   string
	params map[string]string

	nc  net.Conn
	br  *bufio.Reader
	cfg *Config

	writeMu sync.Mutex
	state   atomic.Int32

	mu         sync.Mutex // 保护回调与关闭信息
	onMessage  func(message string)
	onClose    func(code int, reason string)
	routeClose func(*Conn)
	closeCode  int
	closeTxt   string

	limiter  *rate.Limiter
	pingStop chan struct{}

	registry  *Registry
	log       logger.Logger
	metrics   Metrics
	closeOnce sync.Once
}

func newConn(nc net.Conn, br *bufio.Reader, path string, params map[string]string, cfg *Config, reg *Registry, log logger.Logger, m Metrics) *Conn {
	c := &Conn{
		id:        uuid.NewString(),
		path:      path,
		params:    params,
		nc:        nc,
		br:        br,
		cfg:       cfg,
		pingStop:  make(chan struct{}),
		registry:  reg,
		log:       log,
		metrics:   m,
		closeCode: CloseAbnormal, // 未完成关闭握手即终结时的默认状态码
	}
	if cfg.MessageRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MessageRate), cfg.MessageBurst)
	}
	return c
}

// ID 返回连接唯一标识
func (c *Conn) ID() string { return c.id }

// Path 返回升级请求匹配的路径
func (c *Conn) Path() string { return c.path }

// Param 返回升级路径中捕获的参数
func (c *Conn) Param(name string) string { return c.params[name] }

// Params 返回全部路径参数的副本
func (c *Conn) Params() map[string]string {
	out := make(map[string]string, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// State 返回当前连接状态
func (c *Conn) State() State { return State(c.state.Load()) }

// RemoteAddr 返回对端地址
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// OnMessage 注册文本消息回调
func (c *Conn) OnMessage(fn func(message string)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

// OnClose 注册关闭回调，连接终结时恰好调用一次
func (c *Conn) OnClose(fn func(code int, reason string)) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

// Send 发送一条文本消息
func (c *Conn) Send(message string) error {
	if c.State() != StateOpen {
		return ErrConnectionClosed
	}
	if err := c.write(EncodeFrame(OpText, []byte(message))); err != nil {
		return err
	}
	c.metrics.MessageSent()
	return nil
}

// Ping 发送 Ping 帧
func (c *Conn) Ping(payload []byte) error {
	if c.State() != StateOpen {
		return ErrConnectionClosed
	}
	return c.write(EncodeFrame(OpPing, payload))
}

// Close 主动发起关闭握手：发送关闭帧并进入 Closing，
// 在宽限期内等待对端回应，读循环消费回应后终结连接。
// 连接已在关闭流程中时为空操作。
func (c *Conn) Close(code int, reason string) error {
	if !c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		return nil
	}
	c.setCloseInfo(code, reason)
	err := c.write(EncodeClose(uint16(code), reason))
	// 对端沉默时由读超时兜底
	_ = c.nc.SetReadDeadline(time.Now().Add(c.cfg.CloseGrace))
	return err
}

// Serve 运行读循环直至连接终结，升级完成后在连接协程中调用
func (c *Conn) Serve() {
	if c.cfg.PingInterval > 0 {
		go c.pingLoop()
	}
	defer c.teardown()
	for {
		if c.cfg.ReadTimeout > 0 && c.State() == StateOpen {
			_ = c.nc.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
		f, err := ReadFrame(c.br, c.cfg.MaxMessageSize)
		switch {
		case err == nil:
		case errors.Is(err, ErrMalformedFrame), errors.Is(err, ErrFrameTooLarge):
			c.log.Debug("丢弃异常帧",
				zap.String("conn_id", c.id),
				zap.Error(err))
			continue
		default:
			return
		}

		switch f.Opcode {
		case OpClose:
			code, reason := ParseClose(f.Payload)
			if c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
				// 对端发起关闭，回送同码关闭帧
				c.setCloseInfo(code, reason)
				_ = c.write(EncodeClose(uint16(code), reason))
			}
			return
		case OpPing:
			_ = c.write(EncodeFrame(OpPong, f.Payload))
		case OpPong:
			// 心跳回应
		case OpText:
			if c.limiter != nil && !c.limiter.Allow() {
				c.log.Warn("入站消息超出限速，丢弃",
					zap.String("conn_id", c.id),
					zap.String("path", c.path))
				continue
			}
			c.metrics.MessageReceived()
			c.dispatchMessage(string(f.Payload))
		default:
			// 二进制帧不在文本协议范围内
		}
	}
}

// write 序列化写出一个完整帧
func (c *Conn) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	_, err := c.nc.Write(frame)
	return err
}

// dispatchMessage 调用消息回调，panic 被隔离为日志
func (c *Conn) dispatchMessage(msg string) {
	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("消息回调 panic",
				zap.String("conn_id", c.id),
				zap.Any("panic", r))
		}
	}()
	fn(msg)
}

// teardown 终结连接：置 Closed、关闭底层连接、从注册表注销，
// 最后运行关闭回调。回调 panic 被隔离，不影响清理。
func (c *Conn) teardown() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.pingStop)
		_ = c.nc.Close()
		if c.registry != nil {
			c.registry.remove(c.id)
		}

		c.mu.Lock()
		code, reason := c.closeCode, c.closeTxt
		routeClose, onClose := c.routeClose, c.onClose
		c.mu.Unlock()

		if routeClose != nil {
			c.invokeCloseCallback(func() { routeClose(c) })
		}
		if onClose != nil {
			c.invokeCloseCallback(func() { onClose(code, reason) })
		}
		c.log.Info("连接关闭",
			zap.String("conn_id", c.id),
			zap.String("path", c.path),
			zap.Int("code", code),
			zap.String("reason", reason))
	})
}

func (c *Conn) invokeCloseCallback(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("关闭回调 panic",
				zap.String("conn_id", c.id),
				zap.Any("panic", r))
		}
	}()
	fn()
}

func (c *Conn) setCloseInfo(code int, reason string) {
	c.mu.Lock()
	c.closeCode, c.closeTxt = code, reason
	c.mu.Unlock()
}

// pingLoop 周期性发送 Ping，连接终结或写失败时退出
func (c *Conn) pingLoop() {
	t := time.NewTicker(c.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-c.pingStop:
			return
		case <-t.C:
			if err := c.Ping(nil); err != nil {
				return
			}
		}
	}
}
