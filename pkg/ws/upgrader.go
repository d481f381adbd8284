package ws

import (
	"bufio"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tokmz/dao/pkg/logger"
)

// Upgrader 在已被接管的 TCP 连接上完成 WebSocket 握手。
// 升级成功的连接自动注册到 Registry。
type Upgrader struct {
	cfg         *Config
	reg         *Registry
	log         logger.Logger
	metrics     Metrics
	checkOrigin func(*http.Request) bool
}

// NewUpgrader 创建升级器。cfg 为 nil 时使用默认配置。
func NewUpgrader(cfg *Config, log logger.Logger, m Metrics) *Upgrader {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.setDefaults()
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = NoopMetrics{}
	}
	return &Upgrader{
		cfg:         cfg,
		reg:         NewRegistry(log, m),
		log:         log,
		metrics:     m,
		checkOrigin: cfg.resolveOriginCheck(),
	}
}

// Registry 返回连接注册表
func (u *Upgrader) Registry() *Registry { return u.reg }

// IsUpgradeRequest 判断请求是否为 WebSocket 升级请求：
// GET 方法且 Connection 头含 upgrade、Upgrade 头含 websocket
func IsUpgradeRequest(r *http.Request) bool {
	return r.Method == http.MethodGet &&
		headerContainsToken(r.Header, "Connection", "upgrade") &&
		headerContainsToken(r.Header, "Upgrade", "websocket")
}

// headerContainsToken 按逗号分隔的 token 列表匹配头部值
func headerContainsToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}

// Reject 在已接管的连接上写出拒绝状态行并关闭连接
func (u *Upgrader) Reject(nc net.Conn, bw *bufio.Writer, status int) {
	if err := writeReject(bw, status); err != nil {
		u.log.Debug("写拒绝响应失败", zap.Error(err))
	}
	_ = nc.Close()
}

// Accept 校验升级请求并完成握手。缺失 Sec-WebSocket-Key 拒绝
// 400，Origin 不被允许拒绝 403。成功后连接已注册到 Registry，
// 调用方负责运行 Conn.Serve；routeClose 为路由注册的关闭回调，
// 可以为 nil。
func (u *Upgrader) Accept(nc net.Conn, brw *bufio.ReadWriter, r *http.Request, path string, params map[string]string, routeClose func(*Conn)) (*Conn, error) {
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		u.Reject(nc, brw.Writer, http.StatusBadRequest)
		return nil, ErrMissingKey
	}
	if !u.checkOrigin(r) {
		u.Reject(nc, brw.Writer, http.StatusForbidden)
		return nil, ErrOriginNotAllowed
	}
	if err := writeAccept(brw.Writer, key); err != nil {
		_ = nc.Close()
		return nil, err
	}

	c := newConn(nc, brw.Reader, path, params, u.cfg, u.reg, u.log, u.metrics)
	c.routeClose = routeClose
	u.reg.add(c)
	u.log.Info("连接建立",
		zap.String("conn_id", c.id),
		zap.String("path", path),
		zap.String("remote", nc.RemoteAddr().String()))
	return c, nil
}
