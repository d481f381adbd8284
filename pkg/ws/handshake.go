package ws

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
)

// acceptGUID 握手固定 GUID，RFC 6455 §4.2.2
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey 计算握手应答密钥：客户端的 Sec-WebSocket-Key 拼接
// GUID 后取 SHA-1 摘要再 base64 编码。协议规定使用 SHA-1。
func AcceptKey(clientKey string) string {
	h := sha1.New()
	io.WriteString(h, clientKey)
	io.WriteString(h, acceptGUID)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// writeAccept 写出 101 切换协议响应
func writeAccept(w *bufio.Writer, clientKey string) error {
	fmt.Fprintf(w, "HTTP/1.1 101 Switching Protocols\r\n")
	fmt.Fprintf(w, "Upgrade: websocket\r\n")
	fmt.Fprintf(w, "Connection: Upgrade\r\n")
	fmt.Fprintf(w, "Sec-WebSocket-Accept: %s\r\n\r\n", AcceptKey(clientKey))
	return w.Flush()
}

// writeReject 在已接管的连接上写出拒绝状态行。
// 连接已脱离 HTTP 栈，只能手写最小响应。
func writeReject(w *bufio.Writer, status int) error {
	fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	fmt.Fprintf(w, "Connection: close\r\n\r\n")
	return w.Flush()
}
