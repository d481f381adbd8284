package ws

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func upgradeRequest(key, origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	if key != "" {
		req.Header.Set("Sec-WebSocket-Key", key)
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func readRawResponse(t *testing.T, br *bufio.Reader) string {
	t.Helper()
	var sb strings.Builder
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("read response: %v", err)
		}
		sb.WriteString(line)
		if line == "\r\n" {
			break
		}
	}
	return sb.String()
}

func TestIsUpgradeRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		connection string
		upgrade    string
		want       bool
	}{
		{"standard", "GET", "Upgrade", "websocket", true},
		{"token list", "GET", "keep-alive, Upgrade", "websocket", true},
		{"case insensitive", "GET", "upgrade", "WebSocket", true},
		{"wrong method", "POST", "Upgrade", "websocket", false},
		{"missing upgrade header", "GET", "Upgrade", "", false},
		{"missing connection header", "GET", "", "websocket", false},
		{"plain request", "GET", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/ws", nil)
			if tt.connection != "" {
				req.Header.Set("Connection", tt.connection)
			}
			if tt.upgrade != "" {
				req.Header.Set("Upgrade", tt.upgrade)
			}
			if got := IsUpgradeRequest(req); got != tt.want {
				t.Errorf("IsUpgradeRequest = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpgraderAccept(t *testing.T) {
	u := NewUpgrader(nil, nil, nil)
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	brw := bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server))

	type result struct {
		c   *Conn
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := u.Accept(server, brw, upgradeRequest("dGhlIHNhbXBsZSBub25jZQ==", ""), "/ws/chat", map[string]string{"room": "1"}, nil)
		done <- result{c, err}
	}()

	resp := readRawResponse(t, bufio.NewReader(client))
	if !strings.Contains(resp, "101 Switching Protocols") {
		t.Fatalf("response = %q, want 101", resp)
	}
	if !strings.Contains(resp, "Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=") {
		t.Fatalf("response missing accept key: %q", resp)
	}

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("Accept: %v", res.err)
		}
		if res.c.Path() != "/ws/chat" || res.c.Param("room") != "1" {
			t.Fatalf("conn path/params = %q %v", res.c.Path(), res.c.Params())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Accept")
	}
	if u.Registry().Count() != 1 {
		t.Fatalf("registry count = %d, want 1", u.Registry().Count())
	}
}

func TestUpgraderRejectMissingKey(t *testing.T) {
	u := NewUpgrader(nil, nil, nil)
	server, client := net.Pipe()
	t.Cleanup(func() { _ = client.Close() })
	brw := bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server))

	errCh := make(chan error, 1)
	go func() {
		_, err := u.Accept(server, brw, upgradeRequest("", ""), "/ws", nil, nil)
		errCh <- err
	}()

	resp := readRawResponse(t, bufio.NewReader(client))
	if !strings.Contains(resp, "400 Bad Request") {
		t.Fatalf("response = %q, want 400", resp)
	}
	select {
	case err := <-errCh:
		if err != ErrMissingKey {
			t.Fatalf("err = %v, want ErrMissingKey", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Accept")
	}
	// 拒绝后连接被关闭
	if _, err := client.Read(make([]byte, 1)); err == nil {
		t.Fatal("connection must be closed after reject")
	}
	if u.Registry().Count() != 0 {
		t.Fatalf("registry count = %d, want 0", u.Registry().Count())
	}
}

func TestUpgraderOriginWhitelist(t *testing.T) {
	cfg := &Config{AllowedOrigins: []string{"https://app.example.com"}}
	u := NewUpgrader(cfg, nil, nil)

	t.Run("disallowed origin", func(t *testing.T) {
		server, client := net.Pipe()
		t.Cleanup(func() { _ = client.Close() })
		brw := bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server))

		errCh := make(chan error, 1)
		go func() {
			_, err := u.Accept(server, brw, upgradeRequest("a2V5", "https://evil.example.com"), "/ws", nil, nil)
			errCh <- err
		}()
		resp := readRawResponse(t, bufio.NewReader(client))
		if !strings.Contains(resp, "403 Forbidden") {
			t.Fatalf("response = %q, want 403", resp)
		}
		if err := <-errCh; err != ErrOriginNotAllowed {
			t.Fatalf("err = %v, want ErrOriginNotAllowed", err)
		}
	})

	t.Run("allowed origin", func(t *testing.T) {
		server, client := net.Pipe()
		t.Cleanup(func() {
			_ = server.Close()
			_ = client.Close()
		})
		brw := bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server))

		errCh := make(chan error, 1)
		go func() {
			_, err := u.Accept(server, brw, upgradeRequest("a2V5", "https://app.example.com"), "/ws", nil, nil)
			errCh <- err
		}()
		resp := readRawResponse(t, bufio.NewReader(client))
		if !strings.Contains(resp, "101 Switching Protocols") {
			t.Fatalf("response = %q, want 101", resp)
		}
		if err := <-errCh; err != nil {
			t.Fatalf("Accept: %v", err)
		}
	})
}
