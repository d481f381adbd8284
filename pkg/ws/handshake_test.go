package ws

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestAcceptKey(t *testing.T) {
	// RFC 6455 §1.3 示例向量
	got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("AcceptKey = %q, want %q", got, want)
	}
}

func TestWriteAccept(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := writeAccept(w, "dGhlIHNhbXBsZSBub25jZQ=="); err != nil {
		t.Fatalf("writeAccept: %v", err)
	}
	resp := buf.String()

	if !strings.HasPrefix(resp, "HTTP/1.1 101 Switching Protocols\r\n") {
		t.Errorf("status line missing: %q", resp)
	}
	for _, want := range []string{
		"Upgrade: websocket\r\n",
		"Connection: Upgrade\r\n",
		"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n",
	} {
		if !strings.Contains(resp, want) {
			t.Errorf("response missing %q", want)
		}
	}
	if !strings.HasSuffix(resp, "\r\n\r\n") {
		t.Error("response must end with blank line")
	}
}

func TestWriteReject(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{400, "HTTP/1.1 400 Bad Request\r\n"},
		{403, "HTTP/1.1 403 Forbidden\r\n"},
		{404, "HTTP/1.1 404 Not Found\r\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		if err := writeReject(w, tt.status); err != nil {
			t.Fatalf("writeReject(%d): %v", tt.status, err)
		}
		if !strings.HasPrefix(buf.String(), tt.want) {
			t.Errorf("writeReject(%d) = %q, want prefix %q", tt.status, buf.String(), tt.want)
		}
	}
}
