package dao

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/dao/pkg/ws"
)

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, path), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSocketEcho(t *testing.T) {
	e := newTestEngine()
	e.Socket("/echo/:room", func(c *ws.Conn) {
		room := c.Param("room")
		c.OnMessage(func(message string) {
			_ = c.Send(room + ": " + message)
		})
	})

	srv := httptest.NewServer(e)
	defer srv.Close()

	conn := dialWS(t, srv, "/echo/lobby")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "lobby: hello", string(msg))
}

func TestSocketUnknownPath(t *testing.T) {
	e := newTestEngine()
	e.Socket("/echo", func(c *ws.Conn) {})

	srv := httptest.NewServer(e)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/nope"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSocketBroadcast(t *testing.T) {
	e := newTestEngine()

	joined := make(chan string, 4)
	e.Socket("/room/:name", func(c *ws.Conn) {
		joined <- c.ID()
	})

	srv := httptest.NewServer(e)
	defer srv.Close()

	a := dialWS(t, srv, "/room/go")
	b := dialWS(t, srv, "/room/go")
	other := dialWS(t, srv, "/room/rust")

	var ids []string
	for i := 0; i < 3; i++ {
		select {
		case id := <-joined:
			ids = append(ids, id)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for connections")
		}
	}
	require.EqualValues(t, 3, e.Connections())

	// 只广播到 /room/go 的连接
	sent := e.Broadcast("/room/go", "ping")
	assert.Equal(t, 2, sent)

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "ping", string(msg))
	}

	// rust 房间不应收到任何消息
	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "excluded path must not receive broadcast")

	// 排除其中一个连接
	excluded := ids[0]
	sent = e.Broadcast("*", "again", excluded)
	assert.Equal(t, 2, sent)
}

func TestSocketCloseHandler(t *testing.T) {
	e := newTestEngine()

	closed := make(chan string, 1)
	e.Socket("/live", func(c *ws.Conn) {}, WithCloseHandler(func(c *ws.Conn) {
		closed <- c.ID()
	}))

	srv := httptest.NewServer(e)
	defer srv.Close()

	conn := dialWS(t, srv, "/live")
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close handler not invoked")
	}

	// 注销后广播不再计入该连接
	assert.Eventually(t, func() bool {
		return e.Connections() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSocketLookupByID(t *testing.T) {
	e := newTestEngine()

	ready := make(chan string, 1)
	e.Socket("/one", func(c *ws.Conn) {
		ready <- c.ID()
	})

	srv := httptest.NewServer(e)
	defer srv.Close()

	dialWS(t, srv, "/one")
	var id string
	select {
	case id = <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not invoked")
	}

	conn, ok := e.Connection(id)
	require.True(t, ok)
	assert.Equal(t, "/one", conn.Path())

	_, ok = e.Connection("missing")
	assert.False(t, ok)
}
