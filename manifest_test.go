package dao

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/dao/pkg/ws"
)

func TestLoadManifest(t *testing.T) {
	manifest := []byte(`
api:
  users:
    get: listUsers
    post:
      handler: createUser
      name: createUser
      middleware: [auth]
    ":id(\\d+)":
      get: getUser
  chat:
    socket: chatRoom
`)

	authRan := false
	reg := HandlerSet{
		Handlers: map[string]HandlerFunc{
			"listUsers":  okHandler,
			"createUser": okHandler,
			"getUser": func(c *Context) (Result, error) {
				return Text(c.Param("id")), nil
			},
		},
		Middleware: map[string]MiddlewareFunc{
			"auth": func(c *Context) (Result, error) {
				authRan = true
				return Result{}, nil
			},
		},
		Sockets: map[string]ws.Handler{
			"chatRoom": func(c *ws.Conn) {},
		},
	}

	root, err := LoadManifest(manifest, reg)
	require.NoError(t, err)

	e := newTestEngine()
	require.NoError(t, e.Mount(root))

	assert.Equal(t, http.StatusOK, serve(e, "GET", "/api/users", "", nil).Code)

	w := serve(e, "POST", "/api/users", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, authRan, "manifest middleware must run")

	w = serve(e, "GET", "/api/users/42", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())
	assert.Equal(t, http.StatusNotFound, serve(e, "GET", "/api/users/abc", "", nil).Code)

	// name 选项生效
	url, err := e.URL("createUser", nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/users", url)

	// socket 键注册到 WebSocket 路由表
	_, _, ok := e.matchSocketRoute("/api/chat")
	assert.True(t, ok)
}

func TestLoadManifestVersionLeaf(t *testing.T) {
	manifest := []byte(`
things:
  get:
    handler: v2Things
    version: v2
`)
	reg := HandlerSet{Handlers: map[string]HandlerFunc{"v2Things": okHandler}}

	root, err := LoadManifest(manifest, reg)
	require.NoError(t, err)

	e := newTestEngine()
	require.NoError(t, e.Mount(root))

	_, _, ok := e.matchRoute("GET", "/things", "v2")
	assert.True(t, ok, "versioned leaf must match its version")
	_, _, ok = e.matchRoute("GET", "/things", "v1")
	assert.False(t, ok, "versioned leaf must not match other versions")
}

func TestLoadManifestDocumentOrder(t *testing.T) {
	// 同级模式重叠：/users/abc 同时命中两个兄弟段，
	// 文档顺序在前者必须稳定胜出
	manifest := []byte(`
users:
  ":id([a-z]+)":
    get:
      handler: byID
      name: byID
  ":name([a-z]+)":
    get:
      handler: byName
      name: byName
`)
	reg := HandlerSet{Handlers: map[string]HandlerFunc{
		"byID":   okHandler,
		"byName": okHandler,
	}}

	for i := 0; i < 50; i++ {
		root, err := LoadManifest(manifest, reg)
		require.NoError(t, err)

		e := newTestEngine()
		require.NoError(t, e.Mount(root))

		rt, _, ok := e.TestRoute("GET", "/users/abc")
		require.True(t, ok)
		require.Equal(t, "byID", rt.Name, "first sibling in document order must win")
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		reg      HandlerSet
		wantErr  string
	}{
		{
			name:     "unknown handler",
			manifest: "users:\n  get: nope\n",
			reg:      HandlerSet{},
			wantErr:  "unknown handler",
		},
		{
			name:     "unknown middleware",
			manifest: "users:\n  get:\n    handler: h\n    middleware: [missing]\n",
			reg:      HandlerSet{Handlers: map[string]HandlerFunc{"h": okHandler}},
			wantErr:  "unknown middleware",
		},
		{
			name:     "missing handler key",
			manifest: "users:\n  get:\n    name: x\n",
			reg:      HandlerSet{},
			wantErr:  "missing handler",
		},
		{
			name:     "unknown socket handler",
			manifest: "chat:\n  socket: nope\n",
			reg:      HandlerSet{},
			wantErr:  "unknown socket handler",
		},
		{
			name:     "scalar path segment",
			manifest: "users: just-a-string\n",
			reg:      HandlerSet{},
			wantErr:  "expected nested mapping",
		},
		{
			name:     "invalid yaml",
			manifest: "users:\n\tbad indent",
			reg:      HandlerSet{},
			wantErr:  "parse route manifest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadManifest([]byte(tt.manifest), tt.reg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
