package dao

import (
	"net/http"
	"testing"

	"github.com/tokmz/dao/pkg/ws"
)

func TestMountTree(t *testing.T) {
	e := newTestEngine()

	root := Tree()
	root.Child("api", func(api *PathNode) {
		api.Child("users", func(users *PathNode) {
			users.GET(okHandler)
			users.POST(okHandler)
			users.HandleAt("GET", `/:id(\d+)`, okHandler)
		})
		api.Child("health", nil).GET(okHandler)
	})

	if err := e.Mount(root); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}

	want := []struct {
		method, path string
	}{
		{"GET", "/api/users"},
		{"POST", "/api/users"},
		{"GET", "/api/users/7"},
		{"GET", "/api/health"},
	}
	for _, tt := range want {
		if _, _, ok := e.matchRoute(tt.method, tt.path, ""); !ok {
			t.Errorf("matchRoute(%s %s) = miss, want hit", tt.method, tt.path)
		}
	}
	if _, _, ok := e.matchRoute("GET", "/api/users/abc", ""); ok {
		t.Error("constraint leaf matched non-digit id")
	}
}

func TestMountTreeMiddleware(t *testing.T) {
	e := newTestEngine()

	var order []string
	tag := func(name string) MiddlewareFunc {
		return func(c *Context) (Result, error) {
			order = append(order, name)
			return Result{}, nil
		}
	}

	root := Tree()
	root.Use(tag("root"))
	root.Child("admin", func(admin *PathNode) {
		admin.Use(tag("admin"))
		admin.GET(okHandler)
	})
	root.Child("public", nil).GET(okHandler)

	if err := e.Mount(root); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}

	w := serve(e, "GET", "/admin", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /admin status = %d", w.Code)
	}
	if len(order) != 2 || order[0] != "root" || order[1] != "admin" {
		t.Errorf("middleware order = %v, want [root admin]", order)
	}

	order = nil
	serve(e, "GET", "/public", "", nil)
	if len(order) != 1 || order[0] != "root" {
		t.Errorf("sibling subtree order = %v, want [root]", order)
	}
}

func TestMountNilTree(t *testing.T) {
	e := newTestEngine()
	if err := e.Mount(nil); err != nil {
		t.Fatalf("Mount(nil) error = %v", err)
	}
	if got := len(e.Routes()); got != 0 {
		t.Errorf("Routes() after nil mount = %d, want 0", got)
	}
}

func TestMountTreeSocket(t *testing.T) {
	e := newTestEngine()

	root := Tree()
	root.Child("chat", func(chat *PathNode) {
		chat.Child(":room", nil).Socket(func(c *ws.Conn) {})
	})

	if err := e.Mount(root); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	rt, params, ok := e.matchSocketRoute("/chat/lobby")
	if !ok || rt == nil {
		t.Fatal("socket leaf not registered")
	}
	if params["room"] != "lobby" {
		t.Errorf("room param = %q, want lobby", params["room"])
	}
}
