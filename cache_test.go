package dao

import (
	"testing"

	"github.com/tokmz/dao/pkg/metrics"
)

func TestCacheKey(t *testing.T) {
	tests := []struct {
		method, version, path string
		want                  string
	}{
		{"GET", "", "/users", "GET:/users"},
		{"GET", "v1", "/users", "GET:v1:/users"},
		{"POST", "v2", "/users/1", "POST:v2:/users/1"},
	}
	for _, tt := range tests {
		if got := cacheKey(tt.method, tt.version, tt.path); got != tt.want {
			t.Errorf("cacheKey(%s, %s, %s) = %q, want %q", tt.method, tt.version, tt.path, got, tt.want)
		}
	}
}

func TestDispatchCacheParamIsolation(t *testing.T) {
	dc := newDispatchCache(10, metrics.New(), false)
	rt := &Route{Method: "GET", Path: "/users/:id"}
	dc.put("GET:/users/1", rt, map[string]string{"id": "1"})

	_, first, ok := dc.get("GET:/users/1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	first["id"] = "mutated"

	_, second, _ := dc.get("GET:/users/1")
	if second["id"] != "1" {
		t.Errorf("cached params polluted by caller mutation: id = %q", second["id"])
	}
}

func TestDispatchCachePutBounds(t *testing.T) {
	dc := newDispatchCache(2, metrics.New(), false)
	rt := &Route{}
	dc.put("a", rt, nil)
	dc.put("b", rt, nil)
	dc.put("c", rt, nil)

	if dc.size() != 2 {
		t.Errorf("size() = %d, want 2", dc.size())
	}
	if _, _, ok := dc.get("c"); ok {
		t.Error("entry beyond capacity must not be inserted")
	}

	// 重复 put 不覆盖已有条目
	dc.put("a", &Route{Method: "POST"}, nil)
	got, _, _ := dc.get("a")
	if got != rt {
		t.Error("existing entry must not be replaced")
	}
}

func TestDispatchCachePurge(t *testing.T) {
	dc := newDispatchCache(10, metrics.New(), false)
	dc.put("x", &Route{}, nil)
	dc.purge()
	if dc.size() != 0 {
		t.Errorf("size() after purge = %d, want 0", dc.size())
	}
}
