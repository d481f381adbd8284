package dao

import (
	"reflect"
	"testing"

	"github.com/tokmz/dao/pkg/metrics"
)

func mustCompile(t *testing.T, pattern string) *CompiledRoute {
	t.Helper()
	cr, err := compilePattern(pattern)
	if err != nil {
		t.Fatalf("compile %q: %v", pattern, err)
	}
	return cr
}

func TestCompileLiteral(t *testing.T) {
	cr := mustCompile(t, "/users/list")

	params, ok := cr.Match("/users/list")
	if !ok {
		t.Fatal("exact path should match")
	}
	if len(params) != 0 {
		t.Errorf("literal route params = %v, want empty", params)
	}
	if _, ok := cr.Match("/users/list/extra"); ok {
		t.Error("longer path should not match")
	}
	if _, ok := cr.Match("/users"); ok {
		t.Error("shorter path should not match")
	}
}

func TestCompileNamedParam(t *testing.T) {
	cr := mustCompile(t, "/users/:id")

	params, ok := cr.Match("/users/42")
	if !ok {
		t.Fatal("should match")
	}
	if params["id"] != "42" {
		t.Errorf("id = %q, want 42", params["id"])
	}
	if _, ok := cr.Match("/users/"); ok {
		t.Error("empty segment should not match")
	}
	if _, ok := cr.Match("/users/a/b"); ok {
		t.Error("extra segment should not match")
	}
}

func TestCompileConstraint(t *testing.T) {
	cr := mustCompile(t, `/users/:id(\d+)`)

	params, ok := cr.Match("/users/42")
	if !ok {
		t.Fatal("digit segment should match")
	}
	if params["id"] != "42" {
		t.Errorf("id = %q, want 42", params["id"])
	}
	if _, ok := cr.Match("/users/abc"); ok {
		t.Error("non-digit segment should not match")
	}
}

func TestCompileOptionalParam(t *testing.T) {
	cr := mustCompile(t, "/posts/:page?")

	params, ok := cr.Match("/posts/2")
	if !ok || params["page"] != "2" {
		t.Fatalf("match = %v,%v; want page=2", params, ok)
	}
	params, ok = cr.Match("/posts")
	if !ok {
		t.Fatal("bare prefix should match with optional param absent")
	}
	if _, present := params["page"]; present {
		t.Errorf("absent optional param should not appear, got %v", params)
	}
}

func TestCompileSingleWildcard(t *testing.T) {
	cr := mustCompile(t, "/files/*")

	params, ok := cr.Match("/files/report.pdf")
	if !ok || params["splat"] != "report.pdf" {
		t.Fatalf("match = %v,%v; want splat=report.pdf", params, ok)
	}
	if _, ok := cr.Match("/files/a/b"); ok {
		t.Error("single wildcard must not span segments")
	}
}

func TestCompileMultiWildcard(t *testing.T) {
	cr := mustCompile(t, "/static/**")

	tests := []struct {
		path  string
		splat string
	}{
		{"/static/css/site.css", "css/site.css"},
		{"/static/a/b/c/d", "a/b/c/d"},
		{"/static/x", "x"},
	}
	for _, tt := range tests {
		params, ok := cr.Match(tt.path)
		if !ok {
			t.Errorf("%q should match", tt.path)
			continue
		}
		if params["splat"] != tt.splat {
			t.Errorf("%q: splat = %q, want %q", tt.path, params["splat"], tt.splat)
		}
	}

	if _, ok := cr.Match("/static"); !ok {
		t.Error("bare prefix should match terminal **")
	}
	if _, ok := cr.Match("/other/x"); ok {
		t.Error("different prefix should not match")
	}
}

func TestCompileMixedParamsAndWildcard(t *testing.T) {
	cr := mustCompile(t, `/api/:version(v\d+)/**`)

	params, ok := cr.Match("/api/v2/users/7/posts")
	if !ok {
		t.Fatal("should match")
	}
	if params["version"] != "v2" {
		t.Errorf("version = %q, want v2", params["version"])
	}
	if params["splat"] != "users/7/posts" {
		t.Errorf("splat = %q, want users/7/posts", params["splat"])
	}
}

func TestCompileConstraintWithGroups(t *testing.T) {
	// 约束正则自带分组不得扰乱参数映射
	cr := mustCompile(t, `/files/:name((?:img|doc)-\d+)/meta/:field`)

	params, ok := cr.Match("/files/img-12/meta/size")
	if !ok {
		t.Fatal("should match")
	}
	want := map[string]string{"name": "img-12", "field": "size"}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
}

func TestCompileIdempotent(t *testing.T) {
	a := mustCompile(t, `/users/:id(\d+)/posts/:slug?`)
	b := mustCompile(t, `/users/:id(\d+)/posts/:slug?`)

	if a.Regex.String() != b.Regex.String() {
		t.Errorf("regex sources differ: %q vs %q", a.Regex.String(), b.Regex.String())
	}
	if !reflect.DeepEqual(a.ParamNames, b.ParamNames) {
		t.Errorf("param order differs: %v vs %v", a.ParamNames, b.ParamNames)
	}
}

func TestCompileParamDeclarationOrder(t *testing.T) {
	cr := mustCompile(t, "/a/:first/b/:second/c/:third")
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(cr.ParamNames, want) {
		t.Errorf("param order = %v, want %v", cr.ParamNames, want)
	}
}

func TestCompileUnbalancedConstraint(t *testing.T) {
	if _, err := compilePattern(`/users/:id(\d+`); err == nil {
		t.Error("unbalanced constraint should fail compilation")
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		pattern string
		params  map[string]any
		want    string
	}{
		{`/users/:id(\d+)`, map[string]any{"id": 42}, "/users/42"},
		{"/posts/:slug", map[string]any{"slug": "hello world"}, "/posts/hello%20world"},
		{"/posts/:page?", nil, "/posts"},
		{"/posts/:page?", map[string]any{"page": 3}, "/posts/3"},
		{"/files/**", map[string]any{"splat": "a/b.txt"}, "/files/a/b.txt"},
		{"/", nil, "/"},
	}
	for _, tt := range tests {
		got, err := buildURL(tt.pattern, tt.params)
		if err != nil {
			t.Errorf("buildURL(%q): %v", tt.pattern, err)
			continue
		}
		if got != tt.want {
			t.Errorf("buildURL(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestBuildURLMissingParam(t *testing.T) {
	if _, err := buildURL("/users/:id", nil); err == nil {
		t.Error("missing required param should error")
	}
}

func TestCompileCacheBounded(t *testing.T) {
	m := metrics.New()
	cc := newCompileCache(2, m)

	for _, p := range []string{"/a", "/b", "/c"} {
		if _, err := cc.compile(p); err != nil {
			t.Fatal(err)
		}
	}
	if cc.size() != 2 {
		t.Errorf("cache size = %d, want capped at 2", cc.size())
	}

	// 容量满后仍能直接编译未缓存的模式
	cr, err := cc.compile("/c")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cr.Match("/c"); !ok {
		t.Error("uncached pattern should still compile and match")
	}
}

func TestCompileCacheCounts(t *testing.T) {
	m := metrics.New()
	cc := newCompileCache(10, m)

	if _, err := cc.compile("/x/:id"); err != nil {
		t.Fatal(err)
	}
	if _, err := cc.compile("/x/:id"); err != nil {
		t.Fatal(err)
	}

	snap := m.Snapshot()
	if snap.CompileMisses != 1 {
		t.Errorf("compile misses = %d, want 1", snap.CompileMisses)
	}
	if snap.CompileHits != 1 {
		t.Errorf("compile hits = %d, want 1", snap.CompileHits)
	}
}
