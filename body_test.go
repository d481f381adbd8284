package dao

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tokmz/dao/pkg/errors"
)

func TestReadBodyLimits(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		limit    int64
		wantKind errors.Kind
	}{
		{"within limit", "12345", 10, 0},
		{"at limit", "1234567890", 10, 0},
		{"over limit", "12345678901", 10, errors.KindBodyTooLarge},
		{"no limit", strings.Repeat("x", 4096), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			raw, err := readBody(r, tt.limit)
			if tt.wantKind != 0 {
				if errors.KindOf(err) != tt.wantKind {
					t.Fatalf("kind = %v, want %v", errors.KindOf(err), tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("readBody() error = %v", err)
			}
			if string(raw) != tt.body {
				t.Errorf("raw = %d bytes, want %d", len(raw), len(tt.body))
			}
		})
	}
}

func TestReadBodyEmpty(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	raw, err := readBody(r, 1024)
	if err != nil || raw != nil {
		t.Errorf("readBody(empty) = (%v, %v), want (nil, nil)", raw, err)
	}
}

func TestParseBody(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		contentType string
		wantErr     bool
		wantEmpty   bool
	}{
		{"valid json", `{"a":1}`, "application/json", false, false},
		{"json with charset", `{"a":1}`, "application/json; charset=utf-8", false, false},
		{"json suffix", `{"a":1}`, "application/vnd.api+json", false, false},
		{"invalid json", `{broken`, "application/json", true, false},
		{"null json", `null`, "application/json", false, true},
		{"form data", "a=1", "application/x-www-form-urlencoded", false, true},
		{"empty", "", "application/json", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := parseBody([]byte(tt.raw), tt.contentType)
			if tt.wantErr {
				if errors.KindOf(err) != errors.KindInvalidBody {
					t.Fatalf("kind = %v, want KindInvalidBody", errors.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBody() error = %v", err)
			}
			if body == nil {
				t.Fatal("body must never be nil")
			}
			if tt.wantEmpty && len(body) != 0 {
				t.Errorf("body = %v, want empty object", body)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<script>alert(1)</script>rest", "rest"},
		{"<SCRIPT src=x>payload</script>tail", "tail"},
		{"javascript:void(0)", "void(0)"},
		{"JAVASCRIPT:run()", "run()"},
		{"a onclick=do() b", "a do() b"},
		{"online=ok", "ok"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		if got := sanitizeString(tt.in); got != tt.want {
			t.Errorf("sanitizeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeBodyNested(t *testing.T) {
	body := map[string]any{
		"__proto__": map[string]any{"x": 1},
		"list": []any{
			"javascript:bad()",
			map[string]any{"constructor": 1, "keep": "v"},
		},
		"num": float64(3),
	}
	out := sanitizeBody(body)

	if _, ok := out["__proto__"]; ok {
		t.Error("poison key survived")
	}
	list := out["list"].([]any)
	if list[0] != "bad()" {
		t.Errorf("list[0] = %q", list[0])
	}
	inner := list[1].(map[string]any)
	if _, ok := inner["constructor"]; ok {
		t.Error("nested poison key survived")
	}
	if inner["keep"] != "v" || out["num"] != float64(3) {
		t.Error("benign values must pass through unchanged")
	}
}
