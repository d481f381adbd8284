package dao

import (
	"strings"
	"testing"

	"github.com/tokmz/dao/pkg/errors"
)

func negotiateTypes(types ...string) ContentHandlers {
	hs := make(ContentHandlers, len(types))
	for i, typ := range types {
		hs[i] = ContentHandler{Type: typ, Handler: okHandler}
	}
	return hs
}

func TestParseAcceptQualityOrder(t *testing.T) {
	clauses := parseAccept("application/json;q=0.5, text/xml;q=0.9, text/plain")
	if len(clauses) != 3 {
		t.Fatalf("clauses = %d, want 3", len(clauses))
	}
	want := []string{"text/plain", "text/xml", "application/json"}
	for i, mt := range want {
		if clauses[i].mediaType != mt {
			t.Errorf("clause %d = %q, want %q", i, clauses[i].mediaType, mt)
		}
	}
	if clauses[1].quality != 0.9 {
		t.Errorf("text/xml q = %v, want 0.9", clauses[1].quality)
	}
}

func TestParseAcceptStableForEqualQuality(t *testing.T) {
	clauses := parseAccept("text/html, application/json")
	if clauses[0].mediaType != "text/html" || clauses[1].mediaType != "application/json" {
		t.Errorf("equal-quality order not preserved: %v", clauses)
	}
}

func TestNegotiatePrefersHigherQuality(t *testing.T) {
	supported := negotiateTypes("application/json", "text/xml")

	selected, err := negotiate("application/json;q=0.5, text/xml;q=0.9", supported)
	if err != nil {
		t.Fatal(err)
	}
	if selected.Type != "text/xml" {
		t.Errorf("selected = %q, want text/xml", selected.Type)
	}
}

func TestNegotiateWildcards(t *testing.T) {
	supported := negotiateTypes("application/json", "text/html")

	selected, err := negotiate("text/*", supported)
	if err != nil {
		t.Fatal(err)
	}
	if selected.Type != "text/html" {
		t.Errorf("text/* selected %q, want text/html", selected.Type)
	}

	selected, err = negotiate("image/png, */*;q=0.1", supported)
	if err != nil {
		t.Fatal(err)
	}
	if selected.Type != "application/json" {
		t.Errorf("*/* fallback selected %q, want first supported", selected.Type)
	}
}

func TestNegotiateEmptyAcceptDefaultsToFirst(t *testing.T) {
	supported := negotiateTypes("text/xml", "application/json")
	selected, err := negotiate("", supported)
	if err != nil {
		t.Fatal(err)
	}
	if selected.Type != "text/xml" {
		t.Errorf("selected = %q, want first supported", selected.Type)
	}
}

func TestNegotiateNotAcceptable(t *testing.T) {
	supported := negotiateTypes("application/json")

	_, err := negotiate("image/png", supported)
	if err == nil {
		t.Fatal("should fail")
	}
	if errors.KindOf(err) != errors.KindNotAcceptable {
		t.Errorf("kind = %v, want NotAcceptable", errors.KindOf(err))
	}
	if !strings.Contains(errors.MessageOf(err), "application/json") {
		t.Errorf("message should list supported types, got %q", errors.MessageOf(err))
	}
}

func TestEncodeXMLMap(t *testing.T) {
	got := encodeXML(map[string]any{
		"name":  "a & b",
		"count": 2,
	})
	// 键排序保证确定性输出
	want := "<response><count>2</count><name>a &amp; b</name></response>"
	if got != want {
		t.Errorf("xml = %q, want %q", got, want)
	}
}

func TestEncodeXMLArray(t *testing.T) {
	got := encodeXML(map[string]any{"tags": []any{"x", "<y>"}})
	want := "<response><tags><item>x</item><item>&lt;y&gt;</item></tags></response>"
	if got != want {
		t.Errorf("xml = %q, want %q", got, want)
	}
}

func TestEncodeXMLEscapesAll(t *testing.T) {
	got := encodeXML(`&<>"'`)
	want := "<response>&amp;&lt;&gt;&quot;&apos;</response>"
	if got != want {
		t.Errorf("xml = %q, want %q", got, want)
	}
}

func TestEncodeXMLStruct(t *testing.T) {
	type payload struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	got := encodeXML(payload{ID: 7, Name: "n"})
	want := "<response><id>7</id><name>n</name></response>"
	if got != want {
		t.Errorf("xml = %q, want %q", got, want)
	}
}
