package dao

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"github.com/tokmz/dao/pkg/errors"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
)

// ContentHandler 一种媒体类型及其处理函数
type ContentHandler struct {
	// Type 媒体类型，如 application/json、text/xml
	Type string

	// Handler 该类型选中时执行的处理函数
	Handler HandlerFunc
}

// ContentHandlers 内容协商处理函数表，按偏好排序
// 首个条目在通配展开与兜底时优先
type ContentHandlers []ContentHandler

// acceptClause Accept 头中的一项
type acceptClause struct {
	mediaType string
	quality   float64
}

// parseAccept 解析 Accept 头为按 q 降序的媒体类型列表
// 未声明 q 时取 1.0；排序稳定，等权项保持书写顺序
func parseAccept(header string) []acceptClause {
	if header == "" {
		return nil
	}
	var clauses []acceptClause
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		mt := strings.ToLower(strings.TrimSpace(fields[0]))
		if mt == "" {
			continue
		}
		q := 1.0
		for _, f := range fields[1:] {
			f = strings.TrimSpace(f)
			if v, ok := strings.CutPrefix(f, "q="); ok {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					q = parsed
				}
			}
		}
		clauses = append(clauses, acceptClause{mediaType: mt, quality: q})
	}
	sort.SliceStable(clauses, func(i, j int) bool {
		return clauses[i].quality > clauses[j].quality
	})
	return clauses
}

// negotiate 依据 Accept 头在支持的类型中选择
// 精确匹配 → type/* 展开 → */* 兜底到首个支持类型；
// 空 Accept 视同 */*；全不匹配返回 NotAcceptable
func negotiate(accept string, supported ContentHandlers) (ContentHandler, error) {
	if len(supported) == 0 {
		return ContentHandler{}, errors.ErrNotAcceptable
	}
	clauses := parseAccept(accept)
	if len(clauses) == 0 {
		return supported[0], nil
	}

	wildcard := false
	for _, cl := range clauses {
		if cl.quality <= 0 {
			continue
		}
		switch {
		case cl.mediaType == "*/*":
			wildcard = true
		case strings.HasSuffix(cl.mediaType, "/*"):
			major := strings.TrimSuffix(cl.mediaType, "/*")
			for _, h := range supported {
				if strings.HasPrefix(strings.ToLower(h.Type), major+"/") {
					return h, nil
				}
			}
		default:
			for _, h := range supported {
				if strings.ToLower(h.Type) == cl.mediaType {
					return h, nil
				}
			}
		}
	}
	if wildcard {
		return supported[0], nil
	}

	types := make([]string, len(supported))
	for i, h := range supported {
		types[i] = h.Type
	}
	return ContentHandler{}, errors.ErrNotAcceptable.
		WithMessagef("no acceptable content type, supported: %s", strings.Join(types, ", "))
}

// writeNegotiated 按协商出的类型序列化处理结果
// JSON 负载在非 JSON 类型下转为对应表现形式：XML 经递归编码，
// HTML 对字符串透传、其余包 <pre>，文本对字符串透传、其余 JSON 化
func writeNegotiated(c *Context, mediaType string, res Result) error {
	status := res.StatusCode()
	if status == 0 {
		status = 200
	}
	switch res.Kind() {
	case ResultNone, ResultNoContent, ResultRedirect, ResultWritten:
		// 非负载结果不参与协商序列化，走统一写出路径
		return writeResult(c, res)
	}

	mt := strings.ToLower(mediaType)
	switch {
	case mt == "application/json" || strings.HasSuffix(mt, "+json"):
		if res.Kind() == ResultJSON {
			return c.JSON(status, res.Value())
		}
		return c.JSON(status, res.Body())
	case mt == "text/xml" || mt == "application/xml" || strings.HasSuffix(mt, "+xml"):
		var payload string
		if res.Kind() == ResultJSON {
			payload = encodeXML(res.Value())
		} else {
			payload = encodeXML(res.Body())
		}
		return c.Data(status, mediaType+"; charset=utf-8", []byte(payload))
	case mt == "text/html":
		return c.HTML(status, htmlBody(res))
	default:
		return c.Data(status, mediaType+"; charset=utf-8", []byte(textBody(res)))
	}
}

func htmlBody(res Result) string {
	switch res.Kind() {
	case ResultHTML, ResultText:
		return res.Body()
	default:
		b, err := json.MarshalIndent(res.Value(), "", "  ")
		if err != nil {
			return "<pre>" + html.EscapeString(fmt.Sprint(res.Value())) + "</pre>"
		}
		return "<pre>" + html.EscapeString(string(b)) + "</pre>"
	}
}

func textBody(res Result) string {
	switch res.Kind() {
	case ResultText, ResultHTML:
		return res.Body()
	default:
		b, err := json.Marshal(res.Value())
		if err != nil {
			return fmt.Sprint(res.Value())
		}
		return string(b)
	}
}

// encodeXML 极简对象 → XML 编码器
// 根元素 <response>；map 键排序保证确定性输出；
// 数组元素折叠为重复的 <item>；文本内容与属性字符均转义
func encodeXML(v any) string {
	var b strings.Builder
	b.WriteString("<response>")
	encodeXMLValue(&b, v)
	b.WriteString("</response>")
	return b.String()
}

func encodeXMLValue(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			tag := xmlName(k)
			b.WriteString("<" + tag + ">")
			encodeXMLValue(b, val[k])
			b.WriteString("</" + tag + ">")
		}
	case []any:
		for _, item := range val {
			b.WriteString("<item>")
			encodeXMLValue(b, item)
			b.WriteString("</item>")
		}
	case string:
		b.WriteString(escapeXML(val))
	default:
		// 结构体等经 JSON 中转为 map/切片后再编码
		raw, err := json.Marshal(val)
		if err != nil {
			b.WriteString(escapeXML(fmt.Sprint(val)))
			return
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			b.WriteString(escapeXML(string(raw)))
			return
		}
		switch decoded.(type) {
		case map[string]any, []any:
			encodeXMLValue(b, decoded)
		default:
			b.WriteString(escapeXML(fmt.Sprint(decoded)))
		}
	}
}

// xmlName 过滤非法标签字符，空结果退化为 field
func xmlName(k string) string {
	var b strings.Builder
	for i, r := range k {
		ok := r == '_' || r == '-' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(i > 0 && r >= '0' && r <= '9')
		if ok {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "field"
	}
	return b.String()
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
