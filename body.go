package dao

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/tokmz/dao/pkg/errors"
)

// poisonKeys 原型污染风格的键，清洗时整棵子树丢弃
var poisonKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

var (
	scriptRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>|<script\b[^>]*>`)
	jsURIRe   = regexp.MustCompile(`(?i)javascript\s*:`)
	onAttrRe  = regexp.MustCompile(`(?i)\bon\w+\s*=`)
	jsonTypes = map[string]bool{"application/json": true, "text/json": true}
)

// readBody 读取请求体，超出限制返回 BodyTooLarge
// Content-Length 声明超限时不读即拒；未声明时按 limit+1 截读判定
func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return nil, nil
	}
	if limit > 0 && r.ContentLength > limit {
		return nil, errors.ErrBodyTooLarge
	}
	reader := io.Reader(r.Body)
	if limit > 0 {
		reader = io.LimitReader(r.Body, limit+1)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidBody, "read request body", err)
	}
	if limit > 0 && int64(len(raw)) > limit {
		return nil, errors.ErrBodyTooLarge
	}
	return raw, nil
}

// parseBody 解析请求体为对象
// JSON 内容解析失败返回 InvalidBody；非 JSON 或空请求体得到空对象
func parseBody(raw []byte, contentType string) (map[string]any, error) {
	if len(raw) == 0 || !isJSONContent(contentType) {
		return map[string]any{}, nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errors.Wrap(errors.KindInvalidBody, "invalid JSON body", err)
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

func isJSONContent(contentType string) bool {
	mt := strings.TrimSpace(strings.Split(contentType, ";")[0])
	return jsonTypes[strings.ToLower(mt)] || strings.HasSuffix(mt, "+json")
}

// sanitizeBody 请求体就地清洗（纵深防御，非完整 HTML 消毒）
// 丢弃原型污染风格的键；字符串值剥除 script 块、
// javascript: 伪协议与内联 on*= 事件属性
func sanitizeBody(body map[string]any) map[string]any {
	for k, v := range body {
		if poisonKeys[k] {
			delete(body, k)
			continue
		}
		body[k] = sanitizeValue(v)
	}
	return body
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return sanitizeString(val)
	case map[string]any:
		return sanitizeBody(val)
	case []any:
		for i, item := range val {
			val[i] = sanitizeValue(item)
		}
		return val
	default:
		return v
	}
}

func sanitizeString(s string) string {
	s = scriptRe.ReplaceAllString(s, "")
	s = jsURIRe.ReplaceAllString(s, "")
	s = onAttrRe.ReplaceAllString(s, "")
	return s
}
