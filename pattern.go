package dao

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tokmz/dao/pkg/metrics"
)

// CompiledRoute 编译后的路由模式
// 同一模式字符串的编译结果结构相同，可安全复用；Match 并发安全
type CompiledRoute struct {
	// Regex 锚定的匹配正则，参数以 p0、p1… 命名捕获组表达，
	// 约束正则自带的捕获组因此不会扰乱参数映射
	Regex *regexp.Regexp

	// ParamNames 参数名，按声明序排列，与命名捕获组序一致
	ParamNames []string

	// Source 原始模式字符串
	Source string
}

// Match 将请求路径与模式比对
// 命中时返回参数表；未匹配到值的可选参数不出现在表中
func (cr *CompiledRoute) Match(path string) (map[string]string, bool) {
	m := cr.Regex.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	params := make(map[string]string, len(cr.ParamNames))
	names := cr.Regex.SubexpNames()
	for i, sub := range m {
		if i == 0 || sub == "" {
			continue
		}
		idx := paramGroupIndex(names[i])
		if idx < 0 || idx >= len(cr.ParamNames) {
			continue
		}
		params[cr.ParamNames[idx]] = sub
	}
	return params, true
}

// paramGroupIndex 解析 pN 形式的捕获组名，非参数组返回 -1
func paramGroupIndex(name string) int {
	if len(name) < 2 || name[0] != 'p' {
		return -1
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil {
		return -1
	}
	return n
}

// paramToken 模式中的一个 :name(constraint)? 参数标记
type paramToken struct {
	name       string
	constraint string
	optional   bool
	start, end int // 在所属段中的位置 [start, end)
}

// scanParam 从 s 的 i 处解析参数标记，i 必须指向 ':'
// 冒号后无参数名时 ok 为假；约束括号不配对时返回错误
func scanParam(s string, i int) (tok paramToken, ok bool, err error) {
	j := i + 1
	for j < len(s) && isWordByte(s[j]) {
		j++
	}
	if j == i+1 {
		return paramToken{}, false, nil
	}
	tok = paramToken{name: s[i+1 : j], start: i}

	if j < len(s) && s[j] == '(' {
		depth := 1
		k := j + 1
		for k < len(s) && depth > 0 {
			switch s[k] {
			case '\\':
				k++ // 转义字符连同其后一位跳过
			case '(':
				depth++
			case ')':
				depth--
			}
			k++
		}
		if depth != 0 {
			return paramToken{}, false, fmt.Errorf("unbalanced constraint in segment %q", s)
		}
		tok.constraint = s[j+1 : k-1]
		j = k
	}

	if j < len(s) && s[j] == '?' {
		tok.optional = true
		j++
	}
	tok.end = j
	return tok, true, nil
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// paramGroups 参数名收集器，按声明序分配命名捕获组
type paramGroups struct {
	names []string
}

// add 登记参数名并返回对应命名捕获组的前缀
func (pg *paramGroups) add(name string) string {
	idx := len(pg.names)
	pg.names = append(pg.names, name)
	return fmt.Sprintf("(?P<p%d>", idx)
}

// compilePattern 将路径模式编译为匹配器
// 语法：字面量段；:name 必选参数；:name? 可选参数；
// :name(regex) 受约束参数（约束按原文嵌入，不做隐式锚定）；
// * 单段通配；** 多段通配（必须为末段，其后内容不参与匹配），
// 通配捕获统一记入保留参数名 splat
//
// 同一输入产生结构相同的输出，调用方可按模式字符串缓存
func compilePattern(pattern string) (*CompiledRoute, error) {
	pg := &paramGroups{}
	var b strings.Builder
	b.WriteString("^")

	segs := strings.Split(pattern, "/")
	for _, seg := range segs {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "**") {
			// 多段通配连同前导斜杠整体可选，裸前缀同样命中
			b.WriteString("(?:/" + pg.add("splat") + ".*))?")
			break
		}
		frag, optional, err := compileSegment(seg, pg)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
		}
		if optional {
			b.WriteString("(?:/" + frag + ")?")
		} else {
			b.WriteString("/" + frag)
		}
	}
	if b.Len() == 1 {
		b.WriteString("/")
	} else if strings.HasSuffix(pattern, "/") && len(pattern) > 1 && !strings.Contains(pattern, "**") {
		b.WriteString("/")
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return &CompiledRoute{Regex: re, ParamNames: pg.names, Source: pattern}, nil
}

// compileSegment 编译单个路径段
// 整段为一个可选参数时 optional 为真，由调用方连同斜杠包装
func compileSegment(seg string, pg *paramGroups) (frag string, optional bool, err error) {
	var b strings.Builder
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			b.WriteString(regexp.QuoteMeta(lit.String()))
			lit.Reset()
		}
	}

	i := 0
	for i < len(seg) {
		switch seg[i] {
		case ':':
			tok, ok, serr := scanParam(seg, i)
			if serr != nil {
				return "", false, serr
			}
			if !ok {
				lit.WriteByte(':')
				i++
				continue
			}
			flush()
			body := tok.constraint
			if body == "" {
				body = "[^/]+"
			}
			group := pg.add(tok.name) + body + ")"
			switch {
			case tok.optional && tok.start == 0 && tok.end == len(seg):
				optional = true
				b.WriteString(group)
			case tok.optional:
				b.WriteString(group + "?")
			default:
				b.WriteString(group)
			}
			i = tok.end
		case '*':
			flush()
			b.WriteString(pg.add("splat") + "[^/]+)")
			i++
		default:
			lit.WriteByte(seg[i])
			i++
		}
	}
	flush()
	return b.String(), optional, nil
}

// buildURL 以参数表替换模式中的参数标记，生成具体路径
// 值经 URL 转义；未提供值的可选参数丢弃所在段；
// 通配段从保留参数名 splat 取值
func buildURL(pattern string, params map[string]any) (string, error) {
	var b strings.Builder
	for _, seg := range strings.Split(pattern, "/") {
		if seg == "" {
			continue
		}
		frag, skip, err := buildSegment(seg, params)
		if err != nil {
			return "", err
		}
		if skip {
			continue
		}
		b.WriteString("/" + frag)
	}
	if b.Len() == 0 {
		return "/", nil
	}
	return b.String(), nil
}

// buildSegment 生成单个路径段，skip 为真表示整段丢弃
func buildSegment(seg string, params map[string]any) (frag string, skip bool, err error) {
	var b strings.Builder
	i := 0
	for i < len(seg) {
		if seg[i] == ':' {
			tok, ok, serr := scanParam(seg, i)
			if serr != nil {
				return "", false, serr
			}
			if ok {
				v, present := params[tok.name]
				if !present {
					if tok.optional && tok.start == 0 && tok.end == len(seg) {
						return "", true, nil
					}
					if tok.optional {
						i = tok.end
						continue
					}
					return "", false, fmt.Errorf("missing parameter %q", tok.name)
				}
				b.WriteString(url.PathEscape(fmt.Sprint(v)))
				i = tok.end
				continue
			}
		}
		if seg[i] == '*' {
			multi := strings.HasPrefix(seg[i:], "**")
			v, present := params["splat"]
			if !present {
				if multi {
					return "", true, nil
				}
				return "", false, fmt.Errorf("missing parameter %q", "splat")
			}
			b.WriteString(escapeSplat(fmt.Sprint(v)))
			if multi {
				// 多段通配之后的内容不参与生成
				return b.String(), false, nil
			}
			i++
			continue
		}
		b.WriteByte(seg[i])
		i++
	}
	return b.String(), false, nil
}

// escapeSplat 按段转义通配值，保留其中的路径分隔符
func escapeSplat(v string) string {
	parts := strings.Split(v, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// compileCache 引擎持有的模式编译缓存
// 有界：达到容量后不再插入，编译结果直接返回；
// 并发的首次编译经 singleflight 合并为一次
type compileCache struct {
	mu      sync.RWMutex
	max     int
	items   map[string]*CompiledRoute
	group   singleflight.Group
	metrics *metrics.Collector
}

func newCompileCache(max int, m *metrics.Collector) *compileCache {
	if max <= 0 {
		max = defaultCacheSize
	}
	return &compileCache{
		max:     max,
		items:   make(map[string]*CompiledRoute),
		metrics: m,
	}
}

// compile 编译模式，优先取缓存
// 命中判定以查询时刻为准：查询时不存在即计一次未命中，
// 即使条目随后由并发编译补上
func (cc *compileCache) compile(pattern string) (*CompiledRoute, error) {
	cc.mu.RLock()
	cr, ok := cc.items[pattern]
	cc.mu.RUnlock()
	if ok {
		cc.metrics.CompileHit()
		return cr, nil
	}
	cc.metrics.CompileMiss()

	v, err, _ := cc.group.Do(pattern, func() (any, error) {
		cc.mu.RLock()
		cached, exists := cc.items[pattern]
		cc.mu.RUnlock()
		if exists {
			return cached, nil
		}
		compiled, cerr := compilePattern(pattern)
		if cerr != nil {
			return nil, cerr
		}
		cc.mu.Lock()
		if len(cc.items) < cc.max {
			cc.items[pattern] = compiled
		}
		cc.mu.Unlock()
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CompiledRoute), nil
}

// size 当前缓存条目数
func (cc *compileCache) size() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.items)
}
