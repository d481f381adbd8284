package dao

import "net/http"

// ResultKind 处理结果类别
type ResultKind int

const (
	// ResultNone 零值，表示处理函数未产生响应
	// 中间件返回零值 Result 表示放行，继续执行后续链
	ResultNone ResultKind = iota
	// ResultJSON JSON 负载，经序列化后写出
	ResultJSON
	// ResultText 纯文本正文
	ResultText
	// ResultHTML HTML 正文
	ResultHTML
	// ResultNoContent 无正文响应
	ResultNoContent
	// ResultRedirect 重定向
	ResultRedirect
	// ResultWritten 处理函数已直接写出响应，调度器不再写入
	ResultWritten
)

// String 实现 fmt.Stringer 接口
func (k ResultKind) String() string {
	switch k {
	case ResultNone:
		return "none"
	case ResultJSON:
		return "json"
	case ResultText:
		return "text"
	case ResultHTML:
		return "html"
	case ResultNoContent:
		return "no_content"
	case ResultRedirect:
		return "redirect"
	case ResultWritten:
		return "written"
	default:
		return "unknown"
	}
}

// Result 处理函数的返回值，带类别标签的响应描述
// 由调度器统一序列化写出，处理函数不直接操作 ResponseWriter
// （除非返回 Written）
type Result struct {
	kind   ResultKind
	status int
	value  any    // JSON 负载
	body   string // Text/HTML 正文或重定向地址
}

// JSON 创建 JSON 响应结果，默认 200
func JSON(value any) Result {
	return Result{kind: ResultJSON, status: http.StatusOK, value: value}
}

// Text 创建纯文本响应结果，默认 200
func Text(text string) Result {
	return Result{kind: ResultText, status: http.StatusOK, body: text}
}

// HTML 创建 HTML 响应结果，默认 200
func HTML(html string) Result {
	return Result{kind: ResultHTML, status: http.StatusOK, body: html}
}

// NoContent 创建无正文响应结果（204）
func NoContent() Result {
	return Result{kind: ResultNoContent, status: http.StatusNoContent}
}

// Redirect 创建重定向结果
func Redirect(location string, status int) Result {
	return Result{kind: ResultRedirect, status: status, body: location}
}

// Written 表示处理函数已通过 Context 直接写出响应
func Written() Result {
	return Result{kind: ResultWritten}
}

// Status 覆盖响应状态码，返回新值便于链式调用：
// dao.JSON(v).Status(201)
func (r Result) Status(code int) Result {
	r.status = code
	return r
}

// Kind 返回结果类别
func (r Result) Kind() ResultKind { return r.kind }

// StatusCode 返回响应状态码
func (r Result) StatusCode() int { return r.status }

// Value 返回 JSON 负载
func (r Result) Value() any { return r.value }

// Body 返回文本正文或重定向地址
func (r Result) Body() string { return r.body }

// IsZero 判断是否为零值（未产生响应）
func (r Result) IsZero() bool { return r.kind == ResultNone }
