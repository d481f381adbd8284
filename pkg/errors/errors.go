package errors

import (
	"errors"
	"fmt"
)

// Error 引擎统一错误类型
// Message 序列化为 {"error": message}，即 HTTP 错误响应体
type Error struct {
	Kind    Kind   `json:"-"`     // 错误分类
	Message string `json:"error"` // 错误信息
	Status  int    `json:"-"`     // http状态码
	Err     error  `json:"-"`     // 原始错误
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return e.Message
}

// Unwrap 实现 errors.Unwrap 接口
func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建新的错误
// kind 错误分类
// message 错误信息
// status 可选http状态码，默认取分类的默认状态码
func New(kind Kind, message string, status ...int) *Error {
	sc := kind.Status()
	if len(status) > 0 {
		sc = status[0]
	}
	return &Error{
		Kind:    kind,
		Message: message,
		Status:  sc,
	}
}

// Newf 创建带格式化信息的错误
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap 包装原始错误
func Wrap(kind Kind, message string, err error) *Error {
	e := New(kind, message)
	e.Err = err
	return e
}

// Clone 克隆错误（避免修改共享的预定义错误）
func (e *Error) Clone() *Error {
	return &Error{
		Kind:    e.Kind,
		Message: e.Message,
		Status:  e.Status,
		Err:     e.Err,
	}
}

// WithError 添加原始错误（返回新实例，不修改原错误）
func (e *Error) WithError(err error) *Error {
	c := e.Clone()
	c.Err = err
	return c
}

// WithMessage 添加错误信息（返回新实例，不修改原错误）
func (e *Error) WithMessage(message string) *Error {
	c := e.Clone()
	c.Message = message
	return c
}

// WithMessagef 添加格式化错误信息（返回新实例，不修改原错误）
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Is 检查错误是否为指定类型
// 当 target 也是 *Error 时，比较 Kind 是否相同
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if ok {
		return e.Kind == t.Kind
	}
	return errors.Is(e.Err, target)
}

// KindOf 提取错误分类，非 *Error 错误归为 KindHandler
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindHandler
}

// StatusOf 提取错误对应的 HTTP 状态码
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return KindHandler.Status()
}

// MessageOf 提取对外暴露的错误信息
// 非 *Error 错误直接使用 Error() 文本
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// As 转换为指定类型的错误
// target 目标错误类型指针（必须是指针类型）
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is 检查错误是否为指定类型
func Is(err error, target error) bool {
	return errors.Is(err, target)
}
