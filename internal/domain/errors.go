package domain

import (
	"errors"
	"fmt"
)

// ErrorKind 业务错误类别，API 层据此映射 HTTP 状态码
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindInvalidTransition ErrorKind = "invalid_transition"
)

// 常用错误信息
const (
	MsgEmptyCart     = "empty cart"
	MsgInvalidCoupon = "invalid coupon"
)

// Error 领域错误。Kind 决定错误类别，Message 为可直接返回给调用方的描述。
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is 支持 errors.Is：类别相同且目标消息为空（哨兵）或消息一致时匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// 哨兵错误，仅用于 errors.Is 判断类别
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
)

// NewValidationError 创建参数校验错误
func NewValidationError(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewInsufficientStockError 创建库存不足错误
func NewInsufficientStockError(format string, args ...any) error {
	return &Error{Kind: KindInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidTransitionError 创建非法状态流转错误
func NewInvalidTransitionError(format string, args ...any) error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// KindOf 返回错误链中第一个领域错误的类别；非领域错误返回空串
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
