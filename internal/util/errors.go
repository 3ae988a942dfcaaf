package util

import (
	"errors"
	"fmt"
)

// ErrorKind 业务错误分类，决定 HTTP 状态码
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindInvalidInput
	KindNotFound
	KindPreconditionFailed
	KindForbidden
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

type AppError struct {
	Kind    ErrorKind
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// Is 同类错误视为相等，方便 errors.Is(err, ErrNotFound)
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrUnauthenticated    = &AppError{Kind: KindUnauthenticated}
	ErrInvalidInput       = &AppError{Kind: KindInvalidInput}
	ErrNotFound           = &AppError{Kind: KindNotFound}
	ErrPreconditionFailed = &AppError{Kind: KindPreconditionFailed}
	ErrForbidden          = &AppError{Kind: KindForbidden}
	ErrConflict           = &AppError{Kind: KindConflict}

	ErrAttemptNotFound      = NotFoundErr("attempt not found")
	ErrAttemptCompleted     = PreconditionFailed("attempt already completed")
	ErrAttemptInProgress    = PreconditionFailed("an attempt is already in progress")
	ErrMaxAttemptsReached   = ForbiddenErr("maximum quiz attempts reached")
	ErrChapterLocked        = ForbiddenErr("chapter prerequisites not completed")
	ErrPathNotStarted       = NotFoundErr("learning path not started")
	ErrUnsupportedOperation = InvalidInput("operation not supported for this content kind")
)

func newErr(kind ErrorKind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(format string, args ...interface{}) *AppError {
	return newErr(KindUnauthenticated, format, args...)
}

func InvalidInput(format string, args ...interface{}) *AppError {
	return newErr(KindInvalidInput, format, args...)
}

func NotFoundErr(format string, args ...interface{}) *AppError {
	return newErr(KindNotFound, format, args...)
}

func PreconditionFailed(format string, args ...interface{}) *AppError {
	return newErr(KindPreconditionFailed, format, args...)
}

func ForbiddenErr(format string, args ...interface{}) *AppError {
	return newErr(KindForbidden, format, args...)
}

func ConflictErr(format string, args ...interface{}) *AppError {
	return newErr(KindConflict, format, args...)
}

// KindOf 非 AppError 一律视为内部错误
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsRetryable 唯一索引竞争导致的冲突可以重试
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindConflict
}
