package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind - категория ошибки, видимая вызывающей стороне.
type ErrorKind string

const (
	KindBadInput            ErrorKind = "bad_input"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindNotFound            ErrorKind = "not_found"
	KindRateLimited         ErrorKind = "rate_limited"
	KindForbidden           ErrorKind = "forbidden"
)

// Error - ошибка синхронной фазы конвейера с конкретной категорией.
type Error struct {
	Kind       ErrorKind
	Op         string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable сообщает, имеет ли смысл повторить запрос.
func (e *Error) Retryable() bool {
	return e.Kind == KindUpstreamUnavailable || e.Kind == KindRateLimited
}

func BadInput(op, msg string, err error) *Error {
	return &Error{Kind: KindBadInput, Op: op, Message: msg, Err: err}
}

func Unavailable(op, msg string, err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Op: op, Message: msg, Err: err}
}

func NotFound(op, msg string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: msg}
}

func RateLimited(op string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Op: op, Message: "rate limit exceeded", RetryAfter: retryAfter}
}

func Forbidden(op string) *Error {
	return &Error{Kind: KindForbidden, Op: op, Message: "forbidden"}
}

// KindOf возвращает категорию ошибки или пустую строку, если это не *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
