package bookingerr

import (
	"errors"
	"fmt"
)

// Kind classifies a business-rule violation so handlers can map it to an
// HTTP status without string matching.
type Kind string

const (
	KindBadRequest    Kind = "BAD_REQUEST"
	KindNotFound      Kind = "NOT_FOUND"
	KindForbidden     Kind = "FORBIDDEN"
	KindConflict      Kind = "CONFLICT"
	KindUnprocessable Kind = "UNPROCESSABLE"
)

type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Kind() Kind    { return e.kind }

func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func BadRequest(msg string) error    { return New(KindBadRequest, msg) }
func NotFound(msg string) error      { return New(KindNotFound, msg) }
func Forbidden(msg string) error     { return New(KindForbidden, msg) }
func Conflict(msg string) error      { return New(KindConflict, msg) }
func Unprocessable(msg string) error { return New(KindUnprocessable, msg) }

// KindOf extracts the kind from err, or "" for uncoded errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
