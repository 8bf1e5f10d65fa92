// Package apperror classifies domain failures into a small set of kinds that
// transports map to retry or no-retry semantics.
package apperror

import "errors"

type Kind string

const (
	KindInvalidPayload Kind = "invalid_payload"
	KindNotFound       Kind = "not_found"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindBadRequest     Kind = "bad_request"
	KindConflict       Kind = "conflict"
)

// Error is a classified domain error. Code is the snake_case identifier
// returned to API callers.
type Error struct {
	Kind Kind
	Code string
}

func New(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

func (e *Error) Error() string {
	if e.Code == "" {
		return string(e.Kind)
	}
	return e.Code
}

// Is matches another *Error with the same code, or a bare kind sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

var (
	ErrInvalidPayload = &Error{Kind: KindInvalidPayload}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrBadRequest     = &Error{Kind: KindBadRequest}
	ErrConflict       = &Error{Kind: KindConflict}
)

// KindOf returns the kind of the first classified error in the chain, or ""
// for unclassified (transient) failures.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// CodeOf returns the code of the first classified error in the chain.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return ""
}
