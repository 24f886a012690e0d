package reservation

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an engine failure. Callers map it to a response code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindIllegalTransition
	KindOutOfWindow
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindIllegalTransition:
		return "illegal_transition"
	case KindOutOfWindow:
		return "out_of_window"
	default:
		return "internal"
	}
}

// Code is the envelope code for the kind. It doubles as the HTTP status.
func (k Kind) Code() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindIllegalTransition:
		return http.StatusUnprocessableEntity
	case KindOutOfWindow:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// Error is returned by every engine operation that fails.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) works
// regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation, Msg: "invalid request"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Msg: "authentication required"}
	ErrForbidden         = &Error{Kind: KindForbidden, Msg: "operation not permitted"}
	ErrNotFound          = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrConflict          = &Error{Kind: KindConflict, Msg: "time slot already taken"}
	ErrIllegalTransition = &Error{Kind: KindIllegalTransition, Msg: "illegal status transition"}
	ErrOutOfWindow       = &Error{Kind: KindOutOfWindow, Msg: "outside the allowed time window"}
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the caller-facing text of err. Internal failures are not
// echoed to clients.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		if e.Msg != "" {
			return e.Msg
		}
		return e.Error()
	}
	return "internal error"
}
