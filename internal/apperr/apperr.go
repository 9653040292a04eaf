// Package apperr defines the error kinds shared by the telemetry services
// and the status codes the transports map them to.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindStore Kind = iota
	KindValidation
	KindAuth
	KindAuthorization
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "store"
	}
}

// Error carries a machine readable code that is safe to return to callers.
// Err holds the internal cause and is only ever logged.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(code string) error {
	return &Error{Kind: KindValidation, Code: code}
}

func Auth(code string) error {
	return &Error{Kind: KindAuth, Code: code}
}

func Authorization(code string) error {
	return &Error{Kind: KindAuthorization, Code: code}
}

func NotFound(code string) error {
	return &Error{Kind: KindNotFound, Code: code}
}

func Conflict(code string, err error) error {
	return &Error{Kind: KindConflict, Code: code, Err: err}
}

func Store(code string, err error) error {
	return &Error{Kind: KindStore, Code: code, Err: err}
}

// KindOf reports the kind of err. Errors that did not originate here are
// treated as store failures.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStore
}

func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "server_error"
}

func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
