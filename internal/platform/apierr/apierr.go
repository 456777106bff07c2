package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// ErrAuthenticationFailed marks a missing, malformed, expired or unknown credential.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Unauthenticated wraps cause so that errors.Is(err, ErrAuthenticationFailed) holds.
func Unauthenticated(cause error) *Error {
	if cause == nil {
		cause = ErrAuthenticationFailed
	} else if !errors.Is(cause, ErrAuthenticationFailed) {
		cause = fmt.Errorf("%w: %v", ErrAuthenticationFailed, cause)
	}
	return New(http.StatusUnauthorized, "authentication_failed", cause)
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr, true
	}
	return nil, false
}
