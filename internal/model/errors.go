package model

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrInvalidInput means no identifying field was supplied. It is the only fatal scan error.
	ErrInvalidInput = eris.New("invalid input: at least one of name, email, phone, address is required")

	// ErrProxyUnavailable means every proxy endpoint is cooling down
	ErrProxyUnavailable = eris.New("no proxy endpoint available")

	// ErrPolicyBlocked means the target's robots policy disallows the fetch
	ErrPolicyBlocked = eris.New("blocked by robots policy")

	// ErrParsePartial means content was malformed and only part of it was scanned
	ErrParsePartial = eris.New("content parsed partially")
)

// TransientFetchError wraps a retryable fetch failure (timeout, reset, 5xx, 429)
type TransientFetchError struct {
	Err        error
	StatusCode int
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient fetch error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient fetch error: %v", e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// NewTransientFetchError wraps err as transient with an optional HTTP status code
func NewTransientFetchError(err error, statusCode int) *TransientFetchError {
	return &TransientFetchError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether err carries a TransientFetchError
func IsTransient(err error) bool {
	var te *TransientFetchError
	return errors.As(err, &te)
}
