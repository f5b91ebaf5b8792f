package broker

import (
	"errors"
	"fmt"
)

// Error classifies a venue failure for the execution coordinator:
// transient failures are retried with backoff, permanent ones are not.
type Error struct {
	Code      string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("broker %s error [%s]: %v", kind, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable venue failure (network, rate limit).
func Transient(code string, err error) error {
	return &Error{Code: code, Transient: true, Err: err}
}

// Permanent wraps err as a non-retryable venue failure (validation reject).
func Permanent(code string, err error) error {
	return &Error{Code: code, Transient: false, Err: err}
}

// IsTransient reports whether err is classified as retryable. Unclassified
// errors are treated as permanent so an unknown failure never retries blind.
func IsTransient(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Transient
	}
	return false
}
