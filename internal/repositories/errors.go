package repositories

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the target document is absent
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the id is taken
	ErrAlreadyExists = errors.New("document already exists")
)

// ThrottledError reports that the store rejected a request because of
// rate limiting. RetryAfter is the server's suggested wait, zero when the
// store gave none.
type ThrottledError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ThrottledError) Error() string {
	msg := "store throttled the request"
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ThrottledError) Unwrap() error { return e.Err }

// PersistenceError is any store failure that was not recovered locally.
// Diagnostics carries whatever detail the store attached to the failure.
type PersistenceError struct {
	Op          string
	ID          string
	Diagnostics string
	Err         error
}

func (e *PersistenceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsThrottled reports whether err carries a *ThrottledError
func IsThrottled(err error) bool {
	var te *ThrottledError
	return errors.As(err, &te)
}

// RetryAfter returns the server wait hint carried by err, if any
func RetryAfter(err error) (time.Duration, bool) {
	var te *ThrottledError
	if errors.As(err, &te) && te.RetryAfter > 0 {
		return te.RetryAfter, true
	}
	return 0, false
}

// Diagnostics returns the diagnostic payload carried by err, if any
func Diagnostics(err error) string {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Diagnostics
	}
	return ""
}
