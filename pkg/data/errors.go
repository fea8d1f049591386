package data

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrUnsupported is returned for links no provider can resolve.
	ErrUnsupported = errors.New("unsupported manga source")
	// ErrNotFound is returned for a missing work or a work without chapters.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks network and I/O failures that may succeed when retried.
	ErrTransient = errors.New("transient failure")
	// ErrInvalidArgument is returned for malformed user input such as a bad
	// chapters range or output format.
	ErrInvalidArgument = errors.New("invalid argument")
)

// RateLimitedError is returned when the server asked us to slow down.
// A negative RetryAfter means the server did not say when to retry.
type RateLimitedError struct {
	RetryAfter time.Duration
	URL        string
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter < 0 {
		return fmt.Sprintf("too many requests: %s", e.URL)
	}
	return fmt.Sprintf("too many requests: %s (retry after %s)", e.URL, e.RetryAfter)
}

// StatusError is an unexpected HTTP response status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status %d %s: %s", e.Code, http.StatusText(e.Code), e.URL)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return ErrTransient
}

// Transient wraps err so that IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient reports whether err may be retried.
func IsTransient(err error) bool {
	var rl *RateLimitedError
	return errors.Is(err, ErrTransient) || errors.As(err, &rl)
}
