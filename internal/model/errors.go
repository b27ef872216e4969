package model

import (
	"fmt"
	"time"
)

// HTTPError carries an upstream HTTP status so the retry layer can decide
// whether a failure is transient (429, 5xx) or permanent.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // parsed Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
