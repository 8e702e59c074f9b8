package anilist

import (
	"fmt"
	"net/http"
	"time"
)

// ThrottleError means the server rejected a call due to rate limiting. It is
// recoverable by waiting and always carries a concrete reset time so callers
// can surface a countdown.
type ThrottleError struct {
	RetryAfterSeconds int
	ResetAt           time.Time
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("anilist rate limited, retry in %ds (resets %s)", e.RetryAfterSeconds, e.ResetAt.Format(time.RFC3339))
}

// HTTPError is a non-recoverable HTTP-level failure (any status >= 400 that
// was not classified as throttling). Header is kept so the governor can read
// rate-limit metadata off a 429 before classification.
type HTTPError struct {
	Status  int
	Message string
	Header  map[string][]string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("anilist returned status %d", e.Status)
	}
	return fmt.Sprintf("anilist returned status %d: %s", e.Status, e.Message)
}

// HeaderValue returns the first value for a header key, or "".
func (e *HTTPError) HeaderValue(key string) string {
	if e == nil || e.Header == nil {
		return ""
	}
	return http.Header(e.Header).Get(key)
}

// TransportError is a network-level failure with no HTTP status. Ambiguous:
// either a genuine outage or a throttled call whose status was swallowed.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("anilist transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means the response body did not match the expected shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("anilist response decode failure: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
