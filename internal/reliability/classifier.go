package reliability

import (
	"errors"
	"fmt"
	"time"
)

// StatusError is a non-2xx response from an upstream HTTP API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.Code, e.Body)
}

// HTTPStatus extracts the status code carried by err, or 0.
func HTTPStatus(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// UnavailableOnly retries 503 responses and any error that carries no HTTP
// status (network failures, undecodable or empty bodies). Any other status
// is final.
func UnavailableOnly(err error) bool {
	code := HTTPStatus(err)
	return code == 0 || code == 503
}

// TransientHTTP retries the statuses IsRetryableHTTPStatus accepts and any
// error without a status.
func TransientHTTP(err error) bool {
	code := HTTPStatus(err)
	return code == 0 || IsRetryableHTTPStatus(code)
}

// ExponentialBackoff computes a deterministic capped backoff duration.
// A cap <= 0 leaves the delay uncapped.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if cap > 0 && d >= cap {
			return cap
		}
	}
	return d
}
