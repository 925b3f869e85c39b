package fetcher

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Synthetic status codes for failures that never produced an HTTP status.
const (
	statusNetwork = 0   // connection-level failure
	statusTimeout = 408 // request deadline exceeded
)

// FetchError is a classified content-fetch failure. StatusCode 0 marks a
// network-level failure and 408 a timeout; everything else is the HTTP
// status the reader service returned.
type FetchError struct {
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a failure is worth retrying: network-level
// failures, timeouts, rate limits, and server errors. Any other 4xx is
// fatal and consumes no retries.
func IsRetryable(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	switch {
	case fe.StatusCode == statusNetwork:
		return true
	case fe.StatusCode == statusTimeout:
		return true
	case fe.StatusCode == 429:
		return true
	case fe.StatusCode >= 500:
		return true
	default:
		return false
	}
}

const (
	rateLimitDelay  = 60 * time.Second
	retryBaseDelay  = 5 * time.Second
	retryJitterSpan = 25 * time.Second
)

// RetryDelay returns how long to sleep before retry number attempt
// (1-based). Rate limits wait a fixed 60s; timeouts, server errors, and
// network failures use linear-scaled jitter backoff.
func RetryDelay(err error, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var fe *FetchError
	if errors.As(err, &fe) && fe.StatusCode == 429 {
		return rateLimitDelay
	}

	jitter := time.Duration(rand.Int63n(int64(retryJitterSpan)))
	return (retryBaseDelay + jitter) * time.Duration(attempt)
}
