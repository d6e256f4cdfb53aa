package upload

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// errorClass buckets a store error for retry policy.
type errorClass int

const (
	// classTransient covers timeouts, connection resets and 5xx
	// responses; retried with exponential backoff.
	classTransient errorClass = iota

	// classRateLimited covers throttling responses; retried honoring the
	// server-supplied delay.
	classRateLimited

	// classAuthExpired covers 401 responses that survived the store
	// client's own single token refresh. Not retried here.
	classAuthExpired

	// classPermanent covers other 4xx responses. Not retried.
	classPermanent
)

// statusCoder is implemented by store errors carrying an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// retryDelayer is implemented by store errors carrying a server-supplied
// retry delay.
type retryDelayer interface {
	RetryDelay() time.Duration
}

// classify buckets an error and extracts the server retry delay, if any.
// Errors without an HTTP status (network-level failures) are transient,
// except for context cancellation which is never retried.
func classify(err error) (errorClass, time.Duration) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return classPermanent, 0
	}

	var sc statusCoder
	if !errors.As(err, &sc) {
		return classTransient, 0
	}

	status := sc.StatusCode()
	var delay time.Duration
	var rd retryDelayer
	if errors.As(err, &rd) {
		delay = rd.RetryDelay()
	}

	switch {
	case status == http.StatusTooManyRequests:
		return classRateLimited, delay
	case status == http.StatusServiceUnavailable && delay > 0:
		return classRateLimited, delay
	case status >= 500:
		return classTransient, 0
	case status == http.StatusUnauthorized:
		return classAuthExpired, 0
	default:
		return classPermanent, 0
	}
}

// retryable reports whether a failure with the given class could succeed on
// a later run.
func (c errorClass) retryable() bool {
	return c == classTransient || c == classRateLimited
}
