package graph

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// APIError is an error response from the Graph API, classified for retry
// decisions by the upload layer.
type APIError struct {
	// Status is the HTTP status code of the response.
	Status int

	// Message is the Graph error message, or the raw body when the error
	// payload could not be parsed.
	Message string

	// RetryAfter is the server-supplied retry delay for rate-limit
	// responses, zero when the header was absent.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph API error (HTTP %d): %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status of the error response.
func (e *APIError) StatusCode() int {
	return e.Status
}

// RetryDelay returns the server-supplied Retry-After delay, zero if none.
func (e *APIError) RetryDelay() time.Duration {
	return e.RetryAfter
}

// IsRateLimited reports whether the response was a throttling response.
func (e *APIError) IsRateLimited() bool {
	return e.Status == http.StatusTooManyRequests ||
		(e.Status == http.StatusServiceUnavailable && e.RetryAfter > 0)
}

// IsAuthExpired reports whether the response indicates an expired or invalid
// access token.
func (e *APIError) IsAuthExpired() bool {
	return e.Status == http.StatusUnauthorized
}

// IsTransient reports whether the request may succeed if retried.
func (e *APIError) IsTransient() bool {
	return e.IsRateLimited() || e.Status >= 500
}

// newAPIError builds an APIError from a response status, message and
// Retry-After header value.
func newAPIError(status int, message, retryAfter string) *APIError {
	e := &APIError{
		Status:  status,
		Message: message,
	}
	if retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			e.RetryAfter = time.Duration(seconds) * time.Second
		}
	}
	return e
}
