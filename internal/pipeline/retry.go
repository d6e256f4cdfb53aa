package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/api/googleapi"
)

// retryTransient retries fn on transient mailbox errors with exponential
// backoff. The orchestrator owns retry policy for the search and part-fetch
// calls it makes directly; the uploader and notifier carry their own.
func retryTransient[T any](ctx context.Context, attempts int, initial time.Duration, fn func() (T, error)) (T, error) {
	op := func() (T, error) {
		v, err := fn()
		if err != nil && !transientMailErr(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(attempts)),
	)
}

func transientMailErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	// No status means the request never completed; assume a network blip.
	return true
}
