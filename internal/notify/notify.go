// Package notify composes and sends the pipeline's completion email.
//
// Sending is attempted once, with a small bounded retry count for transient
// transport errors only. Permanent failures (invalid recipient, auth
// rejection) are surfaced immediately as the run's final-step failure.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/api/googleapi"

	"github.com/mailhaul/mailhaul/internal/logging"
)

// Transport delivers a composed message. Implemented by the gmail client;
// test doubles substitute their own.
type Transport interface {
	SendMessage(ctx context.Context, to, subject, body, attachmentName string, attachment []byte) (string, error)
}

// Outcome is the result of one Send call.
type Outcome struct {
	// MessageID is the provider's ID for the sent message.
	MessageID string

	// Err is the failure reason, nil when the message was sent.
	Err error

	// Attempts counts delivery attempts made.
	Attempts int
}

// Sent reports whether the notification was delivered.
func (o Outcome) Sent() bool {
	return o.Err == nil
}

// Sender sends notifications through a Transport.
type Sender struct {
	transport   Transport
	maxAttempts int
	initial     time.Duration
	log         logging.Logger
}

// New creates a Sender with up to maxAttempts delivery attempts for
// transient failures. maxAttempts below 1 defaults to 3.
func New(transport Transport, maxAttempts int, log logging.Logger) *Sender {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if log == nil {
		log = logging.NewSlogAdapter(slog.Default())
	}
	return &Sender{
		transport:   transport,
		maxAttempts: maxAttempts,
		initial:     time.Second,
		log:         log,
	}
}

// Send delivers a message with an optional attachment. A nil attachment
// sends a plain message.
func (s *Sender) Send(ctx context.Context, to, subject, body, attachmentName string, attachment []byte) Outcome {
	outcome := Outcome{}

	operation := func() (string, error) {
		outcome.Attempts++
		id, err := s.transport.SendMessage(ctx, to, subject, body, attachmentName, attachment)
		if err == nil {
			return id, nil
		}
		if isTransient(err) {
			s.log.Warn("transient notification failure, will retry",
				logging.KeyRecipientHash, logging.AnonymizeEmail(to),
				logging.KeyError, err.Error())
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initial

	id, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(s.maxAttempts)))
	if err != nil {
		outcome.Err = fmt.Errorf("failed to send notification: %w", err)
		return outcome
	}
	outcome.MessageID = id
	return outcome
}

// isTransient reports whether a transport error is worth retrying. Provider
// API errors are judged by status; anything without a status is assumed to
// be a network-level failure, except context cancellation.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return true
}
