package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/mailhaul/mailhaul/internal/archive"
	"github.com/mailhaul/mailhaul/internal/extract"
	"github.com/mailhaul/mailhaul/internal/notify"
	"github.com/mailhaul/mailhaul/internal/upload"
)

// Token provider names used for the preflight credential check.
const (
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"
)

// MessageRef identifies a message discovered by a mailbox search.
type MessageRef struct {
	ID       string
	Subject  string
	From     string
	Received time.Time
}

// MailProvider is the mailbox side of a run. It searches for messages,
// fetches their part trees, serves attachment content for lazy extraction
// and sends the final notification message.
type MailProvider interface {
	Search(ctx context.Context, query string, maxResults int64) ([]MessageRef, error)
	FetchParts(ctx context.Context, messageID string) (*extract.Part, error)
	extract.ContentSource
}

// Uploader transfers one attachment to the file store.
type Uploader interface {
	Upload(ctx context.Context, remotePath string, size int64, content io.ReaderAt) *upload.Result
}

// Archiver packages entries into a zip stream.
type Archiver interface {
	Build(ctx context.Context, entries []archive.Entry, w io.Writer) (*archive.Summary, error)
}

// Notifier delivers the completion email.
type Notifier interface {
	Send(ctx context.Context, to, subject, body, attachmentName string, attachment []byte) notify.Outcome
}

// TokenProvider supplies valid access tokens per identity provider and
// invalidates tokens the providers have rejected. The orchestrator checks
// both providers once before starting a run so that a dead credential fails
// fast instead of mid-upload.
type TokenProvider interface {
	FetchValidToken(ctx context.Context, provider string) (string, error)
	InvalidateToken(provider string)
}
