package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mailhaul/mailhaul/internal/graph"
	"github.com/mailhaul/mailhaul/internal/logging"
)

// abortTimeout bounds the best-effort session release, which runs detached
// from the upload's own context.
const abortTimeout = 10 * time.Second

// Store is the remote file store the uploader writes to. Implemented by
// graph.Client; test doubles substitute their own.
type Store interface {
	PutSmall(ctx context.Context, remotePath string, data []byte) (string, error)
	OpenSession(ctx context.Context, remotePath string, totalSize int64) (string, error)
	PutChunk(ctx context.Context, uploadURL string, offset, totalSize int64, chunk []byte) (*graph.ChunkStatus, error)
	SessionStatus(ctx context.Context, uploadURL string) (*graph.ChunkStatus, error)
	CancelSession(ctx context.Context, uploadURL string) error
}

// Config holds uploader tuning. Zero values are replaced with defaults.
type Config struct {
	// SingleShotThreshold is the size at or below which a file is written
	// with one PUT instead of a session. Default 4 MiB.
	SingleShotThreshold int64

	// ChunkSize is the session chunk size. Rounded down to a multiple of
	// Granularity. Default 10 MiB.
	ChunkSize int64

	// Granularity is the store's chunk alignment requirement.
	// Default graph.ChunkGranularity.
	Granularity int64

	// MaxAttempts bounds tries per chunk or single-shot call. Default 5.
	MaxAttempts int

	// InitialBackoff is the first retry delay. Default 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay. Default 30s.
	MaxBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.SingleShotThreshold <= 0 {
		c.SingleShotThreshold = graph.SingleShotLimit
	}
	if c.Granularity <= 0 {
		c.Granularity = graph.ChunkGranularity
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 10 * 1024 * 1024
	}
	// Intermediate chunks must land on granularity boundaries.
	c.ChunkSize -= c.ChunkSize % c.Granularity
	if c.ChunkSize < c.Granularity {
		c.ChunkSize = c.Granularity
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	return c
}

// Result is the immutable outcome of one Upload call, produced exactly once
// per attachment.
type Result struct {
	// RemotePath is the destination path the upload targeted.
	RemotePath string

	// RemoteID is the store's ID for the created item. Empty on failure.
	RemoteID string

	// Chunked is true when the transfer went through a resumable session.
	Chunked bool

	// Retries counts retried calls across the whole transfer.
	Retries int

	// Err is the failure reason, nil on success.
	Err error

	// Retryable is true when a later run might succeed. Meaningless when
	// Err is nil.
	Retryable bool
}

// Succeeded reports whether the upload completed.
func (r *Result) Succeeded() bool {
	return r.Err == nil
}

// Uploader writes attachment content to a Store, switching between
// single-shot and resumable strategies by size.
type Uploader struct {
	store Store
	cfg   Config
	log   logging.Logger
}

// New creates an Uploader over the given store.
func New(store Store, cfg Config, log logging.Logger) *Uploader {
	if log == nil {
		log = logging.NewSlogAdapter(slog.Default())
	}
	return &Uploader{store: store, cfg: cfg.withDefaults(), log: log}
}

// Upload transfers size bytes from content to remotePath. It never buffers
// more than one chunk regardless of file size.
func (u *Uploader) Upload(ctx context.Context, remotePath string, size int64, content io.ReaderAt) *Result {
	if size <= u.cfg.SingleShotThreshold {
		return u.uploadSingleShot(ctx, remotePath, size, content)
	}
	return u.uploadChunked(ctx, remotePath, size, content)
}

func (u *Uploader) uploadSingleShot(ctx context.Context, remotePath string, size int64, content io.ReaderAt) *Result {
	res := &Result{RemotePath: remotePath}

	data := make([]byte, size)
	if _, err := content.ReadAt(data, 0); err != nil && err != io.EOF {
		res.Err = fmt.Errorf("failed to read attachment content: %w", err)
		return res
	}

	remoteID, attempts, err := retryCall(ctx, u.cfg, func() (string, error) {
		return u.store.PutSmall(ctx, remotePath, data)
	})
	res.Retries = attempts - 1
	if err != nil {
		class, _ := classify(err)
		res.Err = fmt.Errorf("single-shot upload of %s failed: %w", remotePath, err)
		res.Retryable = class.retryable()
		return res
	}
	res.RemoteID = remoteID
	return res
}

func (u *Uploader) uploadChunked(ctx context.Context, remotePath string, size int64, content io.ReaderAt) *Result {
	res := &Result{RemotePath: remotePath, Chunked: true}

	uploadURL, attempts, err := retryCall(ctx, u.cfg, func() (string, error) {
		return u.store.OpenSession(ctx, remotePath, size)
	})
	res.Retries += attempts - 1
	if err != nil {
		class, _ := classify(err)
		res.Err = fmt.Errorf("failed to open upload session for %s: %w", remotePath, err)
		res.Retryable = class.retryable()
		return res
	}

	session := &Session{
		UploadURL: uploadURL,
		TotalSize: size,
		Status:    SessionActive,
	}

	buf := make([]byte, u.cfg.ChunkSize)
	stalls := 0

	for session.Status == SessionActive {
		offset := session.NextOffset
		n := u.cfg.ChunkSize
		if remaining := size - offset; remaining < n {
			n = remaining
		}
		chunk := buf[:n]
		if _, err := content.ReadAt(chunk, offset); err != nil && err != io.EOF {
			u.abort(ctx, session)
			res.Err = fmt.Errorf("failed to read chunk at offset %d: %w", offset, err)
			return res
		}

		status, attempts, err := retryCall(ctx, u.cfg, func() (*graph.ChunkStatus, error) {
			return u.store.PutChunk(ctx, session.UploadURL, offset, size, chunk)
		})
		res.Retries += attempts - 1

		if err != nil {
			class, _ := classify(err)
			if !class.retryable() {
				u.abort(ctx, session)
				res.Err = fmt.Errorf("chunk at offset %d rejected: %w", offset, err)
				return res
			}

			// Retries exhausted on a transient error. The session may
			// have advanced server-side; its word is authoritative.
			if recovered, ok := u.recoverFromSession(ctx, session, res); ok {
				if recovered {
					continue
				}
				return res
			}
			res.Err = fmt.Errorf("chunk at offset %d failed after retries: %w", offset, err)
			res.Retryable = true
			return res
		}

		if status.Completed {
			session.Status = SessionCompleted
			session.BytesConfirmed = size
			res.RemoteID = status.RemoteID
			return res
		}

		// Adopt the remote's confirmed offset, whether ahead of or
		// behind our own accounting.
		if status.NextOffset == offset {
			stalls++
			if stalls >= 3 {
				u.abort(ctx, session)
				res.Err = fmt.Errorf("session made no progress at offset %d after %d chunk writes", offset, stalls)
				res.Retryable = true
				return res
			}
		} else {
			stalls = 0
		}
		session.NextOffset = status.NextOffset
		session.BytesConfirmed = status.NextOffset
	}

	return res
}

// recoverFromSession queries session status after retry exhaustion. The
// first return reports whether the transfer can continue (session advanced)
// and the second whether the query produced a decision at all; when the
// session turns out to be complete res is filled in and (false, true) is
// returned.
func (u *Uploader) recoverFromSession(ctx context.Context, session *Session, res *Result) (recovered, decided bool) {
	status, err := u.store.SessionStatus(ctx, session.UploadURL)
	if err != nil {
		return false, false
	}
	if status.Completed {
		session.Status = SessionCompleted
		session.BytesConfirmed = session.TotalSize
		res.RemoteID = status.RemoteID
		return false, true
	}
	if status.NextOffset > session.NextOffset {
		u.log.Info("upload session advanced server-side, resuming",
			"confirmed_offset", status.NextOffset,
			"local_offset", session.NextOffset)
		session.NextOffset = status.NextOffset
		session.BytesConfirmed = status.NextOffset
		return true, true
	}
	return false, false
}

// abort releases a session best-effort; failures only get logged. The
// release call gets its own deadline detached from the caller's context,
// so a cancelled run still reaches the server to clean up its session.
func (u *Uploader) abort(ctx context.Context, session *Session) {
	session.Status = SessionAborted
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()
	if err := u.store.CancelSession(abortCtx, session.UploadURL); err != nil {
		u.log.Warn("failed to cancel upload session", logging.KeyError, err.Error())
	}
}

// retryCall runs fn under the uploader retry policy: exponential backoff for
// transient errors, the server-supplied delay for rate limits, no retry for
// permanent or auth failures. It returns the number of attempts made.
func retryCall[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, int, error) {
	attempts := 0
	var lastErr error

	operation := func() (T, error) {
		attempts++
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		class, delay := classify(err)
		switch class {
		case classRateLimited:
			if delay > 0 {
				return v, &backoff.RetryAfterError{Duration: delay}
			}
			return v, err
		case classTransient:
			return v, err
		default:
			return v, backoff.Permanent(err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialBackoff
	bo.MaxInterval = cfg.MaxBackoff

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(cfg.MaxAttempts)))
	if err != nil && lastErr != nil {
		// Surface the underlying store error, not the retry wrapper.
		err = lastErr
	}
	return v, attempts, err
}
