package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mailhaul/mailhaul/internal/archive"
	"github.com/mailhaul/mailhaul/internal/extract"
	"github.com/mailhaul/mailhaul/internal/instrumentation"
	"github.com/mailhaul/mailhaul/internal/logging"
)

const (
	defaultFetchAttempts = 3
	defaultFetchBackoff  = 500 * time.Millisecond
)

// Orchestrator drives a full pipeline run over its collaborators. It holds
// no per-run state, so a single Orchestrator can serve concurrent runs.
type Orchestrator struct {
	mail      MailProvider
	uploader  Uploader
	archiver  Archiver
	notifier  Notifier
	tokens    TokenProvider
	extractor *extract.Extractor
	log       logging.Logger
	metrics   *instrumentation.Metrics

	fetchAttempts int
	fetchBackoff  time.Duration
	now           func() time.Time
}

// New creates an Orchestrator. The notifier and token provider may be nil;
// a nil notifier skips the notification stage and a nil token provider
// skips the credential preflight.
func New(mail MailProvider, uploader Uploader, archiver Archiver, notifier Notifier, tokens TokenProvider, log logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.NewSlogAdapter(slog.Default())
	}
	return &Orchestrator{
		mail:          mail,
		uploader:      uploader,
		archiver:      archiver,
		notifier:      notifier,
		tokens:        tokens,
		extractor:     extract.New(log),
		log:           log,
		fetchAttempts: defaultFetchAttempts,
		fetchBackoff:  defaultFetchBackoff,
		now:           time.Now,
	}
}

// SetMetrics enables run metrics. A nil recorder disables them, which is
// also the default.
func (o *Orchestrator) SetMetrics(m *instrumentation.Metrics) {
	o.metrics = m
}

// slot holds the outcome for one discovered attachment at its canonical
// position, plus the attachment itself for the archive stage.
type slot struct {
	att    *extract.Attachment
	result *AttachmentResult
}

// Run executes the pipeline and always returns a report. The error return
// is non-nil only when the configuration is invalid.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	report := &Report{
		RunID:   uuid.NewString(),
		Query:   cfg.Query,
		Started: o.now(),
	}
	log := o.log
	log.Info("pipeline run starting",
		logging.KeyOperation, "pipeline_run",
		logging.KeyRunID, report.RunID,
		"query", cfg.Query,
		"max_results", cfg.MaxResults,
	)
	defer func() {
		report.Finished = o.now()
		o.recordRunMetrics(ctx, report)
		log.Info("pipeline run finished",
			logging.KeyRunID, report.RunID,
			logging.KeyStatus, report.Status.String(),
			"uploaded", report.Uploaded(),
			"failed", report.Failed(),
			"duration", report.Finished.Sub(report.Started).String(),
		)
	}()

	if err := o.preflight(ctx); err != nil {
		return o.fail(report, StageSearching, fmt.Errorf("credential preflight: %w", err)), nil
	}

	searchStart := o.now()
	refs, err := o.search(ctx, cfg)
	o.recordStage(ctx, StageSearching, searchStart)
	if err != nil {
		return o.fail(report, StageSearching, fmt.Errorf("mailbox search: %w", err)), nil
	}
	report.Messages = len(refs)
	if len(refs) == 0 {
		report.Status = StatusCompleted
		report.Reason = "no messages matched the query"
		return report, nil
	}

	uploadStart := o.now()
	slots, err := o.extractAndUpload(ctx, cfg, refs, log)
	o.recordStage(ctx, StageUploading, uploadStart)
	for _, s := range slots {
		report.Attachments = append(report.Attachments, *s.result)
	}
	if err != nil {
		return o.fail(report, StageUploading, err), nil
	}
	if len(slots) == 0 {
		report.Status = StatusCompleted
		report.Reason = "no attachments found in matched messages"
		return report, nil
	}

	archiveStart := o.now()
	zipped := o.buildArchive(ctx, cfg, report, slots, log)
	o.recordStage(ctx, StageArchiving, archiveStart)
	if cancelled(ctx) {
		return o.fail(report, StageNotifying, ctx.Err()), nil
	}

	if o.notifier != nil && cfg.Recipient != "" {
		notifyStart := o.now()
		err := o.sendNotification(ctx, cfg, report, zipped)
		o.recordStage(ctx, StageNotifying, notifyStart)
		if err != nil {
			return o.fail(report, StageNotifying, fmt.Errorf("notification: %w", err)), nil
		}
	}

	if report.Failed() > 0 {
		report.Status = StatusPartialFailure
	} else {
		report.Status = StatusCompleted
	}
	return report, nil
}

func (o *Orchestrator) fail(report *Report, stage Stage, err error) *Report {
	report.Status = StatusFailed
	report.FailedStage = stage
	if cancelledErr(err) {
		report.Reason = "cancelled"
	} else {
		report.Reason = err.Error()
	}
	o.log.Error("pipeline run failed",
		logging.KeyRunID, report.RunID,
		logging.KeyStage, string(stage),
		logging.KeyError, report.Reason,
	)
	return report
}

func (o *Orchestrator) preflight(ctx context.Context) error {
	if o.tokens == nil {
		return nil
	}
	for _, provider := range []string{ProviderGoogle, ProviderMicrosoft} {
		_, err := o.tokens.FetchValidToken(ctx, provider)
		if o.metrics != nil {
			result := instrumentation.OAuthResultSuccess
			if err != nil {
				result = instrumentation.OAuthResultFailure
			}
			o.metrics.RecordOAuthTokenRefresh(ctx, result)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", provider, err)
		}
	}
	return nil
}

func (o *Orchestrator) search(ctx context.Context, cfg Config) ([]MessageRef, error) {
	return retryTransient(ctx, o.fetchAttempts, o.fetchBackoff, func() ([]MessageRef, error) {
		return o.mail.Search(ctx, cfg.Query, cfg.MaxResults)
	})
}

// extractAndUpload walks the matched messages in order, extracting
// attachments and handing each to an upload worker. Discovery is sequential
// so that report positions follow message order and, within a message, the
// part-tree order; uploads themselves run concurrently up to
// cfg.Concurrency. The returned error is non-nil only on cancellation.
func (o *Orchestrator) extractAndUpload(ctx context.Context, cfg Config, refs []MessageRef, log logging.Logger) ([]*slot, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	var slots []*slot
	for _, ref := range refs {
		if cancelled(gctx) {
			break
		}
		root, err := retryTransient(gctx, o.fetchAttempts, o.fetchBackoff, func() (*extract.Part, error) {
			return o.mail.FetchParts(gctx, ref.ID)
		})
		if err != nil {
			if cancelledErr(err) {
				break
			}
			log.Warn("skipping message, part tree fetch failed",
				logging.KeyMessageID, ref.ID,
				logging.KeyError, err.Error(),
			)
			continue
		}
		walkErr := o.extractor.Extract(ref.ID, root, o.mail, func(att *extract.Attachment) error {
			s := &slot{att: att}
			slots = append(slots, s)
			g.Go(func() error {
				s.result = o.processAttachment(gctx, cfg, att)
				return nil
			})
			return gctx.Err()
		})
		if walkErr != nil && !cancelledErr(walkErr) {
			log.Warn("extraction stopped early",
				logging.KeyMessageID, ref.ID,
				logging.KeyError, walkErr.Error(),
			)
		}
	}
	_ = g.Wait()

	for _, s := range slots {
		// Workers that never ran because the run was cancelled leave
		// their slot unfilled.
		if s.result == nil {
			s.result = &AttachmentResult{
				MessageID: s.att.MessageID,
				Filename:  s.att.Filename,
				MimeType:  s.att.MimeType,
				Size:      s.att.Size,
				Err:       context.Canceled,
				Retryable: true,
			}
		}
	}
	return slots, ctx.Err()
}

func (o *Orchestrator) processAttachment(ctx context.Context, cfg Config, att *extract.Attachment) *AttachmentResult {
	res := &AttachmentResult{
		MessageID: att.MessageID,
		Filename:  att.Filename,
		MimeType:  att.MimeType,
		Size:      att.Size,
	}
	if err := ctx.Err(); err != nil {
		res.Err = err
		res.Retryable = true
		return res
	}
	data, err := att.Content(ctx)
	if err != nil {
		res.Err = fmt.Errorf("fetch content: %w", err)
		res.Retryable = !cancelledErr(err)
		return res
	}
	res.Size = int64(len(data))
	remotePath := cfg.DestFolder + "/" + att.Filename
	up := o.uploader.Upload(ctx, remotePath, res.Size, bytes.NewReader(data))
	res.RemotePath = up.RemotePath
	res.Chunked = up.Chunked
	res.Retries = up.Retries
	if up.Succeeded() {
		res.RemoteID = up.RemoteID
	} else {
		res.Err = up.Err
		res.Retryable = up.Retryable
	}
	return res
}

// buildArchive packages the successfully uploaded attachments into a zip
// held in memory. Archive failure never fails the run; the report simply
// carries no archive and the notification goes out without one.
func (o *Orchestrator) buildArchive(ctx context.Context, cfg Config, report *Report, slots []*slot, log logging.Logger) []byte {
	entries := make([]archive.Entry, 0, len(slots))
	for _, s := range slots {
		if !s.result.Succeeded() {
			continue
		}
		att := s.att
		entries = append(entries, archive.Entry{
			Name: att.Filename,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				data, err := att.Content(ctx)
				if err != nil {
					return nil, err
				}
				return io.NopCloser(bytes.NewReader(data)), nil
			},
		})
	}
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	summary, err := o.archiver.Build(ctx, entries, &buf)
	if err != nil {
		log.Warn("archive build failed, continuing without archive",
			logging.KeyStage, string(StageArchiving),
			logging.KeyError, err.Error(),
		)
		return nil
	}
	report.ArchiveName = cfg.ArchiveName
	report.ArchiveEntries = summary.Written
	report.ArchiveSkipped = len(summary.Skipped)
	return buf.Bytes()
}

func (o *Orchestrator) sendNotification(ctx context.Context, cfg Config, report *Report, zipped []byte) error {
	subject := "Files: " + cfg.ArchiveName
	body := report.Summary()
	attachmentName := ""
	if zipped != nil {
		attachmentName = cfg.ArchiveName
	}
	outcome := o.notifier.Send(ctx, cfg.Recipient, subject, body, attachmentName, zipped)
	report.NotifiedID = outcome.MessageID
	report.NotifyErr = outcome.Err
	return outcome.Err
}

func (o *Orchestrator) recordStage(ctx context.Context, stage Stage, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordStageDuration(ctx, string(stage), o.now().Sub(start))
}

func (o *Orchestrator) recordRunMetrics(ctx context.Context, report *Report) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordPipelineRun(ctx, report.Status.String())
	for _, a := range report.Attachments {
		if a.Succeeded() {
			o.metrics.RecordAttachment(ctx, instrumentation.StatusSuccess)
			o.metrics.RecordUpload(ctx, a.Size, a.Retries, a.Chunked)
		} else {
			o.metrics.RecordAttachment(ctx, instrumentation.StatusError)
		}
	}
	if report.NotifiedID != "" || report.NotifyErr != nil {
		status := instrumentation.StatusSuccess
		if report.NotifyErr != nil {
			status = instrumentation.StatusError
		}
		o.metrics.RecordNotification(ctx, status)
	}
}

func cancelled(ctx context.Context) bool { return ctx.Err() != nil }

func cancelledErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
