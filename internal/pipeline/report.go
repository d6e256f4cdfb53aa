package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Stage is a phase of a pipeline run. Stages only advance.
type Stage string

const (
	StageSearching  Stage = "searching"
	StageExtracting Stage = "extracting"
	StageUploading  Stage = "uploading"
	StageArchiving  Stage = "archiving"
	StageNotifying  Stage = "notifying"
	StageDone       Stage = "done"
)

// Status is the overall outcome of a run.
type Status int

const (
	// StatusCompleted means every discovered attachment uploaded and the
	// notification (when configured) was delivered.
	StatusCompleted Status = iota
	// StatusPartialFailure means some attachments failed but the run itself
	// finished and the notification was delivered.
	StatusPartialFailure
	// StatusFailed means a wholesale step failed, the notification could not
	// be delivered, or the run was cancelled.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusPartialFailure:
		return "partial_failure"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// AttachmentResult records the outcome for one discovered attachment, in
// discovery order.
type AttachmentResult struct {
	MessageID  string
	Filename   string
	MimeType   string
	Size       int64
	RemotePath string
	RemoteID   string
	Chunked    bool
	Retries    int
	Err        error
	Retryable  bool
}

// Succeeded reports whether the attachment reached the file store.
func (r AttachmentResult) Succeeded() bool { return r.Err == nil }

// Report is the full account of a pipeline run. One is always produced,
// even when the run fails before discovering any work.
type Report struct {
	RunID    string
	Query    string
	Started  time.Time
	Finished time.Time

	Messages    int
	Attachments []AttachmentResult

	ArchiveName    string
	ArchiveEntries int
	ArchiveSkipped int

	NotifiedID string
	NotifyErr  error

	Status      Status
	FailedStage Stage
	Reason      string
}

// Uploaded counts attachments that reached the file store.
func (r *Report) Uploaded() int {
	n := 0
	for _, a := range r.Attachments {
		if a.Succeeded() {
			n++
		}
	}
	return n
}

// Failed counts attachments that did not reach the file store.
func (r *Report) Failed() int { return len(r.Attachments) - r.Uploaded() }

// Summary renders the human-readable run summary used as the notification
// body and the CLI output.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Attachment run %s\n", r.Status)
	fmt.Fprintf(&b, "Query: %s\n", r.Query)
	fmt.Fprintf(&b, "Messages: %d, attachments: %d, uploaded: %d, failed: %d\n",
		r.Messages, len(r.Attachments), r.Uploaded(), r.Failed())
	if r.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", r.Reason)
	}
	for _, a := range r.Attachments {
		if a.Succeeded() {
			fmt.Fprintf(&b, "  [ok] %s -> %s\n", a.Filename, a.RemotePath)
		} else {
			fmt.Fprintf(&b, "  [failed] %s: %v\n", a.Filename, a.Err)
		}
	}
	if r.ArchiveEntries > 0 {
		fmt.Fprintf(&b, "Archive %s: %d entries", r.ArchiveName, r.ArchiveEntries)
		if r.ArchiveSkipped > 0 {
			fmt.Fprintf(&b, " (%d skipped)", r.ArchiveSkipped)
		}
		b.WriteString("\n")
	}
	return b.String()
}
