// Package archive streams named byte sources into a single zip archive.
//
// Entries are compressed as their sources are consumed, so the builder never
// needs every source materialized at once. A source that fails to open or
// read is skipped with a logged reason and the archive still completes with
// the remaining entries.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/mailhaul/mailhaul/internal/logging"
)

// Entry is one named byte source destined for the archive. Open is called
// when the entry is about to be written, keeping at most one source's bytes
// live at a time.
type Entry struct {
	Name string
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// Skipped records an entry that could not be archived.
type Skipped struct {
	Name   string
	Reason error
}

// Summary reports what the builder wrote.
type Summary struct {
	// Written is the number of entries in the archive.
	Written int

	// Skipped lists entries whose sources failed.
	Skipped []Skipped
}

// Builder writes zip archives. The zero value is not usable; create one with
// New.
type Builder struct {
	log logging.Logger
	now func() time.Time
}

// New creates a Builder. If log is nil the default slog logger is used.
func New(log logging.Logger) *Builder {
	if log == nil {
		log = logging.NewSlogAdapter(slog.Default())
	}
	return &Builder{log: log, now: time.Now}
}

// Build streams entries into w as a zip archive. Duplicate entry names get a
// numeric suffix before the extension, the same rule attachment extraction
// uses. A failing source skips that entry only; the error return covers the
// archive stream itself (write or close failures).
func (b *Builder) Build(ctx context.Context, entries []Entry, w io.Writer) (*Summary, error) {
	zw := zip.NewWriter(w)
	summary := &Summary{}
	seen := make(map[string]int)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return summary, fmt.Errorf("archive build cancelled: %w", err)
		}

		name := uniqueName(seen, entry.Name)
		if err := b.writeEntry(ctx, zw, name, entry); err != nil {
			if isStreamError(err) {
				zw.Close()
				return summary, fmt.Errorf("archive stream failed at entry %s: %w", name, err)
			}
			b.log.Warn("skipping archive entry, source failed",
				logging.KeyAttachment, entry.Name,
				logging.KeyError, err.Error())
			summary.Skipped = append(summary.Skipped, Skipped{Name: entry.Name, Reason: err})
			continue
		}
		summary.Written++
	}

	if err := zw.Close(); err != nil {
		return summary, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return summary, nil
}

// writeEntry copies one source into the archive.
func (b *Builder) writeEntry(ctx context.Context, zw *zip.Writer, name string, entry Entry) error {
	src, err := entry.Open(ctx)
	if err != nil {
		return &sourceError{err: fmt.Errorf("failed to open source: %w", err)}
	}
	defer src.Close()

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: b.now(),
	}
	ew, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	if _, err := io.Copy(ew, src); err != nil {
		// Reads from the source are entry-local failures; the zip writer
		// itself reports write failures through subsequent calls.
		return &sourceError{err: fmt.Errorf("failed to read source: %w", err)}
	}
	return nil
}

// sourceError marks failures local to one entry's source, as opposed to
// failures of the archive output stream.
type sourceError struct {
	err error
}

func (e *sourceError) Error() string { return e.err.Error() }
func (e *sourceError) Unwrap() error { return e.err }

func isStreamError(err error) bool {
	_, ok := err.(*sourceError)
	return !ok
}

// uniqueName disambiguates duplicate entry names: scan.pdf, scan_1.pdf, ...
func uniqueName(seen map[string]int, name string) string {
	n, dup := seen[name]
	if !dup {
		seen[name] = 0
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for {
		n++
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if _, taken := seen[candidate]; !taken {
			seen[name] = n
			seen[candidate] = 0
			return candidate
		}
	}
}
