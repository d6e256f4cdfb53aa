package extract

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/mailhaul/mailhaul/internal/logging"
)

// MaxDepth bounds part-tree descent. Real messages rarely nest more than a
// handful of levels; anything deeper is treated as pathological and the
// branch is skipped with a warning.
const MaxDepth = 20

// Extractor walks a message's part tree and yields attachments in document
// order. Malformed parts are skipped with a warning, never a fatal error.
type Extractor struct {
	log logging.Logger
}

// New creates an Extractor. If log is nil the default slog logger is used.
func New(log logging.Logger) *Extractor {
	if log == nil {
		log = logging.NewSlogAdapter(slog.Default())
	}
	return &Extractor{log: log}
}

// Extract walks the part tree rooted at root depth-first and invokes fn for
// each attachment as it is discovered, so callers can start uploading before
// the whole tree has been walked. Returning an error from fn stops the walk
// and propagates the error.
//
// A part is an attachment candidate if it declares a filename, declares an
// "attachment" disposition, or is a non-readable leaf with a fetchable body.
// Container parts are never attachments themselves but are descended into.
// Filenames within one message are sanitized and made unique.
func (e *Extractor) Extract(messageID string, root *Part, src ContentSource, fn func(*Attachment) error) error {
	if root == nil {
		return nil
	}
	w := &walker{
		extractor: e,
		messageID: messageID,
		source:    src,
		fn:        fn,
		seen:      make(map[string]int),
	}
	return w.walk(root, nil, 0)
}

type walker struct {
	extractor *Extractor
	messageID string
	source    ContentSource
	fn        func(*Attachment) error
	seen      map[string]int
	count     int
}

func (w *walker) walk(p *Part, partPath []int, depth int) error {
	if p == nil {
		return nil
	}
	if depth > MaxDepth {
		w.extractor.log.Warn("part tree exceeds depth cap, skipping branch",
			logging.KeyMessageID, w.messageID,
			"depth", depth,
			"cap", MaxDepth)
		return nil
	}

	if isContainer(p) {
		for i, child := range p.Parts {
			childPath := append(append([]int(nil), partPath...), i)
			if err := w.walk(child, childPath, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if !isAttachmentCandidate(p) {
		return nil
	}

	if p.Data == nil && p.AttachmentID == "" {
		w.extractor.log.Warn("attachment part has no content reference, skipping",
			logging.KeyMessageID, w.messageID,
			logging.KeyAttachment, p.Filename)
		return nil
	}

	w.count++
	name := SanitizeFilename(p.Filename)
	if name == "" {
		name = fmt.Sprintf("attachment_%d", w.count)
	}
	name = w.disambiguate(name)

	att := &Attachment{
		MessageID:    w.messageID,
		PartPath:     partPath,
		Filename:     name,
		MimeType:     p.MimeType,
		Size:         p.Size,
		data:         p.Data,
		attachmentID: p.AttachmentID,
		source:       w.source,
	}
	return w.fn(att)
}

// disambiguate appends a numeric suffix before the extension when the name
// was already yielded for this message: report.pdf, report_1.pdf, ...
func (w *walker) disambiguate(name string) string {
	n, dup := w.seen[name]
	if !dup {
		w.seen[name] = 0
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for {
		n++
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if _, taken := w.seen[candidate]; !taken {
			w.seen[name] = n
			w.seen[candidate] = 0
			return candidate
		}
	}
}

// isContainer reports whether the part is a structural container whose
// children should be visited rather than the part itself.
func isContainer(p *Part) bool {
	if len(p.Parts) == 0 {
		return false
	}
	return strings.HasPrefix(p.MimeType, "multipart/") || p.MimeType == "message/rfc822"
}

func isAttachmentCandidate(p *Part) bool {
	if p.Filename != "" {
		return true
	}
	if strings.EqualFold(p.Disposition, "attachment") {
		return true
	}
	// A leaf with a fetchable body that is not readable message content is
	// an unnamed attachment (e.g. forwarded binary blobs).
	if p.AttachmentID != "" && !isReadableBody(p.MimeType) {
		return true
	}
	return false
}

func isReadableBody(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/")
}

// SanitizeFilename strips path separators and traversal sequences from a
// declared filename so it is safe to use as an archive entry or remote path
// segment.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")
	return strings.TrimSpace(filename)
}
