package extract

import (
	"context"
	"fmt"
)

// Part is a provider-neutral node in a message's MIME part tree.
// Container parts (multipart/*, message/rfc822) carry children in Parts;
// leaf parts carry either inline Data or an AttachmentID handle that can be
// resolved through a ContentSource.
type Part struct {
	// PartID is the provider's identifier for this part, if any.
	PartID string

	// Filename is the declared filename, unsanitized. Empty for most
	// inline body parts.
	Filename string

	// MimeType is the declared MIME type (e.g. "application/pdf").
	MimeType string

	// Disposition is the declared Content-Disposition value
	// ("attachment", "inline" or empty).
	Disposition string

	// Size is the declared body size in bytes.
	Size int64

	// Data holds inline body bytes when the provider delivered them with
	// the tree. Nil for parts that require a separate fetch.
	Data []byte

	// AttachmentID is an opaque handle for fetching the body lazily.
	AttachmentID string

	// Parts are the children of a container part.
	Parts []*Part
}

// ContentSource resolves an attachment handle to its bytes. Implemented by
// mail provider clients; test doubles substitute their own.
type ContentSource interface {
	FetchAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// Attachment describes one extracted attachment. The content is either
// carried inline or resolved lazily through the ContentSource the attachment
// was extracted with, so callers never hold all attachment bytes at once.
type Attachment struct {
	// MessageID is the ID of the message this attachment came from.
	MessageID string

	// PartPath is the ordered sequence of child indices from the tree
	// root down to this part.
	PartPath []int

	// Filename is the sanitized, per-message-unique filename.
	Filename string

	// MimeType is the declared MIME type.
	MimeType string

	// Size is the declared size in bytes.
	Size int64

	data         []byte
	attachmentID string
	source       ContentSource
}

// Content returns the attachment bytes, fetching them through the content
// source if they were not inlined in the part tree.
func (a *Attachment) Content(ctx context.Context) ([]byte, error) {
	if a.data != nil {
		return a.data, nil
	}
	if a.attachmentID == "" {
		return nil, fmt.Errorf("attachment %s has no content reference", a.Filename)
	}
	if a.source == nil {
		return nil, fmt.Errorf("attachment %s has no content source", a.Filename)
	}
	return a.source.FetchAttachment(ctx, a.MessageID, a.attachmentID)
}
