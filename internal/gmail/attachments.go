package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/mailhaul/mailhaul/internal/extract"
)

const (
	// MaxAttachmentSize defines the maximum attachment size in bytes (25MB)
	MaxAttachmentSize = 25 * 1024 * 1024
)

// AttachmentInfo represents an attachment's metadata
type AttachmentInfo struct {
	MessageID    string
	PartID       string
	AttachmentID string
	Filename     string
	MimeType     string
	Size         int64
}

// ListAttachments extracts all attachment metadata from a message
func (c *Client) ListAttachments(ctx context.Context, messageID string) ([]*AttachmentInfo, error) {
	msg, err := c.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	var attachments []*AttachmentInfo
	walkParts(msg.Payload, func(part *gmail.MessagePart) {
		if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
			attachments = append(attachments, &AttachmentInfo{
				MessageID:    messageID,
				PartID:       part.PartId,
				AttachmentID: part.Body.AttachmentId,
				Filename:     part.Filename,
				MimeType:     part.MimeType,
				Size:         part.Body.Size,
			})
		}
	})

	return attachments, nil
}

// FetchParts retrieves a message and converts its payload into the
// provider-neutral part tree the extractor walks.
func (c *Client) FetchParts(ctx context.Context, messageID string) (*extract.Part, error) {
	msg, err := c.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Payload == nil {
		return nil, fmt.Errorf("message %s has no payload", messageID)
	}
	return toPart(msg.Payload), nil
}

// toPart converts a Gmail message part into the extractor's tree node.
// Inline body data is decoded eagerly; attachment bodies stay behind their
// attachment ID so the extractor can fetch them lazily.
func toPart(p *gmail.MessagePart) *extract.Part {
	out := &extract.Part{
		PartID:      p.PartId,
		Filename:    p.Filename,
		MimeType:    p.MimeType,
		Disposition: partDisposition(p),
	}
	if p.Body != nil {
		out.Size = p.Body.Size
		out.AttachmentID = p.Body.AttachmentId
		if p.Body.Data != "" {
			if data, err := decodeBody(p.Body.Data); err == nil {
				out.Data = data
				out.Size = int64(len(data))
			}
		}
	}
	for _, child := range p.Parts {
		out.Parts = append(out.Parts, toPart(child))
	}
	return out
}

// partDisposition extracts the disposition type from the part's
// Content-Disposition header, without parameters.
func partDisposition(p *gmail.MessagePart) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, "Content-Disposition") {
			v := h.Value
			if i := strings.Index(v, ";"); i >= 0 {
				v = v[:i]
			}
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// FetchAttachment retrieves the content of an attachment. It implements the
// extractor's content source so attachment bytes are only downloaded for
// parts that actually get processed.
func (c *Client) FetchAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	if messageID == "" {
		return nil, fmt.Errorf("messageID is required")
	}
	if attachmentID == "" {
		return nil, fmt.Errorf("attachmentID is required")
	}

	attachment, err := c.svc.Messages.Attachments.Get("me", messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s: %w", attachmentID, err)
	}

	// Check size limit
	if attachment.Size > MaxAttachmentSize {
		return nil, fmt.Errorf("attachment size %d exceeds maximum size %d", attachment.Size, MaxAttachmentSize)
	}

	data, err := decodeBody(attachment.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment data: %w", err)
	}

	return data, nil
}

// decodeBody decodes base64url-encoded body data (Gmail API uses RFC 4648
// base64url encoding), falling back to standard base64.
func decodeBody(encoded string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// walkParts recursively walks through message parts
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}

	fn(part)

	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}
