package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// EmailMessage represents an email to be sent
type EmailMessage struct {
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
	IsHTML  bool

	// AttachmentName and Attachment, when set, attach a single file to the
	// message using a multipart/mixed body.
	AttachmentName string
	Attachment     []byte
}

// encodeRFC2047 encodes a string for use in email headers according to RFC 2047
// This is necessary for non-ASCII characters (like German umlauts) in subjects
func encodeRFC2047(s string) string {
	// Check if the string contains only ASCII characters
	needsEncoding := false
	for _, r := range s {
		if r > 127 {
			needsEncoding = true
			break
		}
	}

	// If it's all ASCII, return as-is
	if !needsEncoding {
		return s
	}

	// Use Go's mime package which implements RFC 2047 encoding
	return mime.BEncoding.Encode("UTF-8", s)
}

// SendEmail sends an email through the Gmail API and returns the sent
// message ID.
func (c *Client) SendEmail(ctx context.Context, msg *EmailMessage) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}
	if msg.Subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if msg.Body == "" {
		return "", fmt.Errorf("body is required")
	}
	if len(msg.Attachment) > MaxAttachmentSize {
		return "", fmt.Errorf("attachment size %d exceeds maximum size %d", len(msg.Attachment), MaxAttachmentSize)
	}

	raw := buildRawMessage(msg)

	sent, err := c.svc.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	return sent.Id, nil
}

// SendMessage sends a notification email with an optional single attachment.
// It satisfies the notification sender's transport interface.
func (c *Client) SendMessage(ctx context.Context, to, subject, body, attachmentName string, attachment []byte) (string, error) {
	return c.SendEmail(ctx, &EmailMessage{
		To:             []string{to},
		Subject:        subject,
		Body:           body,
		AttachmentName: attachmentName,
		Attachment:     attachment,
	})
}

// buildRawMessage renders the message in RFC 2822 format and encodes it the
// way the Gmail API expects, base64url over the whole message.
func buildRawMessage(msg *EmailMessage) string {
	var b strings.Builder

	b.WriteString("To: ")
	b.WriteString(strings.Join(msg.To, ", "))
	b.WriteString("\r\n")

	if len(msg.Cc) > 0 {
		b.WriteString("Cc: ")
		b.WriteString(strings.Join(msg.Cc, ", "))
		b.WriteString("\r\n")
	}

	if len(msg.Bcc) > 0 {
		b.WriteString("Bcc: ")
		b.WriteString(strings.Join(msg.Bcc, ", "))
		b.WriteString("\r\n")
	}

	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(msg.Subject))
	b.WriteString("\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")

	bodyType := "text/plain"
	if msg.IsHTML {
		bodyType = "text/html"
	}

	if len(msg.Attachment) == 0 {
		b.WriteString("Content-Type: " + bodyType + "; charset=\"UTF-8\"\r\n")
		b.WriteString("\r\n")
		b.WriteString(msg.Body)
		return base64.URLEncoding.EncodeToString([]byte(b.String()))
	}

	const boundary = "mailhaul-mixed-boundary"
	b.WriteString("Content-Type: multipart/mixed; boundary=\"" + boundary + "\"\r\n")
	b.WriteString("\r\n")

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: " + bodyType + "; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	name := msg.AttachmentName
	if name == "" {
		name = "attachment.zip"
	}
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: application/zip; name=\"" + name + "\"\r\n")
	b.WriteString("Content-Disposition: attachment; filename=\"" + name + "\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")
	b.WriteString(wrapBase64(base64.StdEncoding.EncodeToString(msg.Attachment)))
	b.WriteString("\r\n")
	b.WriteString("--" + boundary + "--\r\n")

	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

// wrapBase64 folds base64 content to 76-character lines per RFC 2045.
func wrapBase64(s string) string {
	const lineLen = 76
	if len(s) <= lineLen {
		return s
	}
	var b strings.Builder
	for len(s) > lineLen {
		b.WriteString(s[:lineLen])
		b.WriteString("\r\n")
		s = s[lineLen:]
	}
	b.WriteString(s)
	return b.String()
}
