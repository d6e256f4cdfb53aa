package pipeline

import (
	"fmt"
	"strings"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultMaxResults  = 10
	DefaultConcurrency = 4
	DefaultArchiveName = "attachments.zip"
	DefaultDestFolder  = "Attachments"
)

// Config describes a single pipeline run.
type Config struct {
	// Query is the mailbox search expression, e.g. "has:attachment from:billing".
	Query string

	// MaxResults caps the number of messages processed. Zero means DefaultMaxResults.
	MaxResults int64

	// DestFolder is the file store folder uploads land in.
	DestFolder string

	// Recipient receives the completion notification.
	Recipient string

	// ArchiveName is the zip file name; ".zip" is appended when missing.
	ArchiveName string

	// Concurrency bounds the upload worker pool. Zero means DefaultConcurrency.
	Concurrency int

	// ChunkSize and SingleShotThreshold tune the uploader when non-zero.
	ChunkSize           int64
	SingleShotThreshold int64
}

func (c Config) withDefaults() Config {
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.DestFolder == "" {
		c.DestFolder = DefaultDestFolder
	}
	if c.ArchiveName == "" {
		c.ArchiveName = DefaultArchiveName
	}
	if !strings.HasSuffix(strings.ToLower(c.ArchiveName), ".zip") {
		c.ArchiveName += ".zip"
	}
	return c
}

// Validate reports configuration errors that would make a run meaningless.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Query) == "" {
		return fmt.Errorf("pipeline: query must not be empty")
	}
	if c.Recipient != "" && !strings.Contains(c.Recipient, "@") {
		return fmt.Errorf("pipeline: recipient %q is not an email address", c.Recipient)
	}
	return nil
}
