// Package logging provides structured logging utilities for mailhaul.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (email anonymization)
//   - Consistent attribute naming for pipeline runs, messages and attachments
//   - Logger adapter interface for flexibility
//
// # Usage Patterns
//
// Create a logger scoped to a pipeline run:
//
//	logger := logging.WithRun(slog.Default(), runID)
//	logger.Info("upload finished",
//	    logging.Attachment(name),
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("notification sent",
//	    logging.RecipientHash(recipient))
//
// # Security Considerations
//
//   - Recipient and sender addresses are hashed to prevent PII leakage while
//     still allowing correlation across log entries
//   - Tokens are never logged directly
package logging
