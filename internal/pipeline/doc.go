// Package pipeline orchestrates the attachment-forwarding run: search the
// mailbox, extract attachments, upload them to the file store, package the
// results into an archive and send a completion notification.
//
// The orchestrator is the only component with global state about a run. It
// advances through the stages strictly in order and never reverts; work
// within the upload stage fans out over attachments with a bounded worker
// pool. Per-attachment failures are contained and recorded in the report;
// a wholesale failure of search or notification ends the run as Failed.
// Whatever happens, a report is produced.
package pipeline
