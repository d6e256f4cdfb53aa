// Package pipeline_tools provides MCP (Model Context Protocol) tools for the
// Gmail attachment to OneDrive pipeline.
//
// This package exposes the pipeline stages through MCP tools that can be
// called by AI agents or other MCP clients, individually or as a single
// end-to-end run:
//
// Stage Tools:
//   - search_and_download_attachments: Search Gmail and download matching
//     attachments to a local folder
//   - upload_to_onedrive: Upload local files to a OneDrive folder
//   - compress_files: Compress local files into a zip archive
//   - send_zip_via_email: Send a zip file as a Gmail attachment
//
// Pipeline Tool:
//   - orchestrate_full_pipeline: Run search, upload, compress and send as
//     one orchestrated run with a per-attachment report
//
// The stage tools compose through local file paths: search downloads into a
// directory, upload and compress take those paths, and send takes the zip
// path compress produced. The orchestrated run instead streams attachment
// content through memory without touching local disk.
//
// All Gmail tools require an authenticated client which is provided through
// the server context. OneDrive access uses the application credentials the
// server was started with.
//
// Example usage:
//
//	// Individual stages
//	search_and_download_attachments(query: "has:attachment from:billing", maxResults: 20)
//	upload_to_onedrive(localPaths: ["/tmp/mailhaul_work_1/invoice.pdf"], remoteFolder: "Invoices/2026")
//	compress_files(localPaths: ["/tmp/mailhaul_work_1/invoice.pdf"], outputZip: "invoices.zip")
//	send_zip_via_email(to: "me@example.com", subject: "Invoices", body: "See attached", zipPath: "/tmp/mailhaul_work_2/invoices.zip")
//
//	// Everything at once
//	orchestrate_full_pipeline(query: "has:attachment newer_than:7d",
//	    onedriveFolder: "Attachments", recipientEmail: "me@example.com", zipName: "weekly.zip")
//
// Security Considerations:
//   - Attachment size is limited to 25MB (gmail.MaxAttachmentSize)
//   - Filenames are sanitized to prevent path traversal attacks
//   - OAuth2 tokens are securely stored and refreshed automatically
package pipeline_tools
