// Package gmail provides a client for interacting with the Gmail API.
//
// The client covers the mailbox side of the attachment pipeline:
//   - Message search with pagination
//   - Part tree retrieval for attachment extraction
//   - Lazy attachment content download
//   - Sending notification emails, optionally with a zip attached
//
// Authentication:
// This package uses the unified Google OAuth token from the google package.
// For HTTP/SSE transports: OAuth is handled automatically by the MCP client.
// For STDIO transport: Tokens are loaded from the file system (~/.cache/mailhaul/).
//
// Example usage:
//
//	ctx := context.Background()
//	client, err := gmail.NewClient(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Find messages carrying attachments
//	msgs, err := client.SearchMessages(ctx, "has:attachment from:billing", 10)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Fetch the part tree of the first match and walk it
//	root, err := client.FetchParts(ctx, msgs[0].ID)
package gmail
