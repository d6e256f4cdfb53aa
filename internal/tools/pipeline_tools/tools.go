package pipeline_tools

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mailhaul/mailhaul/internal/gmail"
	"github.com/mailhaul/mailhaul/internal/server"
	"github.com/mailhaul/mailhaul/internal/tools/common"
)

// getAccountFromArgs extracts the account name from request arguments, defaulting to "default"
func getAccountFromArgs(args map[string]interface{}) string {
	account := "default"
	if accountVal, ok := args["account"].(string); ok && accountVal != "" {
		account = accountVal
	}
	return account
}

// RegisterPipelineTools registers all attachment pipeline tools with the MCP server
func RegisterPipelineTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// Search and download tool
	searchTool := mcp.NewTool("search_and_download_attachments",
		mcp.WithDescription("Search Gmail for messages matching a query and download their attachments to a local folder"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Gmail search query (e.g., 'has:attachment from:someone@example.com')"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of messages to process (default: 10)"),
		),
		mcp.WithString("downloadDir",
			mcp.Description("Local directory to download into (default: a fresh temporary directory)"),
		),
	)

	s.AddTool(searchTool, common.InstrumentedToolHandlerWithService(
		"search_and_download_attachments", "gmail", "search", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSearchAndDownload(ctx, request, sc)
		}))

	// Upload tool
	uploadTool := mcp.NewTool("upload_to_onedrive",
		mcp.WithDescription("Upload local files to a OneDrive folder"),
		mcp.WithString("localPaths",
			mcp.Required(),
			mcp.Description("Local file path (string) or array of local file paths to upload"),
		),
		mcp.WithString("remoteFolder",
			mcp.Required(),
			mcp.Description("Remote folder path in OneDrive (e.g., 'MyFolder/Sub')"),
		),
	)

	s.AddTool(uploadTool, common.InstrumentedToolHandlerWithService(
		"upload_to_onedrive", "graph", "upload", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUploadToOneDrive(ctx, request, sc)
		}))

	// Compress tool
	compressTool := mcp.NewTool("compress_files",
		mcp.WithDescription("Compress a list of local files into a zip archive"),
		mcp.WithString("localPaths",
			mcp.Required(),
			mcp.Description("Local file path (string) or array of local file paths to compress"),
		),
		mcp.WithString("outputZip",
			mcp.Required(),
			mcp.Description("Local path for the output zip file. Relative paths land in a temporary directory."),
		),
	)

	s.AddTool(compressTool, common.InstrumentedToolHandler(
		"compress_files", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCompressFiles(ctx, request, sc)
		}))

	// Send zip tool
	sendZipTool := mcp.NewTool("send_zip_via_email",
		mcp.WithDescription("Send a zip file as an attachment via Gmail"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient email address"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Email subject"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Email body text"),
		),
		mcp.WithString("zipPath",
			mcp.Required(),
			mcp.Description("Local path of the zip file to attach"),
		),
	)

	s.AddTool(sendZipTool, common.InstrumentedToolHandlerWithService(
		"send_zip_via_email", "gmail", "send", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSendZipViaEmail(ctx, request, sc)
		}))

	// Full pipeline tool
	orchestrateTool := mcp.NewTool("orchestrate_full_pipeline",
		mcp.WithDescription("Run the full pipeline: search Gmail, upload attachments to OneDrive, compress them into a zip and send the zip by email"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Gmail search query (e.g., 'has:attachment newer_than:7d')"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of messages to process (default: 10)"),
		),
		mcp.WithString("onedriveFolder",
			mcp.Description("OneDrive folder uploads land in (default: 'Attachments')"),
		),
		mcp.WithString("recipientEmail",
			mcp.Description("Recipient of the completion email. When omitted no email is sent."),
		),
		mcp.WithString("zipName",
			mcp.Description("Name of the zip archive (default: 'attachments.zip')"),
		),
		mcp.WithNumber("concurrency",
			mcp.Description("Upload worker pool size (default: 4)"),
		),
	)

	s.AddTool(orchestrateTool, common.InstrumentedToolHandler(
		"orchestrate_full_pipeline", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleOrchestrateFullPipeline(ctx, request, sc)
		}))

	return nil
}

// gmailClientForArgs returns the Gmail client for the request's account,
// creating and caching it when needed. On a missing token it returns an
// error result walking the user through the authorization flow.
func gmailClientForArgs(ctx context.Context, sc *server.ServerContext, args map[string]interface{}) (*gmail.Client, *mcp.CallToolResult) {
	account := getAccountFromArgs(args)
	client := sc.GmailClientForAccount(account)
	if client != nil {
		return client, nil
	}

	if !gmail.HasTokenForAccount(account) {
		authURL := gmail.GetAuthURLForAccount(account)
		errorMsg := fmt.Sprintf(`Gmail OAuth token not found. To authorize access:

1. Visit this URL in your browser:
   %s

2. Sign in with your Google account
3. Grant access to Gmail
4. Copy the authorization code

5. Provide the authorization code to your AI agent
   The agent will use the google_save_auth_code tool to complete authentication.

Note: You only need to authorize once. The tokens will be automatically refreshed.`, authURL)
		return nil, mcp.NewToolResultError(errorMsg)
	}

	client, err := gmail.NewClientForAccount(ctx, account)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("Failed to create Gmail client: %v", err))
	}
	sc.SetGmailClientForAccount(account, client)
	return client, nil
}

// workDir resolves the directory a tool writes into, creating a fresh
// temporary one when the request did not name a directory.
func workDir(args map[string]interface{}, key string) (string, error) {
	if dir, ok := args[key].(string); ok && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		return dir, nil
	}
	return os.MkdirTemp("", "mailhaul_work_")
}

// formatSize formats a byte size into human-readable format
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
