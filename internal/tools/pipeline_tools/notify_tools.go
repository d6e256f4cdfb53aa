package pipeline_tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mailhaul/mailhaul/internal/logging"
	"github.com/mailhaul/mailhaul/internal/notify"
	"github.com/mailhaul/mailhaul/internal/server"
)

func handleSendZipViaEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	to, ok := args["to"].(string)
	if !ok || to == "" {
		return mcp.NewToolResultError("to is required"), nil
	}

	subject, ok := args["subject"].(string)
	if !ok || subject == "" {
		return mcp.NewToolResultError("subject is required"), nil
	}

	body, ok := args["body"].(string)
	if !ok || body == "" {
		return mcp.NewToolResultError("body is required"), nil
	}

	zipPath, ok := args["zipPath"].(string)
	if !ok || zipPath == "" {
		return mcp.NewToolResultError("zipPath is required"), nil
	}

	data, err := os.ReadFile(zipPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read zip file %s: %v", zipPath, err)), nil
	}

	client, errResult := gmailClientForArgs(ctx, sc, args)
	if errResult != nil {
		return errResult, nil
	}

	sender := notify.New(client, 0, logging.DefaultLogger())
	outcome := sender.Send(ctx, to, subject, body, filepath.Base(zipPath), data)
	if !outcome.Sent() {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send email after %d attempt(s): %v", outcome.Attempts, outcome.Err)), nil
	}

	result := fmt.Sprintf("Email sent to %s with %s (%s) attached (message ID: %s)",
		to, filepath.Base(zipPath), formatSize(int64(len(data))), outcome.MessageID)
	return mcp.NewToolResultText(result), nil
}
