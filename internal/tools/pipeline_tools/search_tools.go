package pipeline_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mailhaul/mailhaul/internal/extract"
	"github.com/mailhaul/mailhaul/internal/logging"
	"github.com/mailhaul/mailhaul/internal/server"
)

func handleSearchAndDownload(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	maxResults := int64(10)
	if maxVal, ok := args["maxResults"].(float64); ok && maxVal > 0 {
		maxResults = int64(maxVal)
	}

	client, errResult := gmailClientForArgs(ctx, sc, args)
	if errResult != nil {
		return errResult, nil
	}

	dir, err := workDir(args, "downloadDir")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to prepare download directory: %v", err)), nil
	}

	messages, err := client.SearchMessages(ctx, query, maxResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search messages: %v", err)), nil
	}

	if len(messages) == 0 {
		return mcp.NewToolResultText("No messages found matching query"), nil
	}

	type downloadOutput struct {
		MessageID string `json:"messageId"`
		Filename  string `json:"filename"`
		Path      string `json:"path"`
		MimeType  string `json:"mimeType"`
		Size      int64  `json:"size"`
		SizeHuman string `json:"sizeHuman"`
	}

	extractor := extract.New(logging.DefaultLogger())
	var outputs []downloadOutput

	for _, msg := range messages {
		root, err := client.FetchParts(ctx, msg.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch message %s: %v", msg.ID, err)), nil
		}

		err = extractor.Extract(msg.ID, root, client, func(att *extract.Attachment) error {
			content, err := att.Content(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch content of %s: %w", att.Filename, err)
			}

			path := uniquePath(dir, att.Filename)
			if err := os.WriteFile(path, content, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			outputs = append(outputs, downloadOutput{
				MessageID: att.MessageID,
				Filename:  filepath.Base(path),
				Path:      path,
				MimeType:  att.MimeType,
				Size:      int64(len(content)),
				SizeHuman: formatSize(int64(len(content))),
			})
			return nil
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to extract attachments from message %s: %v", msg.ID, err)), nil
		}
	}

	if len(outputs) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Searched %d message(s), no attachments found", len(messages))), nil
	}

	jsonBytes, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format output: %v", err)), nil
	}

	result := fmt.Sprintf("Downloaded %d attachment(s) to %s:\n%s", len(outputs), dir, string(jsonBytes))
	return mcp.NewToolResultText(result), nil
}

// uniquePath returns a path in dir for name that does not collide with an
// existing file, suffixing "_1", "_2", ... before the extension when needed.
func uniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}
