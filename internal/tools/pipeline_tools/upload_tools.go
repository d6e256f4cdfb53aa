package pipeline_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	gopath "path"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mailhaul/mailhaul/internal/logging"
	"github.com/mailhaul/mailhaul/internal/server"
	"github.com/mailhaul/mailhaul/internal/tools/batch"
	"github.com/mailhaul/mailhaul/internal/upload"
)

func handleUploadToOneDrive(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	localPaths, err := batch.ParseStringOrArray(args["localPaths"], "localPaths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	remoteFolder, ok := args["remoteFolder"].(string)
	if !ok || remoteFolder == "" {
		return mcp.NewToolResultError("remoteFolder is required"), nil
	}

	graphClient, err := sc.GraphClient()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("OneDrive is not configured: %v", err)), nil
	}

	uploader := upload.New(graphClient, upload.Config{}, logging.DefaultLogger())

	type uploadOutput struct {
		LocalPath  string `json:"localPath"`
		RemotePath string `json:"remotePath"`
		RemoteID   string `json:"remoteId,omitempty"`
		Size       int64  `json:"size"`
		Chunked    bool   `json:"chunked"`
		Retries    int    `json:"retries,omitempty"`
		Error      string `json:"error,omitempty"`
	}

	outputs := make([]uploadOutput, 0, len(localPaths))
	failures := 0

	for _, lp := range localPaths {
		info, err := os.Stat(lp)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Local file not found: %s", lp)), nil
		}

		f, err := os.Open(lp)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to open %s: %v", lp, err)), nil
		}

		remotePath := gopath.Join(remoteFolder, filepath.Base(lp))
		res := uploader.Upload(ctx, remotePath, info.Size(), f)
		_ = f.Close()

		out := uploadOutput{
			LocalPath:  lp,
			RemotePath: res.RemotePath,
			RemoteID:   res.RemoteID,
			Size:       info.Size(),
			Chunked:    res.Chunked,
			Retries:    res.Retries,
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
			failures++
		}
		outputs = append(outputs, out)
	}

	jsonBytes, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format output: %v", err)), nil
	}

	if failures > 0 {
		result := fmt.Sprintf("Uploaded %d of %d file(s), %d failed:\n%s",
			len(outputs)-failures, len(outputs), failures, string(jsonBytes))
		return mcp.NewToolResultError(result), nil
	}

	result := fmt.Sprintf("Uploaded %d file(s):\n%s", len(outputs), string(jsonBytes))
	return mcp.NewToolResultText(result), nil
}
