package pipeline_tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mailhaul/mailhaul/internal/archive"
	"github.com/mailhaul/mailhaul/internal/logging"
	"github.com/mailhaul/mailhaul/internal/server"
	"github.com/mailhaul/mailhaul/internal/tools/batch"
)

func handleCompressFiles(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	localPaths, err := batch.ParseStringOrArray(args["localPaths"], "localPaths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outputZip, ok := args["outputZip"].(string)
	if !ok || outputZip == "" {
		return mcp.NewToolResultError("outputZip is required"), nil
	}

	if !filepath.IsAbs(outputZip) {
		dir, err := os.MkdirTemp("", "mailhaul_work_")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create temporary directory: %v", err)), nil
		}
		outputZip = filepath.Join(dir, outputZip)
	}

	entries := make([]archive.Entry, 0, len(localPaths))
	for _, lp := range localPaths {
		lp := lp
		entries = append(entries, archive.Entry{
			Name: filepath.Base(lp),
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				return os.Open(lp)
			},
		})
	}

	out, err := os.Create(outputZip)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create %s: %v", outputZip, err)), nil
	}

	builder := archive.New(logging.DefaultLogger())
	summary, err := builder.Build(ctx, entries, out)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to build archive: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Created %s with %d entr(ies)", outputZip, summary.Written)
	if len(summary.Skipped) > 0 {
		fmt.Fprintf(&sb, ", %d skipped:", len(summary.Skipped))
		for _, sk := range summary.Skipped {
			fmt.Fprintf(&sb, "\n  %s: %v", sk.Name, sk.Reason)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}
