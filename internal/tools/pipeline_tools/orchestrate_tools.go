package pipeline_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mailhaul/mailhaul/internal/archive"
	"github.com/mailhaul/mailhaul/internal/logging"
	"github.com/mailhaul/mailhaul/internal/notify"
	"github.com/mailhaul/mailhaul/internal/pipeline"
	"github.com/mailhaul/mailhaul/internal/server"
	"github.com/mailhaul/mailhaul/internal/upload"
)

func handleOrchestrateFullPipeline(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	cfg := pipeline.Config{Query: query}
	if maxVal, ok := args["maxResults"].(float64); ok && maxVal > 0 {
		cfg.MaxResults = int64(maxVal)
	}
	if folder, ok := args["onedriveFolder"].(string); ok && folder != "" {
		cfg.DestFolder = folder
	}
	if recipient, ok := args["recipientEmail"].(string); ok && recipient != "" {
		cfg.Recipient = recipient
	}
	if zipName, ok := args["zipName"].(string); ok && zipName != "" {
		cfg.ArchiveName = zipName
	}
	if conc, ok := args["concurrency"].(float64); ok && conc > 0 {
		cfg.Concurrency = int(conc)
	}

	if err := cfg.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	account := getAccountFromArgs(args)
	client, errResult := gmailClientForArgs(ctx, sc, args)
	if errResult != nil {
		return errResult, nil
	}

	graphClient, err := sc.GraphClient()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("OneDrive is not configured: %v", err)), nil
	}

	log := logging.DefaultLogger()
	var notifier pipeline.Notifier
	if cfg.Recipient != "" {
		notifier = notify.New(client, 0, log)
	}

	orchestrator := pipeline.New(
		pipeline.NewGmailSource(client),
		upload.New(graphClient, upload.Config{
			ChunkSize:           cfg.ChunkSize,
			SingleShotThreshold: cfg.SingleShotThreshold,
		}, log),
		archive.New(log),
		notifier,
		pipeline.NewCredentialSource(account, graphClient.TokenSource()),
		log,
	)
	orchestrator.SetMetrics(sc.Metrics())

	report, err := orchestrator.Run(ctx, cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Pipeline run failed: %v", err)), nil
	}

	summary := report.Summary()
	if report.Status == pipeline.StatusFailed {
		return mcp.NewToolResultError(summary), nil
	}
	return mcp.NewToolResultText(summary), nil
}
