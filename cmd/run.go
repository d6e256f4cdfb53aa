package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mailhaul/mailhaul/internal/archive"
	"github.com/mailhaul/mailhaul/internal/gmail"
	"github.com/mailhaul/mailhaul/internal/graph"
	"github.com/mailhaul/mailhaul/internal/logging"
	"github.com/mailhaul/mailhaul/internal/notify"
	"github.com/mailhaul/mailhaul/internal/pipeline"
	"github.com/mailhaul/mailhaul/internal/upload"
)

// graphConfigFromEnv builds the OneDrive application credentials, preferring
// explicit flag values over environment variables.
func graphConfigFromEnv(tenantID, clientID, clientSecret string) graph.Config {
	if tenantID == "" {
		tenantID = os.Getenv("MAILHAUL_MS_TENANT_ID")
	}
	if clientID == "" {
		clientID = os.Getenv("MAILHAUL_MS_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("MAILHAUL_MS_CLIENT_SECRET")
	}
	return graph.Config{
		TenantID:     tenantID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

func newRunCmd() *cobra.Command {
	var (
		account      string
		query        string
		maxResults   int64
		folder       string
		recipient    string
		zipName      string
		concurrency  int
		tenantID     string
		clientID     string
		clientSecret string
		debugMode    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the attachment pipeline once",
		Long: `Run the full pipeline once: search Gmail for messages matching the query,
upload their attachments to OneDrive, compress the uploaded attachments into
a zip archive and send the archive to the recipient by email.

OneDrive Configuration:
  --ms-tenant-id, --ms-client-id and --ms-client-secret flags
  OR MAILHAUL_MS_TENANT_ID, MAILHAUL_MS_CLIENT_ID and
  MAILHAUL_MS_CLIENT_SECRET env vars.

Gmail Configuration:
  MAILHAUL_GOOGLE_CLIENT_ID and MAILHAUL_GOOGLE_CLIENT_SECRET env vars,
  plus a cached OAuth token for the account (see the google_get_auth_url
  and google_save_auth_code MCP tools).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if debugMode {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			log := logging.NewSlogAdapter(logger)

			cfg := pipeline.Config{
				Query:       query,
				MaxResults:  maxResults,
				DestFolder:  folder,
				Recipient:   recipient,
				ArchiveName: zipName,
				Concurrency: concurrency,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			client, err := gmail.NewClientForAccount(ctx, account)
			if err != nil {
				return fmt.Errorf("failed to create Gmail client for account %s: %w", account, err)
			}

			graphCfg := graphConfigFromEnv(tenantID, clientID, clientSecret)
			if graphCfg.TenantID == "" || graphCfg.ClientID == "" {
				return fmt.Errorf("no OneDrive credentials configured; set --ms-tenant-id, --ms-client-id and --ms-client-secret or the MAILHAUL_MS_* env vars")
			}
			graphClient := graph.New(graphCfg)

			var notifier pipeline.Notifier
			if cfg.Recipient != "" {
				notifier = notify.New(client, 0, log)
			}

			orchestrator := pipeline.New(
				pipeline.NewGmailSource(client),
				upload.New(graphClient, upload.Config{}, log),
				archive.New(log),
				notifier,
				pipeline.NewCredentialSource(account, graphClient.TokenSource()),
				log,
			)

			report, err := orchestrator.Run(ctx, cfg)
			if err != nil {
				return err
			}

			fmt.Println(report.Summary())
			if report.Status == pipeline.StatusFailed {
				return fmt.Errorf("pipeline run failed: %s", report.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use (default: 'default')")
	cmd.Flags().StringVar(&query, "query", "has:attachment", "Gmail search query")
	cmd.Flags().Int64Var(&maxResults, "max-results", 0, "Maximum number of messages to process (default: 10)")
	cmd.Flags().StringVar(&folder, "folder", "", "OneDrive folder uploads land in (default: 'Attachments')")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Recipient of the completion email. When omitted no email is sent.")
	cmd.Flags().StringVar(&zipName, "zip-name", "", "Name of the zip archive (default: 'attachments.zip')")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Upload worker pool size (default: 4)")
	cmd.Flags().StringVar(&tenantID, "ms-tenant-id", "", "Microsoft tenant ID. Can also use MAILHAUL_MS_TENANT_ID env var.")
	cmd.Flags().StringVar(&clientID, "ms-client-id", "", "Microsoft application client ID. Can also use MAILHAUL_MS_CLIENT_ID env var.")
	cmd.Flags().StringVar(&clientSecret, "ms-client-secret", "", "Microsoft application client secret. Can also use MAILHAUL_MS_CLIENT_SECRET env var.")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}
