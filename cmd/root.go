package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailhaul application
var rootCmd = &cobra.Command{
	Use:   "mailhaul",
	Short: "Moves Gmail attachments to OneDrive and reports by email",
	Long: `mailhaul searches a Gmail mailbox for messages with attachments, uploads
the attachments to OneDrive, compresses them into a zip archive and sends
the archive to a recipient by email.

It can run as:
  - A one-shot pipeline run (run)
  - An MCP (Model Context Protocol) server for AI assistants (serve)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailhaul version %s\n" .Version}}`)

	// If no subcommand is provided, start the MCP server by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
