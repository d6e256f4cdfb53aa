// Package cmd implements the command-line interface for mailhaul.
//
// This package provides the following commands:
//   - run: Run the attachment pipeline once from the command line
//   - serve: Start the MCP server to provide the pipeline tools for AI assistants
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The serve command is the default command when no subcommand is specified.
package cmd
