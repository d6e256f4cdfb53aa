// Package server provides the MCP server context, health endpoints and the
// metrics HTTP server for the mailhaul application.
//
// # Key Components
//
// ServerContext manages the Gmail and OneDrive clients with lazy
// initialization and caching. Gmail clients are cached per account so that
// multiple Google accounts can be used side by side; the OneDrive client is
// shared and created from the application credentials on first use. The
// context also carries the optional metrics recorder and audit logger that
// tool handlers pick up.
//
// HealthChecker serves liveness and readiness endpoints for Kubernetes
// probes, reporting not-ready during startup and shutting-down once the
// server context has been shut down.
//
// MetricsServer exposes the Prometheus scrape endpoint on its own listener
// so that operational traffic stays off the MCP port.
package server
