package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraphConfigFromEnv(t *testing.T) {
	t.Setenv("MAILHAUL_MS_TENANT_ID", "env-tenant")
	t.Setenv("MAILHAUL_MS_CLIENT_ID", "env-client")
	t.Setenv("MAILHAUL_MS_CLIENT_SECRET", "env-secret")

	t.Run("flags take precedence over env vars", func(t *testing.T) {
		cfg := graphConfigFromEnv("flag-tenant", "flag-client", "flag-secret")
		assert.Equal(t, "flag-tenant", cfg.TenantID)
		assert.Equal(t, "flag-client", cfg.ClientID)
		assert.Equal(t, "flag-secret", cfg.ClientSecret)
	})

	t.Run("env vars fill in missing flags", func(t *testing.T) {
		cfg := graphConfigFromEnv("", "", "")
		assert.Equal(t, "env-tenant", cfg.TenantID)
		assert.Equal(t, "env-client", cfg.ClientID)
		assert.Equal(t, "env-secret", cfg.ClientSecret)
	})

	t.Run("mixed flags and env vars", func(t *testing.T) {
		cfg := graphConfigFromEnv("flag-tenant", "", "")
		assert.Equal(t, "flag-tenant", cfg.TenantID)
		assert.Equal(t, "env-client", cfg.ClientID)
		assert.Equal(t, "env-secret", cfg.ClientSecret)
	})
}

func TestGetCategoryFromToolName(t *testing.T) {
	tests := []struct {
		name     string
		toolName string
		expected string
	}{
		{
			name:     "search tool maps to pipeline",
			toolName: "search_and_download_attachments",
			expected: "Pipeline Tools",
		},
		{
			name:     "upload tool maps to pipeline",
			toolName: "upload_to_onedrive",
			expected: "Pipeline Tools",
		},
		{
			name:     "compress tool maps to pipeline",
			toolName: "compress_files",
			expected: "Pipeline Tools",
		},
		{
			name:     "send tool maps to pipeline",
			toolName: "send_zip_via_email",
			expected: "Pipeline Tools",
		},
		{
			name:     "orchestrate tool maps to pipeline",
			toolName: "orchestrate_full_pipeline",
			expected: "Pipeline Tools",
		},
		{
			name:     "google auth tools",
			toolName: "google_get_auth_url",
			expected: "Google Auth Tools",
		},
		{
			name:     "unknown prefix",
			toolName: "mystery_tool",
			expected: "Other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, getCategoryFromToolName(tt.toolName))
		})
	}
}
