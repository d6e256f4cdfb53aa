package pipeline_tools

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mailhaul/mailhaul/internal/graph"
	"github.com/mailhaul/mailhaul/internal/server"
)

func newTestServerContext(t *testing.T) *server.ServerContext {
	t.Helper()
	sc, err := server.NewServerContext(context.Background(), graph.Config{})
	if err != nil {
		t.Fatalf("Failed to create server context: %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func newRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("expected result with content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestGetAccountFromArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		expected string
	}{
		{
			name:     "no account returns default",
			args:     map[string]interface{}{},
			expected: "default",
		},
		{
			name:     "explicit account",
			args:     map[string]interface{}{"account": "work"},
			expected: "work",
		},
		{
			name:     "empty account returns default",
			args:     map[string]interface{}{"account": ""},
			expected: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getAccountFromArgs(tt.args); got != tt.expected {
				t.Errorf("getAccountFromArgs() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{name: "bytes", bytes: 512, want: "512 bytes"},
		{name: "kilobytes", bytes: 1536, want: "1.50 KB"},
		{name: "megabytes", bytes: 5242880, want: "5.00 MB"},
		{name: "gigabytes", bytes: 2147483648, want: "2.00 GB"},
		{name: "zero bytes", bytes: 0, want: "0 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatSize(tt.bytes); got != tt.want {
				t.Errorf("formatSize(%d) = %v, want %v", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()

	first := uniquePath(dir, "report.pdf")
	if first != filepath.Join(dir, "report.pdf") {
		t.Errorf("uniquePath() = %v, expected plain name for empty dir", first)
	}

	if err := os.WriteFile(first, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	second := uniquePath(dir, "report.pdf")
	if second != filepath.Join(dir, "report_1.pdf") {
		t.Errorf("uniquePath() = %v, expected report_1.pdf", second)
	}

	if err := os.WriteFile(second, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	third := uniquePath(dir, "report.pdf")
	if third != filepath.Join(dir, "report_2.pdf") {
		t.Errorf("uniquePath() = %v, expected report_2.pdf", third)
	}
}

func TestHandleSearchAndDownloadValidation(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "missing query",
			args: map[string]interface{}{},
			want: "query is required",
		},
		{
			name: "blank query",
			args: map[string]interface{}{"query": "   "},
			want: "query is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := newRequest("search_and_download_attachments", tt.args)
			result, err := handleSearchAndDownload(ctx, request, sc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Error("expected error result")
			}
			if got := resultText(t, result); got != tt.want {
				t.Errorf("result = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleUploadToOneDriveValidation(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "missing localPaths",
			args: map[string]interface{}{"remoteFolder": "Docs"},
			want: "localPaths is required",
		},
		{
			name: "missing remoteFolder",
			args: map[string]interface{}{"localPaths": "/tmp/a.txt"},
			want: "remoteFolder is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := newRequest("upload_to_onedrive", tt.args)
			result, err := handleUploadToOneDrive(ctx, request, sc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Error("expected error result")
			}
			if got := resultText(t, result); !strings.Contains(got, tt.want) {
				t.Errorf("result = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestHandleUploadToOneDriveNotConfigured(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	request := newRequest("upload_to_onedrive", map[string]interface{}{
		"localPaths":   "/tmp/does-not-matter.txt",
		"remoteFolder": "Docs",
	})

	result, err := handleUploadToOneDrive(ctx, request, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result when no store credentials are configured")
	}
	if got := resultText(t, result); !strings.Contains(got, "OneDrive is not configured") {
		t.Errorf("result = %q, want configuration error", got)
	}
}

func TestHandleCompressFiles(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)
	dir := t.TempDir()

	fileA := filepath.Join(dir, "a.txt")
	fileB := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(fileA, []byte("alpha"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(fileB, []byte("bravo"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	outputZip := filepath.Join(dir, "out.zip")
	request := newRequest("compress_files", map[string]interface{}{
		"localPaths": []interface{}{fileA, fileB},
		"outputZip":  outputZip,
	})

	result, err := handleCompressFiles(ctx, request, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}

	zr, err := zip.OpenReader(outputZip)
	if err != nil {
		t.Fatalf("failed to open produced zip: %v", err)
	}
	defer func() { _ = zr.Close() }()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if len(names) != 2 || names[0] != "a.txt" || names[1] != "b.txt" {
		t.Errorf("zip entries = %v, want [a.txt b.txt]", names)
	}
}

func TestHandleCompressFilesSkipsMissing(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)
	dir := t.TempDir()

	fileA := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(fileA, []byte("alpha"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	outputZip := filepath.Join(dir, "out.zip")
	request := newRequest("compress_files", map[string]interface{}{
		"localPaths": []interface{}{fileA, filepath.Join(dir, "missing.txt")},
		"outputZip":  outputZip,
	})

	result, err := handleCompressFiles(ctx, request, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.Contains(text, "1 entr(ies)") || !strings.Contains(text, "1 skipped") {
		t.Errorf("result = %q, want 1 written and 1 skipped", text)
	}
}

func TestHandleCompressFilesValidation(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	request := newRequest("compress_files", map[string]interface{}{
		"localPaths": "/tmp/a.txt",
	})

	result, err := handleCompressFiles(ctx, request, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for missing outputZip")
	}
}

func TestHandleSendZipViaEmailValidation(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "missing to",
			args: map[string]interface{}{"subject": "s", "body": "b", "zipPath": "/tmp/x.zip"},
			want: "to is required",
		},
		{
			name: "missing subject",
			args: map[string]interface{}{"to": "a@b.c", "body": "b", "zipPath": "/tmp/x.zip"},
			want: "subject is required",
		},
		{
			name: "missing body",
			args: map[string]interface{}{"to": "a@b.c", "subject": "s", "zipPath": "/tmp/x.zip"},
			want: "body is required",
		},
		{
			name: "missing zipPath",
			args: map[string]interface{}{"to": "a@b.c", "subject": "s", "body": "b"},
			want: "zipPath is required",
		},
		{
			name: "zip file not found",
			args: map[string]interface{}{"to": "a@b.c", "subject": "s", "body": "b", "zipPath": "/nonexistent/x.zip"},
			want: "Failed to read zip file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := newRequest("send_zip_via_email", tt.args)
			result, err := handleSendZipViaEmail(ctx, request, sc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Error("expected error result")
			}
			if got := resultText(t, result); !strings.Contains(got, tt.want) {
				t.Errorf("result = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestHandleOrchestrateFullPipelineValidation(t *testing.T) {
	ctx := context.Background()
	sc := newTestServerContext(t)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "missing query",
			args: map[string]interface{}{},
			want: "query is required",
		},
		{
			name: "invalid recipient",
			args: map[string]interface{}{"query": "has:attachment", "recipientEmail": "not-an-address"},
			want: "recipient",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := newRequest("orchestrate_full_pipeline", tt.args)
			result, err := handleOrchestrateFullPipeline(ctx, request, sc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Error("expected error result")
			}
			if got := resultText(t, result); !strings.Contains(got, tt.want) {
				t.Errorf("result = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}
