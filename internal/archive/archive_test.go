package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringEntry(name, content string) Entry {
	return Entry{
		Name: name,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func failingEntry(name string) Entry {
	return Entry{
		Name: name,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return nil, fmt.Errorf("source unavailable")
		},
	}
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	got := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		got[f.Name] = string(content)
	}
	return got
}

func TestBuild_MultipleEntries(t *testing.T) {
	var buf bytes.Buffer
	summary, err := New(nil).Build(context.Background(), []Entry{
		stringEntry("a.txt", "alpha"),
		stringEntry("b.txt", "beta"),
		stringEntry("c.bin", "gamma"),
	}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Written)
	assert.Empty(t, summary.Skipped)

	got := readArchive(t, buf.Bytes())
	assert.Equal(t, map[string]string{
		"a.txt": "alpha",
		"b.txt": "beta",
		"c.bin": "gamma",
	}, got)
}

func TestBuild_DuplicateNames(t *testing.T) {
	var buf bytes.Buffer
	summary, err := New(nil).Build(context.Background(), []Entry{
		stringEntry("scan.pdf", "one"),
		stringEntry("scan.pdf", "two"),
		stringEntry("scan.pdf", "three"),
	}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Written)

	got := readArchive(t, buf.Bytes())
	assert.Equal(t, map[string]string{
		"scan.pdf":   "one",
		"scan_1.pdf": "two",
		"scan_2.pdf": "three",
	}, got)
}

func TestBuild_FailedSourceSkipped(t *testing.T) {
	var buf bytes.Buffer
	summary, err := New(nil).Build(context.Background(), []Entry{
		stringEntry("ok1.txt", "fine"),
		failingEntry("broken.bin"),
		stringEntry("ok2.txt", "also fine"),
	}, &buf)
	require.NoError(t, err, "one failed source must not abort the archive")
	assert.Equal(t, 2, summary.Written)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "broken.bin", summary.Skipped[0].Name)

	got := readArchive(t, buf.Bytes())
	assert.Len(t, got, 2)
	assert.Contains(t, got, "ok1.txt")
	assert.Contains(t, got, "ok2.txt")
}

func TestBuild_FailedReadSkipped(t *testing.T) {
	var buf bytes.Buffer
	brokenRead := Entry{
		Name: "torn.bin",
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(io.MultiReader(
				strings.NewReader("partial"),
				errReader{},
			)), nil
		},
	}

	summary, err := New(nil).Build(context.Background(), []Entry{
		brokenRead,
		stringEntry("ok.txt", "fine"),
	}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Written)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "torn.bin", summary.Skipped[0].Name)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("read failed mid-stream")
}

func TestBuild_Empty(t *testing.T) {
	var buf bytes.Buffer
	summary, err := New(nil).Build(context.Background(), nil, &buf)
	require.NoError(t, err)
	assert.Zero(t, summary.Written)

	got := readArchive(t, buf.Bytes())
	assert.Empty(t, got)
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := New(nil).Build(ctx, []Entry{stringEntry("a.txt", "x")}, &buf)
	assert.ErrorIs(t, err, context.Canceled)
}
