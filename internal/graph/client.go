package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// defaultBaseURL is the Graph API root for the signed-in user's drive.
	defaultBaseURL = "https://graph.microsoft.com/v1.0"

	// ChunkGranularity is the byte alignment Graph requires for
	// intermediate upload-session chunks (320 KiB).
	ChunkGranularity = 320 * 1024

	// SingleShotLimit is the Graph-documented ceiling for simple PUT
	// uploads; larger files must use an upload session.
	SingleShotLimit = 4 * 1024 * 1024
)

// Client is a OneDrive client for storing files via the Microsoft Graph API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// Config holds the settings for creating a Client.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// New creates a Client using client-credentials authentication.
func New(cfg Config) *Client {
	httpClient := &http.Client{Timeout: 90 * time.Second}
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		tokens:     NewClientCredentialsSource(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, httpClient),
	}
}

// NewWithTokenSource creates a Client with a caller-supplied token source.
func NewWithTokenSource(tokens TokenSource) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		tokens:     tokens,
	}
}

// TokenSource returns the token source the client authenticates with.
func (c *Client) TokenSource() TokenSource {
	return c.tokens
}

// newWithOverrides creates a Client with custom base URL and HTTP client,
// used for testing.
func newWithOverrides(baseURL string, tokens TokenSource, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
	}
}

// ChunkStatus reports the service's view of an upload session after a chunk
// PUT or a status query. The service's NextOffset is authoritative: callers
// must resume from it even when it disagrees with their own accounting.
type ChunkStatus struct {
	// NextOffset is the byte offset the service expects next.
	NextOffset int64

	// Completed is true once the final chunk was accepted.
	Completed bool

	// RemoteID is the created item's ID, set only when Completed.
	RemoteID string
}

// PutSmall uploads content in a single PUT to the item content endpoint.
// remotePath is drive-root relative, e.g. "Reports/2026/scan.pdf".
func (c *Client) PutSmall(ctx context.Context, remotePath string, data []byte) (string, error) {
	u := fmt.Sprintf("%s/me/drive/root:/%s:/content", c.baseURL, escapePath(remotePath))

	resp, err := c.doAuthorized(ctx, http.MethodPut, u, "application/octet-stream", data)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", readAPIError(resp)
	}

	var item driveItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	return item.ID, nil
}

// OpenSession creates an upload session for remotePath and returns the
// session-scoped upload URL.
func (c *Client) OpenSession(ctx context.Context, remotePath string, totalSize int64) (string, error) {
	u := fmt.Sprintf("%s/me/drive/root:/%s:/createUploadSession", c.baseURL, escapePath(remotePath))

	body, err := json.Marshal(createSessionRequest{
		Item: sessionItem{ConflictBehavior: "rename"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal session request: %w", err)
	}

	resp, err := c.doAuthorized(ctx, http.MethodPost, u, "application/json", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", readAPIError(resp)
	}

	var session uploadSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("failed to parse session response: %w", err)
	}
	if session.UploadURL == "" {
		return "", fmt.Errorf("session response missing uploadUrl")
	}
	return session.UploadURL, nil
}

// PutChunk uploads one chunk of an active session. offset is the position of
// the chunk's first byte; totalSize is the full file size. Upload URLs are
// pre-authenticated, so no Authorization header is sent.
func (c *Client) PutChunk(ctx context.Context, uploadURL string, offset, totalSize int64, chunk []byte) (*ChunkStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(chunk))
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk request: %w", err)
	}
	end := offset + int64(len(chunk)) - 1
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end, totalSize))
	req.ContentLength = int64(len(chunk))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chunk request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		var session uploadSession
		if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
			return nil, fmt.Errorf("failed to parse chunk acknowledgment: %w", err)
		}
		next, err := parseNextExpectedRange(session.NextExpectedRanges)
		if err != nil {
			return nil, err
		}
		return &ChunkStatus{NextOffset: next}, nil

	case http.StatusOK, http.StatusCreated:
		var item driveItem
		if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
			return nil, fmt.Errorf("failed to parse completed item: %w", err)
		}
		return &ChunkStatus{NextOffset: totalSize, Completed: true, RemoteID: item.ID}, nil

	default:
		return nil, readAPIError(resp)
	}
}

// SessionStatus queries an active session for the offset the service expects
// next. Used after retry exhaustion, since the session may have advanced
// past what the client last saw acknowledged.
func (c *Client) SessionStatus(ctx context.Context, uploadURL string) (*ChunkStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uploadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var session uploadSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to parse session status: %w", err)
	}
	if len(session.NextExpectedRanges) == 0 {
		// Nothing outstanding: the session has received every byte.
		return &ChunkStatus{Completed: true}, nil
	}
	next, err := parseNextExpectedRange(session.NextExpectedRanges)
	if err != nil {
		return nil, err
	}
	return &ChunkStatus{NextOffset: next}, nil
}

// CancelSession aborts an upload session, releasing any partial content.
func (c *Client) CancelSession(ctx context.Context, uploadURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, uploadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create cancel request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cancel request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return nil
}

// doAuthorized performs an authorized request against the Graph API. A 401
// response invalidates the cached token and the request is retried once with
// a fresh one.
func (c *Client) doAuthorized(ctx context.Context, method, url, contentType string, body []byte) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get access token: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			c.tokens.Invalidate()
			continue
		}
		return resp, nil
	}
}

// readAPIError drains a non-success response into an APIError.
func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return newAPIError(resp.StatusCode, envelope.Error.Message, resp.Header.Get("Retry-After"))
	}
	return newAPIError(resp.StatusCode, string(body), resp.Header.Get("Retry-After"))
}

// parseNextExpectedRange extracts the start offset of the first range the
// service still expects, e.g. "12582912-26083327" or "12582912-".
func parseNextExpectedRange(ranges []string) (int64, error) {
	if len(ranges) == 0 {
		return 0, fmt.Errorf("session acknowledgment missing nextExpectedRanges")
	}
	first := ranges[0]
	dash := strings.IndexByte(first, '-')
	if dash > 0 {
		first = first[:dash]
	}
	offset, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed expected range %q: %w", ranges[0], err)
	}
	return offset, nil
}

// escapePath URL-escapes each segment of a drive-root-relative path while
// keeping the separators.
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
