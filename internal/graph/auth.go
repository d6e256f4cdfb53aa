package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenExpiryBuffer is the time before actual expiry when we consider a token
// expired. This prevents using a token that is about to expire mid-request.
const tokenExpiryBuffer = 5 * time.Minute

// TokenSource supplies bearer tokens for Graph requests. Invalidate discards
// any cached token so the next Token call acquires a fresh one; the client
// calls it after a 401 before retrying once.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// clientCredentialsSource acquires tokens from the Microsoft identity
// platform using the OAuth2 client credentials grant, with thread-safe
// caching and refresh before expiration.
type clientCredentialsSource struct {
	mu           sync.Mutex
	accessToken  string
	expiresAt    time.Time
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	httpClient   *http.Client
}

// NewClientCredentialsSource creates a TokenSource for an app registration in
// the given tenant.
func NewClientCredentialsSource(tenantID, clientID, clientSecret string, httpClient *http.Client) TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &clientCredentialsSource{
		tokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        "https://graph.microsoft.com/.default",
		httpClient:   httpClient,
	}
}

// Token returns a valid access token, refreshing it if necessary.
// This method is safe for concurrent use.
func (s *clientCredentialsSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	return s.refresh(ctx)
}

// Invalidate discards the cached token. Used when a 401 response indicates
// the token is no longer accepted.
func (s *clientCredentialsSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessToken = ""
	s.expiresAt = time.Time{}
}

// refresh acquires a new token from the OAuth2 token endpoint.
// The caller must hold s.mu.
func (s *clientCredentialsSource) refresh(ctx context.Context) (string, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
		"scope":         {s.scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	s.accessToken = tr.AccessToken
	s.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpiryBuffer)

	return s.accessToken, nil
}

// StaticTokenSource returns a TokenSource that always yields the given token.
// Useful for delegated-auth setups where a token broker manages refresh, and
// for tests.
func StaticTokenSource(token string) TokenSource {
	return staticSource(token)
}

type staticSource string

func (s staticSource) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no access token configured")
	}
	return string(s), nil
}

func (s staticSource) Invalidate() {}
