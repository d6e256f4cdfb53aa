package pipeline

import (
	"context"
	"fmt"

	"github.com/mailhaul/mailhaul/internal/extract"
	"github.com/mailhaul/mailhaul/internal/gmail"
	"github.com/mailhaul/mailhaul/internal/google"
	"github.com/mailhaul/mailhaul/internal/graph"
)

// GmailSource adapts the Gmail client to the MailProvider interface.
type GmailSource struct {
	c *gmail.Client
}

// NewGmailSource wraps a Gmail client for use as the run's mail provider.
func NewGmailSource(c *gmail.Client) *GmailSource {
	return &GmailSource{c: c}
}

func (s *GmailSource) Search(ctx context.Context, query string, maxResults int64) ([]MessageRef, error) {
	summaries, err := s.c.SearchMessages(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	refs := make([]MessageRef, 0, len(summaries))
	for _, m := range summaries {
		refs = append(refs, MessageRef{
			ID:       m.ID,
			Subject:  m.Subject,
			From:     m.From,
			Received: m.Received,
		})
	}
	return refs, nil
}

func (s *GmailSource) FetchParts(ctx context.Context, messageID string) (*extract.Part, error) {
	return s.c.FetchParts(ctx, messageID)
}

func (s *GmailSource) FetchAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	return s.c.FetchAttachment(ctx, messageID, attachmentID)
}

// CredentialSource implements TokenProvider over the cached Google OAuth
// token for an account and a Graph token source.
type CredentialSource struct {
	account     string
	graphTokens graph.TokenSource
}

// NewCredentialSource builds a TokenProvider covering both identity
// providers a run depends on.
func NewCredentialSource(account string, graphTokens graph.TokenSource) *CredentialSource {
	return &CredentialSource{account: account, graphTokens: graphTokens}
}

func (s *CredentialSource) FetchValidToken(ctx context.Context, provider string) (string, error) {
	switch provider {
	case ProviderGoogle:
		ts, err := google.GetTokenSourceForAccount(ctx, s.account)
		if err != nil {
			return "", err
		}
		tok, err := ts.Token()
		if err != nil {
			return "", err
		}
		return tok.AccessToken, nil
	case ProviderMicrosoft:
		return s.graphTokens.Token(ctx)
	default:
		return "", fmt.Errorf("unknown token provider %q", provider)
	}
}

func (s *CredentialSource) InvalidateToken(provider string) {
	switch provider {
	case ProviderGoogle:
		// Best effort: the next fetch reports the missing token.
		_ = google.InvalidateTokenForAccount(s.account)
	case ProviderMicrosoft:
		s.graphTokens.Invalidate()
	}
}
