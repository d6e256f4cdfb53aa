// Package google provides OAuth2 authentication and token management for
// Google APIs.
//
// Tokens are cached per account under the user's config directory. The
// authorization code flow is driven through the google_get_auth_url and
// google_save_auth_code MCP tools, after which every Gmail backed operation
// loads and refreshes the cached token transparently.
package google
