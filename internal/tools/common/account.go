package common

import (
	"context"
)

// GetAccountFromArgs extracts the account name from request arguments.
// Tools accept an optional "account" argument so multiple Google
// accounts can be used side by side; when absent the shared default
// token is used.
//
// Priority order:
//  1. Explicit "account" argument in request
//  2. "default"
func GetAccountFromArgs(_ context.Context, args map[string]interface{}) string {
	if accountVal, ok := args["account"].(string); ok && accountVal != "" {
		return accountVal
	}
	return "default"
}
