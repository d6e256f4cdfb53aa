// Package graph implements a OneDrive file store client on the Microsoft
// Graph API.
//
// Small files are written with a single PUT to the item content endpoint.
// Large files go through Graph upload sessions: createUploadSession returns a
// session-scoped URL, chunks are PUT with Content-Range headers, and the
// service acknowledges progress through nextExpectedRanges. Intermediate
// chunks must be sized in multiples of 320 KiB per the Graph documentation.
//
// Authentication uses OAuth2 client credentials against the Microsoft
// identity platform, with a cached access token refreshed before expiry.
package graph
