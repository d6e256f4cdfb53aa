package graph

// driveItem is the subset of the Graph driveItem resource this client reads.
type driveItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	WebURL string `json:"webUrl"`
}

// uploadSession is the response of createUploadSession and of session status
// queries. NextExpectedRanges is the service's authoritative statement of
// what it still needs, e.g. ["12582912-26083328"].
type uploadSession struct {
	UploadURL          string   `json:"uploadUrl"`
	ExpirationDateTime string   `json:"expirationDateTime"`
	NextExpectedRanges []string `json:"nextExpectedRanges"`
}

// createSessionRequest is the body of a createUploadSession call.
type createSessionRequest struct {
	Item sessionItem `json:"item"`
}

type sessionItem struct {
	ConflictBehavior string `json:"@microsoft.graph.conflictBehavior"`
	Name             string `json:"name,omitempty"`
}

// tokenResponse is the OAuth2 token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// errorResponse is the Graph API error envelope.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
