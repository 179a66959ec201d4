package api

import (
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// requestIDHeader carries a per-request correlation ID. The backend echoes
// it in error responses.
const requestIDHeader = "X-Request-ID"

// authorize attaches the current access token as a bearer credential and
// returns the token it used, or "" when the request goes out
// unauthenticated (login and registration calls). It never blocks.
func authorize(req *http.Request, store SessionStore) string {
	tok := store.AccessToken()
	if tok == "" {
		return ""
	}

	(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}).SetAuthHeader(req)

	return tok
}

// stampRequest sets the headers every outgoing request carries.
func stampRequest(req *http.Request, userAgent string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	if req.Header.Get(requestIDHeader) == "" {
		req.Header.Set(requestIDHeader, uuid.NewString())
	}
}
