package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/quizdesk/quizctl/internal/session"
)

// Endpoint paths the pipeline treats specially.
const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	RefreshPath  = "/auth/refresh"
	LogoutPath   = "/auth/logout"
	MePath       = "/auth/me"
)

// SessionStore is the part of the session the client reads and writes.
// Defined at the consumer; session.MemoryStore and its persistent wrappers
// implement it.
type SessionStore interface {
	AccessToken() string
	RefreshToken() string
	SetAccessToken(token string)
	SetAuth(identity *session.Identity, tokens session.TokenPair)
	Logout()
}

// Response is the result of a call, real or synthesized.
type Response struct {
	Status int
	Header http.Header
	Data   json.RawMessage

	// Synthetic is true when degraded mode produced the response instead of
	// the backend. The data is plausible, not real.
	Synthetic bool
}

// Decode unmarshals the response data into v. Empty bodies leave v untouched.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("api: decoding response: %w", err)
	}

	return nil
}

// RequestOption customizes a single call.
type RequestOption func(*attempt)

// WithQuery adds query parameters to the request URL.
func WithQuery(q url.Values) RequestOption {
	return func(a *attempt) {
		if a.query == nil {
			a.query = url.Values{}
		}

		for k, vs := range q {
			for _, v := range vs {
				a.query.Add(k, v)
			}
		}
	}
}

// WithHeader sets an extra request header.
func WithHeader(key, value string) RequestOption {
	return func(a *attempt) {
		if a.header == nil {
			a.header = http.Header{}
		}

		a.header.Set(key, value)
	}
}

// attempt is one logical request. The body is buffered so the request can be
// replayed after a renewal; retried is set on that replay and never cleared,
// so a request is replayed at most once.
type attempt struct {
	method  string
	path    string
	query   url.Values
	header  http.Header
	body    []byte
	retried bool
}

func (a *attempt) synthRequest() SynthRequest {
	return SynthRequest{
		Method: a.method,
		Path:   a.path,
		Query:  a.query,
		Body:   a.body,
	}
}

// Credentials are posted to the login and register endpoints.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// AuthResult is returned by login and register.
type AuthResult struct {
	User   session.Identity  `json:"user"`
	Tokens session.TokenPair `json:"tokens"`
}

// RefreshResult is returned by the renewal endpoint. A nil User means the
// identity is unchanged and only the tokens rotated.
type RefreshResult struct {
	Tokens session.TokenPair `json:"tokens"`
	User   *session.Identity `json:"user,omitempty"`
}
