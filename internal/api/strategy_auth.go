package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/quizdesk/quizctl/internal/session"
)

// Placeholder identity values used while auth is degraded.
const (
	offlineEmail  = "offline@localhost"
	offlineRole   = "user"
	offlineIssuer = "quizctl-offline"
)

// IdentitySource exposes the signed-in identity, if any.
type IdentitySource interface {
	Identity() (session.Identity, bool)
}

// AuthMockStrategy answers auth endpoints while the auth family is degraded.
// Login and register always yield a usable placeholder identity and token
// pair, derived deterministically from the submitted email.
type AuthMockStrategy struct {
	current IdentitySource
	table   routeTable
}

// NewAuthMockStrategy returns the auth strategy. current, when non-nil,
// supplies the identity reported by refresh and me.
func NewAuthMockStrategy(current IdentitySource) *AuthMockStrategy {
	s := &AuthMockStrategy{current: current}

	s.table = routeTable{
		{method: http.MethodPost, path: LoginPath, exact: true, build: s.signIn},
		{method: http.MethodPost, path: RegisterPath, exact: true, build: s.signIn},
		{method: http.MethodPost, path: RefreshPath, exact: true, build: s.refresh},
		{method: http.MethodGet, path: MePath, exact: true, build: s.me},
		{method: http.MethodPost, path: LogoutPath, exact: true, build: success},
	}

	return s
}

// Synthesize implements Strategy.
func (s *AuthMockStrategy) Synthesize(req SynthRequest) *Response {
	return s.table.synthesize(req)
}

func (s *AuthMockStrategy) signIn(req SynthRequest) any {
	var creds Credentials
	_ = json.Unmarshal(req.Body, &creds)

	id := placeholderIdentity(creds.Email, creds.Name)

	return AuthResult{User: id, Tokens: placeholderTokens(id)}
}

func (s *AuthMockStrategy) refresh(_ SynthRequest) any {
	id := s.identity()

	return RefreshResult{Tokens: placeholderTokens(id), User: &id}
}

func (s *AuthMockStrategy) me(_ SynthRequest) any {
	return map[string]any{"user": s.identity()}
}

func (s *AuthMockStrategy) identity() session.Identity {
	if s.current != nil {
		if id, ok := s.current.Identity(); ok {
			return id
		}
	}

	return placeholderIdentity("", "")
}

// placeholderIdentity derives a stable identity from an email address. The
// same address in any Unicode normalization form maps to the same ID.
func placeholderIdentity(email, name string) session.Identity {
	email = strings.ToLower(strings.TrimSpace(norm.NFC.String(email)))
	if email == "" {
		email = offlineEmail
	}

	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	return session.Identity{
		ID:    uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String(),
		Email: email,
		Name:  norm.NFC.String(name),
		Role:  offlineRole,
	}
}

// placeholderTokens returns unsigned JWTs carrying the placeholder identity.
// They have no iat or exp, so the same identity always yields the same pair.
func placeholderTokens(id session.Identity) session.TokenPair {
	return session.TokenPair{
		AccessToken:  unsignedToken(id.ID, "access"),
		RefreshToken: unsignedToken(id.ID, "refresh"),
	}
}

func unsignedToken(subject, use string) string {
	claims := jwt.RegisteredClaims{
		Issuer:   offlineIssuer,
		Subject:  subject,
		Audience: jwt.ClaimStrings{use},
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		return "offline-" + use + "-" + subject
	}

	return tok
}

func success(_ SynthRequest) any {
	return map[string]any{"success": true}
}
