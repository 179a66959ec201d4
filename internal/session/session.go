// Package session implements the Session Store: the current identity, its
// token pair, and the session lifecycle. The API client reads the access
// token from a Store and writes renewed tokens back; it never persists them
// itself. Three backends are provided: in-memory, file (the CLI default), and
// Redis (shared between processes).
package session

import (
	"sync"
)

// TokenPair is the credential pair issued by the backend.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Identity is the authenticated user as reported by the backend.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// State is the session lifecycle:
// anonymous -> authenticated -> expired -> authenticated | logged-out.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateExpired
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	case StateLoggedOut:
		return "logged-out"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of a session.
type Snapshot struct {
	State    State
	Identity *Identity
	Tokens   TokenPair
}

// MemoryStore holds a session in process memory. It is the building block of
// the persistent stores, which wrap it and write through on every change.
type MemoryStore struct {
	mu       sync.RWMutex
	state    State
	identity *Identity
	tokens   TokenPair

	// onChange is invoked outside the lock after every mutation.
	onChange func(Snapshot)
}

// NewMemoryStore returns an anonymous session.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AccessToken returns the current access token, or "" when there is none.
func (m *MemoryStore) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.tokens.AccessToken
}

// RefreshToken returns the current refresh token, or "".
func (m *MemoryStore) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.tokens.RefreshToken
}

// Identity returns a copy of the signed-in identity.
func (m *MemoryStore) Identity() (Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.identity == nil {
		return Identity{}, false
	}

	return *m.identity, true
}

// State returns the lifecycle state.
func (m *MemoryStore) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// Snapshot returns a consistent copy of the whole session.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshotLocked()
}

// SetAccessToken replaces only the access token. The refresh token and
// identity are kept.
func (m *MemoryStore) SetAccessToken(token string) {
	m.update(func() {
		m.tokens.AccessToken = token
		m.state = StateAuthenticated
	})
}

// SetAuth installs a new token pair. A nil identity keeps the current one,
// which is how a renewal that only rotates tokens is recorded. An empty
// refresh token keeps the current refresh token.
func (m *MemoryStore) SetAuth(identity *Identity, tokens TokenPair) {
	m.update(func() {
		if identity != nil {
			id := *identity
			m.identity = &id
		}

		refresh := tokens.RefreshToken
		if refresh == "" {
			refresh = m.tokens.RefreshToken
		}

		m.tokens = TokenPair{AccessToken: tokens.AccessToken, RefreshToken: refresh}
		m.state = StateAuthenticated
	})
}

// MarkExpired records that the access token was rejected and a renewal is
// under way. It is a no-op unless the session is authenticated.
func (m *MemoryStore) MarkExpired() {
	m.update(func() {
		if m.state == StateAuthenticated {
			m.state = StateExpired
		}
	})
}

// Logout tears the session down.
func (m *MemoryStore) Logout() {
	m.update(func() {
		m.identity = nil
		m.tokens = TokenPair{}
		m.state = StateLoggedOut
	})
}

// restore replaces the whole session without firing onChange. Used by the
// persistent stores when loading state written elsewhere.
func (m *MemoryStore) restore(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = s.State
	m.tokens = s.Tokens
	m.identity = nil

	if s.Identity != nil {
		id := *s.Identity
		m.identity = &id
	}
}

func (m *MemoryStore) update(fn func()) {
	m.mu.Lock()
	fn()
	snap := m.snapshotLocked()
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
}

func (m *MemoryStore) snapshotLocked() Snapshot {
	snap := Snapshot{State: m.state, Tokens: m.tokens}
	if m.identity != nil {
		id := *m.identity
		snap.Identity = &id
	}

	return snap
}

// identityToMap flattens an identity for storage formats that keep string maps.
func identityToMap(id *Identity) map[string]string {
	if id == nil {
		return nil
	}

	return map[string]string{
		"id":    id.ID,
		"email": id.Email,
		"name":  id.Name,
		"role":  id.Role,
	}
}

func identityFromMap(m map[string]string) *Identity {
	if len(m) == 0 {
		return nil
	}

	return &Identity{
		ID:    m["id"],
		Email: m["email"],
		Name:  m["name"],
		Role:  m["role"],
	}
}
