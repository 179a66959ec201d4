package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizdesk/quizctl/internal/tokenfile"
)

// fakeBackend is a minimal quiz API: login issues "at-1", /auth/me answers
// for a valid bearer token, and logout counts calls.
type fakeBackend struct {
	logouts atomic.Int32
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/auth/login", "/auth/register":
		var creds struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&creds)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":   map[string]string{"id": "u-42", "email": creds.Email, "name": creds.Name},
			"tokens": map[string]string{"accessToken": "at-1", "refreshToken": "rt-1"},
		})
	case "/auth/me":
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		_, _ = w.Write([]byte(`{"user":{"id":"u-42","email":"alice@example.com","name":"Alice","role":"student"}}`))
	case "/auth/logout":
		b.logouts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	isolateEnv(t)

	backend := &fakeBackend{}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	cfgPath, tokenPath := testConfig(t, srv.URL, "")

	_, stderr, err := runCLI(t, "--config", cfgPath, "login", "--email", "alice@example.com", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Signed in as alice@example.com.")

	tf, err := tokenfile.Load(tokenPath)
	require.NoError(t, err)
	require.NotNil(t, tf)
	assert.Equal(t, "at-1", tf.Token.AccessToken)
	assert.Equal(t, "rt-1", tf.Token.RefreshToken)
	assert.Equal(t, "u-42", tf.Identity["id"])

	stdout, _, err := runCLI(t, "--config", cfgPath, "--json", "whoami")
	require.NoError(t, err)

	var me identityOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &me))
	assert.Equal(t, "u-42", me.ID)
	assert.Equal(t, "student", me.Role)
	assert.False(t, me.Placeholder)

	stdout, _, err = runCLI(t, "--config", cfgPath, "whoami")
	require.NoError(t, err)
	assert.Contains(t, stdout, "User:  Alice (alice@example.com)")

	_, stderr, err = runCLI(t, "--config", cfgPath, "logout")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Logged out.")
	assert.Equal(t, int32(1), backend.logouts.Load())

	_, err = os.Stat(tokenPath)
	assert.True(t, os.IsNotExist(err))

	_, stderr, err = runCLI(t, "--config", cfgPath, "logout")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Not logged in.")
}

func TestWhoami_NotLoggedIn(t *testing.T) {
	isolateEnv(t)

	cfgPath, _ := testConfig(t, "http://127.0.0.1:1", "")

	_, _, err := runCLI(t, "--config", cfgPath, "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestLogin_RequiresEmail(t *testing.T) {
	isolateEnv(t)

	cfgPath, _ := testConfig(t, "http://127.0.0.1:1", "")

	_, _, err := runCLI(t, "--config", cfgPath, "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}

func TestRegister_SendsName(t *testing.T) {
	isolateEnv(t)

	srv := httptest.NewServer(&fakeBackend{})
	defer srv.Close()

	cfgPath, _ := testConfig(t, srv.URL, "")

	stdout, _, err := runCLI(t, "--config", cfgPath, "--json", "register",
		"--email", "bob@example.com", "--password", "pw", "--name", "Bob")
	require.NoError(t, err)

	var out identityOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "Bob", out.Name)
	assert.Equal(t, "bob@example.com", out.Email)
}

// With degraded mode on and the backend down, login yields a stable
// placeholder identity and the offline warning is shown once.
func TestLogin_DegradedBackendDown(t *testing.T) {
	isolateEnv(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	cfgPath, tokenPath := testConfig(t, baseURL, "[degraded]\nenabled = true\n")

	stdout, stderr, err := runCLI(t, "--config", cfgPath, "--json", "login", "--email", "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(stderr, offlineMessage))

	var first identityOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &first))
	assert.True(t, first.Placeholder)
	assert.Equal(t, "alice@example.com", first.Email)
	assert.NotEmpty(t, first.ID)

	tf, err := tokenfile.Load(tokenPath)
	require.NoError(t, err)
	require.NotNil(t, tf)
	assert.NotEmpty(t, tf.Token.AccessToken)

	stdout, _, err = runCLI(t, "--config", cfgPath, "--json", "login", "--email", "alice@example.com")
	require.NoError(t, err)

	var second identityOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &second))
	assert.Equal(t, first.ID, second.ID)
}

func TestLogin_BackendDownWithoutDegradedFails(t *testing.T) {
	isolateEnv(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	cfgPath, _ := testConfig(t, baseURL, "")

	_, stderr, err := runCLI(t, "--config", cfgPath, "login", "--email", "alice@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network unreachable")
	assert.Contains(t, stderr, offlineMessage)
}
