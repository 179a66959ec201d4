package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/quizdesk/quizctl/internal/tokenfile"
)

func TestFileStore_MissingFileIsAnonymous(t *testing.T) {
	fs, err := OpenFileStore(filepath.Join(t.TempDir(), "session.json"), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, fs.State())
}

func TestFileStore_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	fs, err := OpenFileStore(path, slog.Default())
	require.NoError(t, err)

	fs.SetAuth(&Identity{ID: "u1", Email: "a@example.com", Name: "Alice"}, TokenPair{AccessToken: "at", RefreshToken: "rt"})

	reopened, err := OpenFileStore(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, reopened.State())
	assert.Equal(t, "at", reopened.AccessToken())
	assert.Equal(t, "rt", reopened.RefreshToken())

	id, ok := reopened.Identity()
	require.True(t, ok)
	assert.Equal(t, "Alice", id.Name)
}

func TestFileStore_LogoutRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	fs, err := OpenFileStore(path, slog.Default())
	require.NoError(t, err)

	fs.SetAuth(&Identity{ID: "u1"}, TokenPair{AccessToken: "at"})
	_, err = os.Stat(path)
	require.NoError(t, err)

	fs.Logout()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{corrupt"), 0o600))

	_, err := OpenFileStore(path, slog.Default())
	assert.Error(t, err)
}

func TestFileStore_WatchSeesExternalLogout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, tokenfile.Save(path, &oauth2.Token{AccessToken: "at"}, nil))

	fs, err := OpenFileStore(path, slog.Default())
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, fs.State())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- fs.Watch(ctx) }()

	// Give the watcher time to register before mutating the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, tokenfile.Remove(path))

	require.Eventually(t, func() bool {
		return fs.State() == StateLoggedOut
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestFileStore_WatchPicksUpExternalLogin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	fs, err := OpenFileStore(path, slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- fs.Watch(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, tokenfile.Save(path, &oauth2.Token{AccessToken: "other", RefreshToken: "rt"},
		map[string]string{"id": "u2"}))

	require.Eventually(t, func() bool {
		return fs.AccessToken() == "other"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestFileStore_ReloadSkipsOwnWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	fs, err := OpenFileStore(path, slog.Default())
	require.NoError(t, err)

	fs.SetAuth(&Identity{ID: "u1"}, TokenPair{AccessToken: "at", RefreshToken: "rt"})
	fs.MarkExpired()

	// The file holds this process's own write; reloading it must not reset
	// the in-memory lifecycle state.
	require.NoError(t, fs.reload())
	assert.Equal(t, StateExpired, fs.State())
}
