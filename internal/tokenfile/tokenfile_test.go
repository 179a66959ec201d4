package tokenfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestLoad_FileNotFound(t *testing.T) {
	f, err := Load("/nonexistent/path/session.json")
	assert.Nil(t, f)
	assert.NoError(t, err)
}

func TestSaveLoad_RoundTripsIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	tok := &oauth2.Token{AccessToken: "access-123", RefreshToken: "refresh-456", TokenType: "Bearer"}
	identity := map[string]string{"id": "u-1", "email": "alice@example.com"}

	require.NoError(t, Save(path, tok, identity))

	f, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "access-123", f.Token.AccessToken)
	assert.Equal(t, "refresh-456", f.Token.RefreshToken)
	assert.Equal(t, "alice@example.com", f.Identity["email"])
	assert.False(t, f.SavedAt.IsZero())
}

func TestSave_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	require.NoError(t, Save(path, &oauth2.Token{AccessToken: "a"}, nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(DirPerms), dirInfo.Mode().Perm())
}

func TestSave_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	require.NoError(t, Save(path, &oauth2.Token{AccessToken: "a"}, nil))
	require.NoError(t, Save(path, &oauth2.Token{AccessToken: "b"}, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session.json", entries[0].Name())
}

func TestLoad_MissingTokenField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1}`), 0o600))

	f, err := Load(path)
	assert.Nil(t, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing token field")
}

func TestLoad_WrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":7,"token":{"access_token":"a"}}`), 0o600))

	f, err := Load(path)
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrVersion)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json}`), 0o600))

	f, err := Load(path)
	assert.Nil(t, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, Save(path, &oauth2.Token{AccessToken: "a"}, nil))

	require.NoError(t, Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Second remove is a no-op.
	assert.NoError(t, Remove(path))
}
