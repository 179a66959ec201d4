package session

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedisStore_EmptyKeyIsAnonymous(t *testing.T) {
	_, client := newTestRedis(t)

	rs, err := OpenRedisStore(context.Background(), client, "quizctl:session", slog.Default())
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, rs.State())
}

func TestRedisStore_SharedBetweenStores(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	a, err := OpenRedisStore(ctx, client, "quizctl:session", slog.Default())
	require.NoError(t, err)

	a.SetAuth(&Identity{ID: "u1"}, TokenPair{AccessToken: "at", RefreshToken: "rt"})
	assert.True(t, mr.Exists("quizctl:session"))

	b, err := OpenRedisStore(ctx, client, "quizctl:session", slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "at", b.AccessToken())
	assert.Equal(t, StateAuthenticated, b.State())

	a.Logout()
	assert.False(t, mr.Exists("quizctl:session"))

	require.NoError(t, b.Reload(ctx))
	assert.Equal(t, StateLoggedOut, b.State())
	assert.Empty(t, b.AccessToken())
}

func TestRedisStore_CorruptValue(t *testing.T) {
	mr, client := newTestRedis(t)
	require.NoError(t, mr.Set("quizctl:session", "{nope"))

	_, err := OpenRedisStore(context.Background(), client, "quizctl:session", slog.Default())
	assert.Error(t, err)
}
