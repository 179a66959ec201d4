package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisWriteTimeout bounds each write-through call. Store methods have no
// context parameter, so the store supplies its own deadline.
const redisWriteTimeout = 5 * time.Second

// redisRecord is the JSON value stored under the session key.
type redisRecord struct {
	State    State     `json:"state"`
	Identity *Identity `json:"identity,omitempty"`
	Tokens   TokenPair `json:"tokens"`
}

// RedisStore is a MemoryStore that writes through to a single Redis key so
// several processes can share one session.
type RedisStore struct {
	*MemoryStore

	client *redis.Client
	key    string
	logger *slog.Logger

	// mu serializes writes so the key always ends at the latest snapshot.
	mu sync.Mutex
}

// OpenRedisStore loads the session stored under key and returns a store that
// writes every change back to it.
func OpenRedisStore(ctx context.Context, client *redis.Client, key string, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rs := &RedisStore{
		MemoryStore: NewMemoryStore(),
		client:      client,
		key:         key,
		logger:      logger,
	}

	if err := rs.Reload(ctx); err != nil {
		return nil, err
	}

	rs.onChange = rs.persist

	return rs, nil
}

// Reload replaces the in-memory session with the value stored in Redis.
func (r *RedisStore) Reload(ctx context.Context) error {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		prev := r.State()
		if prev == StateAuthenticated || prev == StateExpired {
			r.restore(Snapshot{State: StateLoggedOut})
		}

		return nil
	}

	if err != nil {
		return fmt.Errorf("session: reading redis key %s: %w", r.key, err)
	}

	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("session: decoding redis key %s: %w", r.key, err)
	}

	r.restore(Snapshot{State: rec.State, Identity: rec.Identity, Tokens: rec.Tokens})

	return nil
}

// persist writes the latest session to Redis. Like FileStore it ignores the
// snapshot it was called with, which may be older than one already written.
func (r *RedisStore) persist(Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.Snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), redisWriteTimeout)
	defer cancel()

	if s.State == StateLoggedOut || s.State == StateAnonymous {
		if err := r.client.Del(ctx, r.key).Err(); err != nil {
			r.logger.Warn("failed to delete redis session",
				slog.String("key", r.key),
				slog.String("error", err.Error()),
			)
		}

		return
	}

	data, err := json.Marshal(redisRecord{State: s.State, Identity: s.Identity, Tokens: s.Tokens})
	if err != nil {
		r.logger.Warn("failed to encode session", slog.String("error", err.Error()))
		return
	}

	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		r.logger.Warn("failed to persist redis session",
			slog.String("key", r.key),
			slog.String("error", err.Error()),
		)
	}
}
