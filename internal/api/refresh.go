package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// pendingRefreshKey is the only singleflight key: there is one session, so
// there is at most one renewal.
const pendingRefreshKey = "session"

// RefreshState is the coordinator state machine: Idle -> Refreshing -> Idle.
type RefreshState int

const (
	RefreshIdle RefreshState = iota
	RefreshRefreshing
)

func (s RefreshState) String() string {
	if s == RefreshRefreshing {
		return "refreshing"
	}

	return "idle"
}

// RenewFunc calls the renewal endpoint with the stored refresh token.
type RenewFunc func(ctx context.Context, refreshToken string) (*RefreshResult, error)

// expirer is implemented by stores that track the expired lifecycle state.
type expirer interface {
	MarkExpired()
}

// RefreshCoordinator guarantees at most one in-flight renewal. Every caller
// that needs renewal while one is pending waits for that same renewal and
// observes its outcome.
type RefreshCoordinator struct {
	store  SessionStore
	renew  RenewFunc
	logger *slog.Logger

	group    singleflight.Group
	inflight atomic.Bool
	renewals atomic.Int64
}

// NewRefreshCoordinator returns an idle coordinator.
func NewRefreshCoordinator(store SessionStore, renew RenewFunc, logger *slog.Logger) *RefreshCoordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &RefreshCoordinator{
		store:  store,
		renew:  renew,
		logger: logger,
	}
}

// State reports whether a renewal is in flight.
func (r *RefreshCoordinator) State() RefreshState {
	if r.inflight.Load() {
		return RefreshRefreshing
	}

	return RefreshIdle
}

// Renewals returns how many renewal calls were issued to the backend.
func (r *RefreshCoordinator) Renewals() int64 {
	return r.renewals.Load()
}

// Renew makes sure the session holds a token newer than staleToken, the
// token the failed request was sent with. It starts a renewal, joins the one
// in flight, or returns immediately when an earlier renewal already replaced
// staleToken. On failure the session has been logged out and the returned
// error wraps ErrSessionExpired.
//
// The renewal runs detached from ctx so a caller going away cannot fail it
// for the others; ctx only bounds how long this caller waits.
func (r *RefreshCoordinator) Renew(ctx context.Context, staleToken string) error {
	if settled, err := r.settled(staleToken); settled {
		return err
	}

	renewCtx := context.WithoutCancel(ctx)

	ch := r.group.DoChan(pendingRefreshKey, func() (any, error) {
		// A renewal may have settled between the check above and this
		// call becoming the leader.
		if settled, err := r.settled(staleToken); settled {
			return nil, err
		}

		return nil, r.run(renewCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("api: waiting for session renewal: %w", ctx.Err())
	}
}

// settled reports whether the episode that rejected staleToken is already
// over. A different non-empty token means it succeeded; an empty store after
// a non-empty stale token means it failed and the session was torn down.
func (r *RefreshCoordinator) settled(staleToken string) (bool, error) {
	current := r.store.AccessToken()

	switch {
	case current == staleToken:
		return false, nil
	case current != "":
		return true, nil
	default:
		return true, ErrSessionExpired
	}
}

// run performs the renewal call and applies its outcome to the store.
func (r *RefreshCoordinator) run(ctx context.Context) error {
	n := r.renewals.Add(1)

	if e, ok := r.store.(expirer); ok {
		e.MarkExpired()
	}

	r.inflight.Store(true)
	defer r.inflight.Store(false)

	r.logger.Info("renewing session", slog.Int64("renewal", n))

	res, err := r.renew(ctx, r.store.RefreshToken())
	if err == nil && (res == nil || res.Tokens.AccessToken == "") {
		err = errors.New("renewal response carried no access token")
	}

	if err != nil {
		r.logger.Warn("session renewal failed, logging out",
			slog.Int64("renewal", n),
			slog.String("error", err.Error()),
		)

		r.store.Logout()

		return fmt.Errorf("%w: renewal failed: %w", ErrSessionExpired, err)
	}

	if res.User != nil || res.Tokens.RefreshToken != "" {
		r.store.SetAuth(res.User, res.Tokens)
	} else {
		r.store.SetAccessToken(res.Tokens.AccessToken)
	}

	r.logger.Info("session renewed",
		slog.Int64("renewal", n),
		slog.Bool("identity_updated", res.User != nil),
	)

	return nil
}
