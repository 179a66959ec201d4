package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"

	"github.com/redis/go-redis/v9"

	"github.com/quizdesk/quizctl/internal/api"
	"github.com/quizdesk/quizctl/internal/config"
	"github.com/quizdesk/quizctl/internal/notify"
	"github.com/quizdesk/quizctl/internal/session"
)

// offlineMessage is printed when the backend becomes unreachable.
const offlineMessage = "offline, showing cached/placeholder data"

// sessionStore is what the CLI needs from any session backend.
type sessionStore interface {
	api.SessionStore
	Identity() (session.Identity, bool)
	State() session.State
	Snapshot() session.Snapshot
}

// app wires the session store, the degraded-mode controller, and the API
// client for one command invocation.
type app struct {
	store    sessionStore
	client   *api.Client
	degraded *api.DegradedController
	closers  []func() error
}

func newApp(ctx context.Context, cc *CLIContext) (*app, error) {
	cfg := cc.Cfg
	logger := cc.Logger

	a := &app{}

	store, err := a.openSessionStore(ctx, cfg.Session, logger)
	if err != nil {
		return nil, err
	}

	a.store = store

	degraded, err := api.NewDegradedController(api.DegradedConfig{
		Enabled:       cfg.Degraded.Enabled,
		ProbeInterval: cfg.ProbeInterval(),
		Routes:        api.Routes(cfg.Degraded.AuthPrefixes, cfg.Degraded.DataPrefixes),
		Strategies:    api.DefaultStrategies(store),
	}, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("configuring degraded mode: %w", err)
	}

	a.degraded = degraded

	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	warner := notify.NewThrottle(notify.NewWriterNotifier(cc.Err), notify.AccessDeniedMessage,
		cfg.AccessDeniedGap(), logger)

	indicator := notify.NewIndicator(func(offline bool) {
		if offline {
			fmt.Fprintf(cc.Err, "Warning: %s\n", offlineMessage)
			return
		}

		statusf(cc.Err, cc.Flags.Quiet, "Back online.\n")
	})

	a.client = api.NewClient(cfg.Server.BaseURL, httpClient, store, logger,
		api.WithDegradedMode(degraded),
		api.WithAccessDeniedWarning(warner),
		api.WithOfflineIndicator(indicator),
		api.WithUserAgent(cfg.Server.UserAgent),
	)

	return a, nil
}

// openSessionStore opens the configured session backend. The file backend
// also follows external changes (a logout in another terminal) while the
// command runs.
func (a *app) openSessionStore(ctx context.Context, sc config.SessionConfig, logger *slog.Logger) (sessionStore, error) {
	switch sc.Backend {
	case config.BackendMemory:
		return session.NewMemoryStore(), nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: sc.RedisAddr})
		a.closers = append(a.closers, rdb.Close)

		store, err := session.OpenRedisStore(ctx, rdb, sc.RedisKey, logger)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("opening redis session: %w", err)
		}

		return store, nil

	default:
		store, err := session.OpenFileStore(sc.TokenPath, logger)
		if err != nil {
			return nil, fmt.Errorf("opening session file: %w", err)
		}

		watchCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})

		go func() {
			defer close(done)

			if err := store.Watch(watchCtx); err != nil {
				logger.Debug("session watch stopped", slog.String("error", err.Error()))
			}
		}()

		a.closers = append(a.closers, func() error {
			cancel()
			<-done

			return nil
		})

		return store, nil
	}
}

// Close releases the session backend.
func (a *app) Close() error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	a.closers = nil

	return errors.Join(errs...)
}

// newHTTPClient returns an HTTP client with the configured timeout and a
// cookie jar, which carries the backend's refresh cookie to /auth/refresh.
func newHTTPClient(cfg *config.Resolved) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &http.Client{
		Timeout: cfg.RequestTimeout(),
		Jar:     jar,
	}, nil
}

// withApp builds the app for a command, runs fn, and releases it.
func withApp(ctx context.Context, cc *CLIContext, fn func(*app) error) error {
	a, err := newApp(ctx, cc)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := a.Close(); cerr != nil {
			cc.Logger.Warn("closing session backend", slog.String("error", cerr.Error()))
		}
	}()

	return fn(a)
}
