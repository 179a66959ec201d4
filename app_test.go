package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizdesk/quizctl/internal/config"
)

// testCLIContext returns a CLIContext over the default config pointed at
// baseURL, with degraded mode on and an in-memory session.
func testCLIContext(baseURL string) *CLIContext {
	cfg := config.DefaultConfig()
	cfg.Server.BaseURL = baseURL
	cfg.Degraded.Enabled = true
	cfg.Session.Backend = config.BackendMemory

	var stderr bytes.Buffer

	return &CLIContext{
		Cfg:    &config.Resolved{Config: *cfg},
		Logger: slog.New(slog.NewTextHandler(&stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		Out:    &bytes.Buffer{},
		Err:    &stderr,
	}
}

// With the default families, quiz calls fall back once the data family has
// tripped on another data endpoint.
func TestApp_DefaultDataFamilyCoversQuizzes(t *testing.T) {
	var quizHits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/quizzes" {
			quizHits.Add(1)
		}

		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx := context.Background()

	a, err := newApp(ctx, testCLIContext(srv.URL))
	require.NoError(t, err)

	defer func() { require.NoError(t, a.Close()) }()

	resp, err := a.client.Get(ctx, "/dashboard")
	require.NoError(t, err)
	require.True(t, resp.Synthetic)
	require.True(t, a.client.DegradedState().DataDegraded)

	resp, err = a.client.Get(ctx, "/quizzes")
	require.NoError(t, err)
	assert.True(t, resp.Synthetic)
	assert.JSONEq(t, `{"items":[],"total":0}`, string(resp.Data))
	assert.Zero(t, quizHits.Load(), "quiz call skipped the network")

	resp, err = a.client.Post(ctx, "/attempts/a1/answers", map[string]int{"choice": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"choice":1,"synthetic":true}`, string(resp.Data))
}
