package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	q, err := parseQuery([]string{"page=2", "tag=go", "tag=cli", "empty="})
	require.NoError(t, err)
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, []string{"go", "cli"}, q["tag"])
	assert.Equal(t, "", q.Get("empty"))

	_, err = parseQuery([]string{"novalue"})
	require.Error(t, err)

	_, err = parseQuery([]string{"=v"})
	require.Error(t, err)
}

func TestReadBody(t *testing.T) {
	body, err := readBody("", nil)
	require.NoError(t, err)
	assert.Nil(t, body)

	body, err = readBody(`{"a":1}`, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(body))

	body, err = readBody("@-", strings.NewReader(`[1,2]`))
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(body))

	path := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"title":"Quiz"}`), 0o600))

	body, err = readBody("@"+path, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Quiz"}`, string(body))

	_, err = readBody("@"+filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)

	_, err = readBody("{not json", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestGetCommand_SendsQuery(t *testing.T) {
	isolateEnv(t)

	var gotPath, gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"q1"}]}`))
	}))
	defer srv.Close()

	cfgPath, _ := testConfig(t, srv.URL, "")

	stdout, _, err := runCLI(t, "--config", cfgPath, "get", "quizzes", "--query", "page=2")
	require.NoError(t, err)
	assert.Equal(t, "/quizzes", gotPath)
	assert.Equal(t, "page=2", gotQuery)
	assert.JSONEq(t, `{"items":[{"id":"q1"}]}`, stdout)
}

func TestPostCommand_SendsBody(t *testing.T) {
	isolateEnv(t)

	var gotMethod string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method

		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"q9"}`))
	}))
	defer srv.Close()

	cfgPath, _ := testConfig(t, srv.URL, "")

	stdout, _, err := runCLI(t, "--config", cfgPath, "--json", "post", "/quizzes", "-d", `{"title":"Go basics"}`)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Go basics", gotBody["title"])

	var out requestOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, http.StatusCreated, out.Status)
	assert.False(t, out.Synthetic)
	assert.JSONEq(t, `{"id":"q9"}`, string(out.Data))
}

func TestDeleteCommand_AccessDeniedWarns(t *testing.T) {
	isolateEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfgPath, _ := testConfig(t, srv.URL, "")

	_, stderr, err := runCLI(t, "--config", cfgPath, "delete", "/quizzes/q1")
	require.Error(t, err)
	assert.Contains(t, stderr, "Warning: Access denied")
}

func TestRequestCommand_InvalidBodyRejected(t *testing.T) {
	isolateEnv(t)

	cfgPath, _ := testConfig(t, "http://127.0.0.1:1", "")

	_, _, err := runCLI(t, "--config", cfgPath, "put", "/quizzes/q1", "-d", "{oops")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

// A 502 on a data endpoint with degraded mode on yields a placeholder
// dashboard instead of an error.
func TestGetCommand_DegradedDataFallback(t *testing.T) {
	isolateEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfgPath, _ := testConfig(t, srv.URL, "[degraded]\nenabled = true\n")

	stdout, _, err := runCLI(t, "--config", cfgPath, "--json", "get", "/dashboard")
	require.NoError(t, err)

	var out requestOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.True(t, out.Synthetic)
	assert.Equal(t, http.StatusOK, out.Status)

	var dash map[string]any
	require.NoError(t, json.Unmarshal(out.Data, &dash))
	assert.Contains(t, dash, "stats")
	assert.Contains(t, dash, "recentAttempts")
}
