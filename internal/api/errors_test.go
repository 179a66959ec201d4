package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}

	tests := []struct {
		name  string
		err   error
		want  Classification
		class bool
	}{
		{"401", &APIError{StatusCode: http.StatusUnauthorized, Err: ErrUnauthorized}, ClassUnauthorized, true},
		{"500", &APIError{StatusCode: http.StatusInternalServerError, Err: ErrServerError}, ClassServerError, true},
		{"503", &APIError{StatusCode: http.StatusServiceUnavailable, Err: ErrServerError}, ClassServerError, true},
		{"400", &APIError{StatusCode: http.StatusBadRequest, Err: ErrBadRequest}, ClassClientError, true},
		{"403", &APIError{StatusCode: http.StatusForbidden, Err: ErrForbidden}, ClassClientError, true},
		{"404", &APIError{StatusCode: http.StatusNotFound, Err: ErrNotFound}, ClassClientError, true},
		{"429", &APIError{StatusCode: http.StatusTooManyRequests, Err: ErrThrottled}, ClassClientError, true},
		{"wrapped 401", fmt.Errorf("fetching: %w", &APIError{StatusCode: 401, Err: ErrUnauthorized}), ClassUnauthorized, true},
		{"network error", &NetworkError{Method: "GET", Path: "/x", Err: refused}, ClassNetworkUnreachable, true},
		{"url error", &url.Error{Op: "Get", URL: "http://x", Err: refused}, ClassNetworkUnreachable, true},
		{"net op error", refused, ClassNetworkUnreachable, true},
		{"nil", nil, 0, false},
		{"canceled", fmt.Errorf("api: request canceled: %w", context.Canceled), 0, false},
		{"caller deadline", fmt.Errorf("api: request canceled: %w", context.DeadlineExceeded), 0, false},
		{"transport timeout", &NetworkError{Method: "GET", Path: "/x", Err: context.DeadlineExceeded}, ClassNetworkUnreachable, true},
		{"unrelated", errors.New("boom"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.err)
			assert.Equal(t, tt.class, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_IsDeterministic(t *testing.T) {
	err := &APIError{StatusCode: http.StatusBadGateway, Err: ErrServerError}

	for range 3 {
		got, ok := Classify(err)
		require.True(t, ok)
		assert.Equal(t, ClassServerError, got)
	}
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, ErrBadRequest, classifyStatus(400))
	assert.Equal(t, ErrUnauthorized, classifyStatus(401))
	assert.Equal(t, ErrForbidden, classifyStatus(403))
	assert.Equal(t, ErrNotFound, classifyStatus(404))
	assert.Equal(t, ErrConflict, classifyStatus(409))
	assert.Equal(t, ErrUnprocessable, classifyStatus(422))
	assert.Equal(t, ErrThrottled, classifyStatus(429))
	assert.Equal(t, ErrClientError, classifyStatus(418))
	assert.Equal(t, ErrServerError, classifyStatus(502))
}

func TestAPIError_Message(t *testing.T) {
	err := &APIError{StatusCode: 404, RequestID: "req-1", Message: "missing", Err: ErrNotFound}
	assert.Equal(t, "api: HTTP 404 (request-id: req-1): missing", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)

	err.RequestID = ""
	assert.Equal(t, "api: HTTP 404: missing", err.Error())
}

func TestNetworkError_MatchesBoth(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &NetworkError{Method: "POST", Path: "/auth/login", Err: cause}

	assert.ErrorIs(t, err, ErrNetworkUnreachable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "POST /auth/login")
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "unauthorized", ClassUnauthorized.String())
	assert.Equal(t, "network-unreachable", ClassNetworkUnreachable.String())
	assert.Equal(t, "server-error", ClassServerError.String())
	assert.Equal(t, "client-error", ClassClientError.String())
	assert.Equal(t, "unclassified", Classification(0).String())
}
