// Package api is the authenticated HTTP client every feature uses to talk to
// the quiz backend. It injects bearer credentials, renews an expired session
// once per failure episode no matter how many requests fail concurrently, and
// substitutes synthetic responses for covered endpoint families while the
// backend is unreachable.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, api.ErrNotFound) to check.
var (
	ErrBadRequest    = errors.New("api: bad request")
	ErrUnauthorized  = errors.New("api: unauthorized")
	ErrForbidden     = errors.New("api: forbidden")
	ErrNotFound      = errors.New("api: not found")
	ErrConflict      = errors.New("api: conflict")
	ErrUnprocessable = errors.New("api: unprocessable entity")
	ErrThrottled     = errors.New("api: throttled")
	ErrClientError   = errors.New("api: client error")
	ErrServerError   = errors.New("api: server error")
)

// Session and transport errors.
var (
	// ErrNetworkUnreachable marks transport failures that produced no HTTP status.
	ErrNetworkUnreachable = errors.New("api: network unreachable")

	// ErrSessionExpired is returned to every caller of a failed renewal and to
	// requests whose session was torn down while they were in flight.
	ErrSessionExpired = errors.New("api: session expired")

	// ErrNotLoggedIn is returned by operations that need a signed-in session.
	ErrNotLoggedIn = errors.New("api: not logged in")
)

// APIError wraps a sentinel error with HTTP status code, request ID, and the
// response body for debugging.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NetworkError is a transport failure: the request never produced an HTTP
// status. It matches both ErrNetworkUnreachable and the underlying error.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("api: %s %s: network unreachable: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	return []error{ErrNetworkUnreachable, e.Err}
}

// Classification is the failure class of a call. It decides which recovery
// path, if any, the pipeline takes.
type Classification int

const (
	ClassUnauthorized Classification = iota + 1
	ClassNetworkUnreachable
	ClassServerError
	ClassClientError
)

func (c Classification) String() string {
	switch c {
	case ClassUnauthorized:
		return "unauthorized"
	case ClassNetworkUnreachable:
		return "network-unreachable"
	case ClassServerError:
		return "server-error"
	case ClassClientError:
		return "client-error"
	default:
		return "unclassified"
	}
}

// Classify maps a failed call to its Classification. It is pure and does not
// depend on call history. It reports false for nil errors and for the
// caller's own context cancellation or expired deadline, which are not
// backend failures. A transport timeout inside a NetworkError or url.Error
// is still NetworkUnreachable.
func Classify(err error) (Classification, bool) {
	if err == nil {
		return 0, false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return classifyCode(apiErr.StatusCode), true
	}

	if errors.Is(err, context.Canceled) {
		return 0, false
	}

	if errors.Is(err, ErrNetworkUnreachable) {
		return ClassNetworkUnreachable, true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassNetworkUnreachable, true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassNetworkUnreachable, true
	}

	return 0, false
}

// classifyCode maps an HTTP status code to a Classification.
func classifyCode(code int) Classification {
	switch {
	case code == http.StatusUnauthorized:
		return ClassUnauthorized
	case code >= http.StatusInternalServerError:
		return ClassServerError
	default:
		return ClassClientError
	}
}

// classifyStatus maps an HTTP status code to a sentinel error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrUnprocessable
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrClientError
	}
}
