package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Throttling retry and backoff constants. Only 429 is retried in place;
// every other failure goes through classification.
const (
	maxThrottleRetries = 3
	baseBackoff        = 1 * time.Second
	maxBackoff         = 30 * time.Second
	backoffFactor      = 2.0
	jitterFraction     = 0.25
	defaultUserAgent   = "quizctl/0.1"

	// maxErrorBody caps how much of an error response is kept in APIError.
	maxErrorBody = 4096
)

// Warner shows a rate-limited warning. notify.Throttle implements it.
type Warner interface {
	Notify() bool
}

// OfflineIndicator reflects whether the backend is believed unreachable.
// notify.Indicator implements it.
type OfflineIndicator interface {
	SetOffline()
	Clear()
}

// Client is the request pipeline. Every call runs the authorization
// injector, the degraded-mode short-circuit, the network call, and on
// failure the classifier and the matching recovery path.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    SessionStore
	logger     *slog.Logger
	userAgent  string

	refresher    *RefreshCoordinator
	degraded     *DegradedController
	accessDenied Warner
	indicator    OfflineIndicator

	// sleepFunc is called to wait between throttling retries. Tests
	// override it to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// Option configures optional collaborators of a Client.
type Option func(*Client)

// WithDegradedMode enables degraded mode using d.
func WithDegradedMode(d *DegradedController) Option {
	return func(c *Client) { c.degraded = d }
}

// WithAccessDeniedWarning shows w whenever the backend answers 403.
func WithAccessDeniedWarning(w Warner) Option {
	return func(c *Client) { c.accessDenied = w }
}

// WithOfflineIndicator reports reachability changes to ind.
func WithOfflineIndicator(ind OfflineIndicator) Option {
	return func(c *Client) { c.indicator = ind }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates an API client for the backend at baseURL.
func NewClient(baseURL string, httpClient *http.Client, store SessionStore, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   httpClient,
		session:      store,
		logger:       logger,
		userAgent:    defaultUserAgent,
		accessDenied: noopWarner{},
		indicator:    noopIndicator{},
		sleepFunc:    timeSleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.refresher = NewRefreshCoordinator(store, c.renewSession, logger)

	return c
}

// Refresher exposes the renewal coordinator, for status reporting.
func (c *Client) Refresher() *RefreshCoordinator {
	return c.refresher
}

// DegradedState reports which families are currently degraded.
func (c *Client) DegradedState() DegradedState {
	return c.degraded.State()
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

// Post issues a POST request with body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

// Put issues a PUT request with body encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts...)
}

// Patch issues a PATCH request with body encoded as JSON.
func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts...)
}

// Do runs one call through the pipeline. body may be nil, a []byte or
// json.RawMessage sent as-is, or any value encoded as JSON.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	a := &attempt{method: method, path: path, body: payload}
	for _, opt := range opts {
		opt(a)
	}

	return c.run(ctx, a)
}

// run is the pipeline for one attempt. A replay after renewal re-enters it
// with retried set.
func (c *Client) run(ctx context.Context, a *attempt) (*Response, error) {
	family, covered := c.degraded.FamilyOf(a.path)

	if covered {
		if resp, ok := c.degraded.ShortCircuit(family, a.synthRequest()); ok {
			return resp, nil
		}
	}

	resp, sentToken, err := c.send(ctx, a)
	if err == nil {
		c.indicator.Clear()

		if covered {
			c.degraded.Succeeded(family)
		}

		return resp, nil
	}

	class, ok := Classify(err)
	if !ok {
		if covered {
			c.degraded.AbandonProbe(family)
		}

		return nil, err
	}

	switch class {
	case ClassUnauthorized:
		if covered {
			c.degraded.AbandonProbe(family)
		}

		return c.handleUnauthorized(ctx, a, sentToken, err)

	case ClassNetworkUnreachable, ClassServerError:
		if class == ClassNetworkUnreachable {
			c.indicator.SetOffline()
		}

		if covered {
			if synth, ok := c.degraded.Fail(family, class, a.synthRequest()); ok {
				return synth, nil
			}
		}

		return nil, err

	default:
		if covered {
			c.degraded.AbandonProbe(family)
		}

		if errors.Is(err, ErrForbidden) {
			c.accessDenied.Notify()
		}

		return nil, err
	}
}

// handleUnauthorized renews the session once and replays the request, or
// ends the session when renewal is not allowed for this request.
func (c *Client) handleUnauthorized(ctx context.Context, a *attempt, sentToken string, cause error) (*Response, error) {
	if a.retried || isRenewalExempt(a.path) {
		c.logger.Warn("unauthorized response is terminal, ending session",
			slog.String("method", a.method),
			slog.String("path", a.path),
			slog.Bool("retried", a.retried),
		)

		c.session.Logout()

		return nil, cause
	}

	if err := c.refresher.Renew(ctx, sentToken); err != nil {
		return nil, err
	}

	a.retried = true

	c.logger.Debug("replaying request after renewal",
		slog.String("method", a.method),
		slog.String("path", a.path),
	)

	return c.run(ctx, a)
}

// isRenewalExempt reports whether a 401 on path must not trigger renewal:
// a failed login is bad credentials and a failed renewal cannot renew itself.
func isRenewalExempt(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	return path == LoginPath || path == RefreshPath
}

// send performs the network call, retrying 429 responses in place. It
// returns the access token the final attempt was sent with.
func (c *Client) send(ctx context.Context, a *attempt) (*Response, string, error) {
	var retries int

	for {
		resp, token, err := c.doOnce(ctx, a.method, a.url(c.baseURL), a.header, a.body, true)
		if err != nil {
			if ctx.Err() != nil {
				return nil, token, fmt.Errorf("api: request canceled: %w", ctx.Err())
			}

			c.logger.Warn("network error",
				slog.String("method", a.method),
				slog.String("path", a.path),
				slog.String("error", err.Error()),
			)

			return nil, token, &NetworkError{Method: a.method, Path: a.path, Err: err}
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			if ctx.Err() != nil {
				return nil, token, fmt.Errorf("api: request canceled: %w", ctx.Err())
			}

			return nil, token, &NetworkError{Method: a.method, Path: a.path, Err: readErr}
		}

		// 2xx: success.
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", a.method),
				slog.String("path", a.path),
				slog.Int("status", resp.StatusCode),
			)

			return &Response{Status: resp.StatusCode, Header: resp.Header, Data: data}, token, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests && retries < maxThrottleRetries {
			backoff := c.retryBackoff(resp, retries)
			c.logger.Warn("throttled, retrying",
				slog.String("method", a.method),
				slog.String("path", a.path),
				slog.Int("attempt", retries+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, token, fmt.Errorf("api: request canceled: %w", err)
			}

			retries++

			continue
		}

		return nil, token, newAPIError(resp, data)
	}
}

// doOnce executes a single HTTP request. When authed is set the
// authorization injector runs and its token is returned.
func (c *Client) doOnce(
	ctx context.Context,
	method, url string,
	header http.Header,
	body []byte,
	authed bool,
) (*http.Response, string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	var token string
	if authed {
		token = authorize(req, c.session)
	}

	stampRequest(req, c.userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)

	return resp, token, err
}

// renewSession obtains a new token pair. It goes through degraded mode like
// any auth-family call: a tripped family answers with a synthesized pair,
// and a NetworkUnreachable or ServerError failure trips it. It skips the
// rest of the pipeline: no bearer token and no nested renewal.
func (c *Client) renewSession(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	var body []byte
	if refreshToken != "" {
		body, _ = json.Marshal(map[string]string{"refreshToken": refreshToken})
	}

	req := SynthRequest{Method: http.MethodPost, Path: RefreshPath, Body: body}
	family, covered := c.degraded.FamilyOf(RefreshPath)

	if covered {
		if resp, ok := c.degraded.ShortCircuit(family, req); ok {
			return decodeRenewal(resp.Data)
		}
	}

	res, err := c.postRenewal(ctx, body)
	if err == nil {
		c.indicator.Clear()

		if covered {
			c.degraded.Succeeded(family)
		}

		return res, nil
	}

	class, ok := Classify(err)
	if ok && class == ClassNetworkUnreachable {
		c.indicator.SetOffline()
	}

	if covered {
		if ok {
			if synth, tripped := c.degraded.Fail(family, class, req); tripped {
				return decodeRenewal(synth.Data)
			}
		}

		c.degraded.AbandonProbe(family)
	}

	return nil, err
}

// postRenewal calls the renewal endpoint. The refresh cookie travels through
// the HTTP client's cookie jar; the stored refresh token, if any, goes in the
// body.
func (c *Client) postRenewal(ctx context.Context, body []byte) (*RefreshResult, error) {
	resp, _, err := c.doOnce(ctx, http.MethodPost, c.baseURL+RefreshPath, nil, body, false)
	if err != nil {
		return nil, &NetworkError{Method: http.MethodPost, Path: RefreshPath, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: http.MethodPost, Path: RefreshPath, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newAPIError(resp, data)
	}

	return decodeRenewal(data)
}

func decodeRenewal(data []byte) (*RefreshResult, error) {
	var res RefreshResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("api: decoding renewal response: %w", err)
	}

	return &res, nil
}

// url joins the base URL, path, and query.
func (a *attempt) url(baseURL string) string {
	u := baseURL + a.path
	if len(a.query) == 0 {
		return u
	}

	sep := "?"
	if strings.Contains(a.path, "?") {
		sep = "&"
	}

	return u + sep + a.query.Encode()
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get(requestIDHeader),
		Message:    strings.TrimSpace(string(body)),
		Err:        classifyStatus(resp.StatusCode),
	}
}

// encodeBody turns a request body into bytes that can be replayed.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("api: encoding request body: %w", err)
		}

		return data, nil
	}
}

// retryBackoff returns the backoff for a 429 response, preferring the
// server's Retry-After seconds.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopWarner struct{}

func (noopWarner) Notify() bool { return false }

type noopIndicator struct{}

func (noopIndicator) SetOffline() {}

func (noopIndicator) Clear() {}
