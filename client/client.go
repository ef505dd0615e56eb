package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds a single attempt, not the whole retry schedule.
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is the number of reissues after the first attempt.
	DefaultRetries = 2

	headerRequestID     = "X-Request-ID"
	headerAuthorization = "Authorization"
	headerRetryAfter    = "Retry-After"
)

// TokenSource supplies the current access token for authenticated calls.
type TokenSource interface {
	AccessToken() string
}

// SessionRefresher mints a new token pair after the server rejects the
// current one. Implemented by the session manager and bound after
// construction to break the client/session dependency cycle.
type SessionRefresher interface {
	RefreshSession(ctx context.Context) error
}

// Sleeper waits for the given duration or until the context is cancelled.
// Injectable so retry schedules can be verified in tests.
type Sleeper func(ctx context.Context, d time.Duration) error

// Response carries metadata about a completed call.
type Response struct {
	StatusCode int
	NoContent  bool
}

// RequestOptions overrides the client defaults for one logical call.
type RequestOptions struct {
	Timeout     time.Duration
	Retries     *int
	RequireAuth *bool // nil means true
	Header      http.Header
}

// Client executes API calls against the configured base URL with bounded
// latency and bounded retry, translating failures into the typed error
// set defined in this package.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	retries    int
	tokens     TokenSource
	refresher  SessionRefresher
	sleep      Sleeper
	log        zerolog.Logger
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithRetries(retries int) Option {
	return func(c *Client) {
		c.retries = retries
	}
}

func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithSleeper sets the retry delay function (primarily for testing).
func WithSleeper(sleep Sleeper) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// New initializes a Client for the given base URL. Any trailing slash on
// the base URL is stripped.
func New(baseURL string, options ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[client.New] base URL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		retries:    DefaultRetries,
		sleep:      defaultSleep,
		log:        zerolog.Nop(),
	}

	for _, opt := range options {
		opt(c)
	}

	if c.retries < 0 {
		return nil, errors.New("[client.New] retries must not be negative")
	}

	return c, nil
}

// SetRefresher binds the session refresher used on 401 responses. It is
// set after construction because the session manager itself depends on
// this client.
func (c *Client) SetRefresher(r SessionRefresher) {
	c.refresher = r
}

func (c *Client) Get(ctx context.Context, endpoint string, out any, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil, out, opts)
}

func (c *Client) Post(ctx context.Context, endpoint string, body, out any, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodPost, endpoint, body, out, opts)
}

func (c *Client) Put(ctx context.Context, endpoint string, body, out any, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodPut, endpoint, body, out, opts)
}

func (c *Client) Patch(ctx context.Context, endpoint string, body, out any, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, endpoint, body, out, opts)
}

func (c *Client) Delete(ctx context.Context, endpoint string, out any, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, out, opts)
}

// Do executes one logical call: at most 1+retries attempts, strictly
// sequential, with 2^attempt seconds between attempts. Only transient
// failures (network errors, 5xx, 429) are reissued; authentication
// failures and other 4xx responses surface immediately.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any, opts *RequestOptions) (*Response, error) {
	timeout, retries, requireAuth := c.resolveOptions(opts)

	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	url := c.baseURL + endpoint

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.Do] marshal request body")
		}
		payload = encoded
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := c.attempt(ctx, method, url, payload, out, requireAuth, timeout, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
		if attempt >= retries {
			break
		}

		delay := retryDelay(attempt+1, err)
		c.log.Warn().
			Str("method", method).
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Int("retries", retries).
			Dur("delay", delay).
			Err(err).
			Msg("request failed, retrying")

		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return nil, &NetworkError{Message: "request cancelled while waiting to retry", Err: sleepErr}
		}
	}

	return nil, lastErr
}

func (c *Client) resolveOptions(opts *RequestOptions) (time.Duration, int, bool) {
	timeout := c.timeout
	retries := c.retries
	requireAuth := true

	if opts != nil {
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
		if opts.Retries != nil && *opts.Retries >= 0 {
			retries = *opts.Retries
		}
		if opts.RequireAuth != nil {
			requireAuth = *opts.RequireAuth
		}
	}
	return timeout, retries, requireAuth
}

// attempt issues a single HTTP request bounded by timeout and classifies
// the outcome.
func (c *Client) attempt(ctx context.Context, method, url string, payload []byte, out any, requireAuth bool, timeout time.Duration, opts *RequestOptions) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, url, bodyReader)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.attempt] build request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, uuid.New().String())
	if opts != nil {
		for key, values := range opts.Header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
	}

	if requireAuth {
		token := ""
		if c.tokens != nil {
			token = c.tokens.AccessToken()
		}
		if token != "" {
			req.Header.Set(headerAuthorization, "Bearer "+token)
		} else {
			c.log.Warn().Str("url", url).Msg("no access token available for authenticated request")
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &NetworkError{Message: fmt.Sprintf("request timeout after %s", timeout), Err: err}
		}
		return nil, &NetworkError{Message: "cannot connect to server", Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &NetworkError{Message: "failed reading response body", Err: err}
	}

	return c.handleResponse(ctx, res, raw, out, requireAuth)
}

func (c *Client) handleResponse(ctx context.Context, res *http.Response, raw []byte, out any, requireAuth bool) (*Response, error) {
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return nil, c.handleUnauthorized(ctx, requireAuth)

	case res.StatusCode == http.StatusTooManyRequests:
		return nil, &APIError{
			Status:     res.StatusCode,
			Code:       "RATE_LIMITED",
			Message:    "too many requests",
			RetryAfter: parseRetryAfter(res.Header.Get(headerRetryAfter)),
		}

	case res.StatusCode >= http.StatusInternalServerError:
		return nil, &APIError{
			Status:  res.StatusCode,
			Code:    "SERVER_ERROR",
			Message: "server error",
			Details: decodeErrorBody(raw),
		}

	case res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices:
		return nil, apiErrorFromBody(res.StatusCode, raw)
	}

	if res.StatusCode == http.StatusNoContent || len(raw) == 0 {
		return &Response{StatusCode: res.StatusCode, NoContent: true}, nil
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, &ParseError{Status: res.StatusCode, Err: err}
		}
	}

	return &Response{StatusCode: res.StatusCode}, nil
}

// handleUnauthorized runs at most one token refresh attempt. The original
// call is never reissued automatically; the caller decides whether to
// repeat it after a successful refresh.
func (c *Client) handleUnauthorized(ctx context.Context, requireAuth bool) error {
	if !requireAuth || c.refresher == nil {
		return &AuthenticationError{Message: "authentication required", Err: ErrSessionExpired}
	}

	if err := c.refresher.RefreshSession(ctx); err != nil {
		c.log.Warn().Err(err).Msg("token refresh after 401 failed")
		return &AuthenticationError{Message: "authentication failed, please log in again", Err: ErrSessionExpired}
	}

	return &AuthenticationError{Message: "session refreshed, please retry the request", Err: ErrSessionRefreshed}
}

// retryDelay computes the wait before the given attempt. A Retry-After
// hint on a 429 takes precedence over the exponential schedule.
func retryDelay(attempt int, err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	return time.Duration(1<<attempt) * time.Second
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// apiErrorFromBody extracts a message from a structured error body,
// falling back to a synthesized status-based message.
func apiErrorFromBody(status int, raw []byte) *APIError {
	details := decodeErrorBody(raw)

	message := fmt.Sprintf("request failed with status %d", status)
	for _, key := range []string{"detail", "message", "error"} {
		if text, ok := details[key].(string); ok && text != "" {
			message = text
			break
		}
	}

	code := ""
	if text, ok := details["code"].(string); ok {
		code = text
	}

	return &APIError{Status: status, Code: code, Message: message, Details: details}
}

func decodeErrorBody(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	details := map[string]any{}
	if err := json.Unmarshal(raw, &details); err != nil {
		return map[string]any{"detail": string(raw)}
	}
	return details
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
