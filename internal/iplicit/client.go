// ABOUTME: Authenticated, rate-limited, retrying HTTP transport for the iplicit API.
// ABOUTME: Classifies every outcome into the typed error taxonomy in errors.go.

package iplicit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxErrorBody caps how much of an upstream error body is preserved in
// error messages surfaced to callers.
const maxErrorBody = 300

// TokenSource supplies a valid bearer token for outbound calls and lets the
// transport drop a token the API has rejected.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// SlotLimiter grants one outbound-request slot per call. Acquire blocks
// until a slot frees, the context is cancelled, or the limiter rejects.
type SlotLimiter interface {
	Acquire(ctx context.Context) error
}

// RetryPolicy bounds retries of transient failures (5xx, network errors,
// upstream 429). MaxAttempts counts total attempts, not extra retries: a
// policy of 3 makes at most three calls and never a fourth.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy mirrors the API integration guidance: 3 attempts,
// 1s base delay, doubling.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}

// delay returns the backoff before retry number n (1-based).
func (p RetryPolicy) delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	return d
}

// ClientConfig configures the transport.
type ClientConfig struct {
	BaseURL    string // e.g. https://api.iplicit.com/api
	Domain     string // tenant, sent as the Domain header on every call
	Tokens     TokenSource
	Limiter    SlotLimiter
	HTTPClient *http.Client
	Retry      RetryPolicy
	Logger     *slog.Logger
}

// Client issues authenticated calls against the iplicit API. Calls are
// independent and safe to run in parallel; the only shared state is the
// token source and the rate limiter, each guarded internally.
type Client struct {
	base    *url.URL
	domain  string
	tokens  TokenSource
	limiter SlotLimiter
	http    *http.Client
	retry   RetryPolicy
	logger  *slog.Logger

	// sleep is swappable in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a transport from the given configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token source is required")
	}
	if cfg.Limiter == nil {
		return nil, errors.New("rate limiter is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:    base,
		domain:  cfg.Domain,
		tokens:  cfg.Tokens,
		limiter: cfg.Limiter,
		http:    httpClient,
		retry:   retry,
		logger:  logger,
		sleep:   sleepContext,
	}, nil
}

// Execute issues one API call and returns the raw response body (nil for
// empty bodies such as 204). Outcome handling:
//
//	2xx          -> body returned as-is
//	401          -> token invalidated, call retried exactly once
//	429          -> Retry-After honored, bounded retries, then RateLimitError
//	5xx, network -> bounded exponential backoff, then TransientError
//	other 4xx    -> no retry; Validation/NotFound/Permission error
//
// Every attempt consumes one rate-limit slot, failures included, because
// failed attempts still hit the remote service. POST/PATCH retries under
// 5xx can duplicate side effects; the API offers no idempotency keys and
// the integration accepts that trade-off.
func (c *Client) Execute(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	target := *c.base
	target.Path = strings.TrimRight(target.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	transientFailures := 0
	refreshed := false

	for {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Domain", c.domain)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			transientFailures++
			if transientFailures >= c.retry.MaxAttempts {
				return nil, &TransientError{Attempts: transientFailures, Message: err.Error()}
			}
			wait := c.retry.delay(transientFailures)
			c.logger.Warn("iplicit request failed, retrying",
				"method", method, "path", path, "error", err, "backoff", wait)
			if serr := c.sleep(ctx, wait); serr != nil {
				return nil, serr
			}
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			raw = nil
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
				return nil, nil
			}
			return raw, nil

		case resp.StatusCode == http.StatusUnauthorized:
			if !refreshed {
				refreshed = true
				c.tokens.Invalidate()
				c.logger.Info("iplicit returned 401, refreshing session and retrying",
					"method", method, "path", path)
				continue
			}
			return nil, &AuthError{Status: resp.StatusCode, Message: truncate(raw)}

		case resp.StatusCode == http.StatusTooManyRequests:
			transientFailures++
			wait := retryAfter(resp.Header)
			if wait <= 0 {
				wait = c.retry.delay(transientFailures)
			}
			if transientFailures >= c.retry.MaxAttempts {
				return nil, &RateLimitError{RetryAfter: wait, Upstream: true}
			}
			c.logger.Warn("iplicit rate limited upstream, backing off",
				"method", method, "path", path, "wait", wait)
			if serr := c.sleep(ctx, wait); serr != nil {
				return nil, serr
			}
			continue

		case resp.StatusCode >= 500:
			transientFailures++
			if transientFailures >= c.retry.MaxAttempts {
				return nil, &TransientError{
					Status:   resp.StatusCode,
					Attempts: transientFailures,
					Message:  truncate(raw),
				}
			}
			wait := c.retry.delay(transientFailures)
			c.logger.Warn("iplicit server error, retrying",
				"method", method, "path", path, "status", resp.StatusCode, "backoff", wait)
			if serr := c.sleep(ctx, wait); serr != nil {
				return nil, serr
			}
			continue

		case resp.StatusCode == http.StatusForbidden:
			return nil, &PermissionError{Message: truncate(raw)}

		case resp.StatusCode == http.StatusNotFound:
			return nil, &NotFoundError{Ref: path}

		case resp.StatusCode == http.StatusMethodNotAllowed:
			return nil, &ValidationError{
				Status:  resp.StatusCode,
				Message: fmt.Sprintf("%s not supported for %s", method, path),
			}

		default:
			return nil, newValidationError(resp.StatusCode, raw)
		}
	}
}

// newValidationError parses the API's field-error shape when present.
func newValidationError(status int, raw []byte) *ValidationError {
	verr := &ValidationError{Status: status, Message: truncate(raw)}
	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Errors) > 0 {
		verr.Fields = body.Errors
	}
	return verr
}

// retryAfter reads a Retry-After hint in seconds, 0 when absent or unusable.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// truncate renders an upstream body for inclusion in an error message.
func truncate(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

// sleepContext sleeps for d, honoring context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
