// ABOUTME: Tests for the retrying transport.
// ABOUTME: Covers the 401 refresh-once path, retry budgets, and error mapping.

package iplicit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTokens hands out sequenced tokens and records invalidations.
type stubTokens struct {
	serial      int32
	invalidated int32
}

func (s *stubTokens) Token(ctx context.Context) (string, error) {
	return "tok-" + string(rune('0'+atomic.LoadInt32(&s.serial))), nil
}

func (s *stubTokens) Invalidate() {
	atomic.AddInt32(&s.invalidated, 1)
	atomic.AddInt32(&s.serial, 1)
}

// stubLimiter counts slot acquisitions and never blocks.
type stubLimiter struct {
	acquired int32
}

func (s *stubLimiter) Acquire(ctx context.Context) error {
	atomic.AddInt32(&s.acquired, 1)
	return ctx.Err()
}

func newTestClient(t *testing.T, url string) (*Client, *stubTokens, *stubLimiter) {
	t.Helper()
	tokens := &stubTokens{}
	limiter := &stubLimiter{}
	c, err := NewClient(ClientConfig{
		BaseURL: url,
		Domain:  "acme",
		Tokens:  tokens,
		Limiter: limiter,
		Retry:   RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2},
	})
	require.NoError(t, err)
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c, tokens, limiter
}

func TestExecute_SendsAuthAndDomainHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-0", r.Header.Get("Authorization"))
		assert.Equal(t, "acme", r.Header.Get("Domain"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "/api/document", r.URL.Path)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, _, limiter := newTestClient(t, srv.URL+"/api")
	raw, err := c.Execute(context.Background(), "GET", "document", nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
	assert.EqualValues(t, 1, atomic.LoadInt32(&limiter.acquired))
}

func TestExecute_EmptyBodyReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, _, _ := newTestClient(t, srv.URL)
	raw, err := c.Execute(context.Background(), "PATCH", "document/abc", nil, map[string]any{"description": "x"})
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestExecute_401RefreshesTokenAndRetriesOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			http.Error(w, "token expired", http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"), "retry must carry the refreshed token")
		w.Write([]byte(`{"id":"d1"}`))
	}))
	defer srv.Close()

	c, tokens, limiter := newTestClient(t, srv.URL)
	raw, err := c.Execute(context.Background(), "GET", "document/d1", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "d1")
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokens.invalidated))
	assert.EqualValues(t, 2, atomic.LoadInt32(&limiter.acquired), "the retry consumes its own slot")
}

func TestExecute_Second401IsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "still unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, tokens, _ := newTestClient(t, srv.URL)
	_, err := c.Execute(context.Background(), "GET", "document", nil, nil)

	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusUnauthorized, aerr.Status)
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokens.invalidated), "refresh happens exactly once")
}

func TestExecute_ServerErrorsExhaustRetryBudget(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "upstream exploded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var slept []time.Duration
	c, _, _ := newTestClient(t, srv.URL)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := c.Execute(context.Background(), "GET", "document", nil, nil)

	var terr *TransientError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusServiceUnavailable, terr.Status)
	assert.Equal(t, 3, terr.Attempts)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits), "a fourth attempt is never made")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept, "exponential backoff between attempts")
}

func TestExecute_RecoversWithinRetryBudget(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, _, _ := newTestClient(t, srv.URL)
	raw, err := c.Execute(context.Background(), "GET", "document", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ok")
}

func TestExecute_429HonorsRetryAfterThenGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var slept []time.Duration
	c, _, _ := newTestClient(t, srv.URL)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := c.Execute(context.Background(), "GET", "document", nil, nil)

	var rerr *RateLimitError
	require.ErrorAs(t, err, &rerr)
	assert.True(t, rerr.Upstream)
	assert.Equal(t, 7*time.Second, rerr.RetryAfter)
	assert.Equal(t, []time.Duration{7 * time.Second, 7 * time.Second}, slept)
}

func TestExecute_400CarriesFieldErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"errors": map[string][]string{
				"docDate": {"docDate is required"},
				"details": {"at least one line is required"},
			},
		})
	}))
	defer srv.Close()

	c, _, _ := newTestClient(t, srv.URL)
	_, err := c.Execute(context.Background(), "POST", "purchaseinvoice", nil, map[string]any{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, http.StatusBadRequest, verr.Status)
	assert.Equal(t, []string{"docDate is required"}, verr.Fields["docDate"])
	assert.Contains(t, verr.Error(), "at least one line is required")
}

func TestExecute_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"403 is a permission error", http.StatusForbidden, func(t *testing.T, err error) {
			var perr *PermissionError
			assert.ErrorAs(t, err, &perr)
		}},
		{"404 is not found", http.StatusNotFound, func(t *testing.T, err error) {
			var nerr *NotFoundError
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, "document/missing", nerr.Ref)
		}},
		{"405 is a validation error", http.StatusMethodNotAllowed, func(t *testing.T, err error) {
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, http.StatusMethodNotAllowed, verr.Status)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			c, _, _ := newTestClient(t, srv.URL)
			_, err := c.Execute(context.Background(), "GET", "document/missing", nil, nil)
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestExecute_LimiterRejectionShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the server")
	}))
	defer srv.Close()

	c, _, _ := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Execute(ctx, "GET", "document", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, p.delay(1))
	assert.Equal(t, 2*time.Second, p.delay(2))
	assert.Equal(t, 4*time.Second, p.delay(3))
}
