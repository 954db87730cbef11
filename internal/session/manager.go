// ABOUTME: Session token lifecycle: holds the current credential and refreshes on demand.
// ABOUTME: Concurrent callers share a single in-flight refresh via singleflight.

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Credential is a bearer token plus its expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Authenticator performs the credentials-for-token exchange against the
// identity endpoint.
type Authenticator interface {
	Authenticate(ctx context.Context) (Credential, error)
}

// DefaultMargin is how close to expiry a token may get before it is
// refreshed ahead of use.
const DefaultMargin = time.Minute

// defaultRetryDelay is the pause before the single refresh retry. Refresh
// never retries more than once so a down identity service isn't hammered.
const defaultRetryDelay = time.Second

// Manager owns the process's one shared credential. Token returns a value
// valid for at least the safety margin, refreshing first when the current
// one is absent, stale, or within the margin of expiry. A burst of callers
// that all observe an expiring token triggers exactly one authentication
// exchange; late arrivals wait on it and share its outcome.
type Manager struct {
	auth   Authenticator
	margin time.Duration
	logger *slog.Logger

	mu   sync.Mutex
	cred Credential

	group singleflight.Group

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Config configures a Manager.
type Config struct {
	Authenticator Authenticator
	Margin        time.Duration // 0 means DefaultMargin
	Logger        *slog.Logger
}

// NewManager creates a token manager. No network call happens until the
// first Token call.
func NewManager(cfg Config) *Manager {
	margin := cfg.Margin
	if margin <= 0 {
		margin = DefaultMargin
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		auth:   cfg.Authenticator,
		margin: margin,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Token returns a usable bearer token, refreshing synchronously if needed.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if tok, ok := m.current(); ok {
		return tok, nil
	}

	v, err, _ := m.group.Do("refresh", func() (any, error) {
		// A waiter that queued behind a completed refresh can use its result.
		if tok, ok := m.current(); ok {
			return tok, nil
		}
		cred, err := m.refresh(ctx)
		if err != nil {
			return "", err
		}
		m.mu.Lock()
		m.cred = cred
		m.mu.Unlock()
		m.logger.Info("iplicit session refreshed", "expires_at", cred.ExpiresAt)
		return cred.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate discards the current credential so the next Token call
// refreshes. Used by the transport when the API rejects a token with 401.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cred = Credential{}
	m.mu.Unlock()
}

// current returns the cached token when it is still comfortably valid.
func (m *Manager) current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred.Token == "" {
		return "", false
	}
	if !m.now().Before(m.cred.ExpiresAt.Add(-m.margin)) {
		return "", false
	}
	return m.cred.Token, true
}

// refresh performs the authentication exchange with one bounded retry.
func (m *Manager) refresh(ctx context.Context) (Credential, error) {
	cred, err := m.auth.Authenticate(ctx)
	if err == nil {
		return cred, nil
	}
	if ctx.Err() != nil {
		return Credential{}, ctx.Err()
	}

	m.logger.Warn("session refresh failed, retrying once", "error", err)
	if serr := m.sleep(ctx, defaultRetryDelay); serr != nil {
		return Credential{}, serr
	}
	return m.auth.Authenticate(ctx)
}

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
