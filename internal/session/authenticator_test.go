// ABOUTME: Tests for the session/create/api authenticator.
// ABOUTME: Validates the wire shape, headers, and auth failure mapping.

package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlickxl/iplicit-mcp-server/internal/iplicit"
)

func TestAuthenticate_ExchangesKeyForToken(t *testing.T) {
	due := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/session/create/api", r.URL.Path)
		assert.Equal(t, "acme", r.Header.Get("Domain"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "finance-bot", body["username"])
		assert.Equal(t, "key-123", body["userApiKey"])

		json.NewEncoder(w).Encode(map[string]string{
			"sessionToken": "sess-abc",
			"tokenDue":     due.Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	a, err := NewAPIAuthenticator(srv.URL, "acme", "finance-bot", "key-123", srv.Client())
	require.NoError(t, err)

	cred, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sess-abc", cred.Token)
	assert.True(t, cred.ExpiresAt.Equal(due))
}

func TestAuthenticate_FallbackTTLWhenTokenDueMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"sessionToken": "sess-abc"})
	}))
	defer srv.Close()

	a, err := NewAPIAuthenticator(srv.URL, "acme", "finance-bot", "key-123", srv.Client())
	require.NoError(t, err)

	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return current }

	cred, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	assert.True(t, cred.ExpiresAt.Equal(current.Add(fallbackTokenTTL)))
}

func TestAuthenticate_RejectionBecomesAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	a, err := NewAPIAuthenticator(srv.URL, "acme", "finance-bot", "bad-key", srv.Client())
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background())
	var aerr *iplicit.AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusUnauthorized, aerr.Status)
	assert.Contains(t, aerr.Message, "invalid api key")
}

func TestAuthenticate_EmptyTokenIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	a, err := NewAPIAuthenticator(srv.URL, "acme", "finance-bot", "key-123", srv.Client())
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background())
	var aerr *iplicit.AuthError
	require.ErrorAs(t, err, &aerr)
}

func TestNewAPIAuthenticator_RequiresAllCredentials(t *testing.T) {
	for name, args := range map[string][3]string{
		"missing domain":   {"", "user", "key"},
		"missing username": {"acme", "", "key"},
		"missing api key":  {"acme", "user", ""},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewAPIAuthenticator("https://api.example.com/api", args[0], args[1], args[2], nil)
			assert.Error(t, err)
		})
	}
}
