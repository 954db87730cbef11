// ABOUTME: Production Authenticator against the iplicit identity endpoint.
// ABOUTME: Exchanges username + API key for a session token and its expiry.

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qlickxl/iplicit-mcp-server/internal/iplicit"
)

// fallbackTokenTTL is assumed when the identity endpoint omits tokenDue.
const fallbackTokenTTL = 30 * time.Minute

// APIAuthenticator authenticates against POST {base}/session/create/api.
type APIAuthenticator struct {
	BaseURL  string
	Domain   string
	Username string
	APIKey   string
	Client   *http.Client

	now func() time.Time
}

// NewAPIAuthenticator builds an authenticator for the given tenant.
func NewAPIAuthenticator(baseURL, domain, username, apiKey string, client *http.Client) (*APIAuthenticator, error) {
	if domain == "" || username == "" || apiKey == "" {
		return nil, errors.New("domain, username and API key are all required")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIAuthenticator{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Domain:   domain,
		Username: username,
		APIKey:   apiKey,
		Client:   client,
		now:      time.Now,
	}, nil
}

// Authenticate exchanges the API key for a session token. Failures carry
// the upstream status and message as *iplicit.AuthError.
func (a *APIAuthenticator) Authenticate(ctx context.Context) (Credential, error) {
	payload, err := json.Marshal(map[string]string{
		"username":   a.Username,
		"userApiKey": a.APIKey,
	})
	if err != nil {
		return Credential{}, fmt.Errorf("encoding session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.BaseURL+"/session/create/api", bytes.NewReader(payload))
	if err != nil {
		return Credential{}, fmt.Errorf("building session request: %w", err)
	}
	req.Header.Set("Domain", a.Domain)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Credential{}, ctx.Err()
		}
		return Credential{}, &iplicit.AuthError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Credential{}, &iplicit.AuthError{
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(body)),
		}
	}

	var result struct {
		SessionToken string `json:"sessionToken"`
		TokenDue     string `json:"tokenDue"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return Credential{}, &iplicit.AuthError{Message: "malformed session response: " + err.Error()}
	}
	if result.SessionToken == "" {
		return Credential{}, &iplicit.AuthError{Message: "no session token in response"}
	}

	expiry := a.now().Add(fallbackTokenTTL)
	if result.TokenDue != "" {
		if due, perr := time.Parse(time.RFC3339, result.TokenDue); perr == nil {
			expiry = due
		}
	}

	return Credential{Token: result.SessionToken, ExpiresAt: expiry}, nil
}
