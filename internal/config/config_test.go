// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers defaults, env expansion, duration parsing, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("IPLICIT_DOMAIN", "acme")
	t.Setenv("IPLICIT_USERNAME", "finance-bot")
	t.Setenv("IPLICIT_API_KEY", "key-123")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8037", cfg.Server.HTTPAddr)
	assert.Equal(t, "https://api.iplicit.com/api", cfg.Iplicit.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Iplicit.RequestTimeout)
	assert.Equal(t, time.Minute, cfg.Iplicit.TokenMargin)
	assert.Equal(t, 3, cfg.Iplicit.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Iplicit.Retry.BaseDelay)
	assert.Equal(t, 2.0, cfg.Iplicit.Retry.Multiplier)
	assert.Equal(t, 1500, cfg.RateLimit.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOnlyCredentials(t *testing.T) {
	t.Setenv("IPLICIT_DOMAIN", "acme")
	t.Setenv("IPLICIT_USERNAME", "finance-bot")
	t.Setenv("IPLICIT_API_KEY", "key-123")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Iplicit.Domain)
	assert.Equal(t, "finance-bot", cfg.Iplicit.Username)
	assert.Equal(t, "key-123", cfg.Iplicit.APIKey)
}

func TestLoad_FileWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_IPLICIT_KEY", "expanded-key")

	path := writeConfig(t, `
server:
  http_addr: "0.0.0.0:9000"
iplicit:
  domain: acme
  username: finance-bot
  api_key: ${TEST_IPLICIT_KEY}
  request_timeout: 45s
  retry:
    max_attempts: 5
    base_delay: 500ms
    multiplier: 3
rate_limit:
  capacity: 100
  window: 1m
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, "expanded-key", cfg.Iplicit.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Iplicit.RequestTimeout)
	assert.Equal(t, 5, cfg.Iplicit.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Iplicit.Retry.BaseDelay)
	assert.Equal(t, 100, cfg.RateLimit.Capacity)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_UnsetEnvVarExpandsEmpty(t *testing.T) {
	t.Setenv("IPLICIT_DOMAIN", "")
	t.Setenv("IPLICIT_USERNAME", "")
	t.Setenv("IPLICIT_API_KEY", "")

	path := writeConfig(t, `
iplicit:
  domain: acme
  username: finance-bot
  api_key: ${DEFINITELY_NOT_SET_ANYWHERE}
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
iplicit:
  domain: acme
  username: finance-bot
  api_key: key
  request_timeout: soon
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request_timeout")
}

func TestValidate_MissingCredentials(t *testing.T) {
	t.Setenv("IPLICIT_DOMAIN", "")
	t.Setenv("IPLICIT_USERNAME", "")
	t.Setenv("IPLICIT_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "domain")
}

func TestValidate_AuthRequiresSecret(t *testing.T) {
	path := writeConfig(t, `
iplicit:
  domain: acme
  username: finance-bot
  api_key: key
auth:
  require: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
