// ABOUTME: Configuration loading and parsing for iplicit-mcp
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultBaseURL is the production iplicit API root.
const defaultBaseURL = "https://api.iplicit.com/api"

// Config represents the complete iplicit-mcp configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Iplicit   IplicitConfig   `yaml:"iplicit"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the MCP HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// IplicitConfig holds the upstream API connection settings. Credentials are
// typically supplied through ${IPLICIT_*} env expansion in the YAML, or by
// the IPLICIT_* environment variables directly when no file is used.
type IplicitConfig struct {
	BaseURL  string `yaml:"base_url"`
	Domain   string `yaml:"domain"`
	Username string `yaml:"username"`
	APIKey   string `yaml:"api_key"`

	RequestTimeout time.Duration `yaml:"-"`
	TokenMargin    time.Duration `yaml:"-"`

	Retry RetryConfig `yaml:"retry"`

	// Raw string values for YAML unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout"`
	TokenMarginRaw    string `yaml:"token_margin"`
}

// RetryConfig bounds transient-failure retries
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	Multiplier  float64 `yaml:"multiplier"`

	BaseDelay time.Duration `yaml:"-"`

	BaseDelayRaw string `yaml:"base_delay"`
}

// RateLimitConfig holds the client-side quota window
type RateLimitConfig struct {
	Capacity int `yaml:"capacity"`

	Window time.Duration `yaml:"-"`

	WindowRaw string `yaml:"window"`
}

// AuthConfig holds MCP endpoint authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Require   bool   `yaml:"require"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// duration strings are parsed. An empty path yields the defaults plus the
// IPLICIT_* environment variables, so the server can run with no file at all.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaults returns the built-in configuration before any file or env input.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{HTTPAddr: "127.0.0.1:8037"},
		Iplicit: IplicitConfig{
			BaseURL:           defaultBaseURL,
			RequestTimeoutRaw: "30s",
			TokenMarginRaw:    "60s",
			Retry: RetryConfig{
				MaxAttempts:  3,
				Multiplier:   2,
				BaseDelayRaw: "1s",
			},
		},
		RateLimit: RateLimitConfig{
			Capacity:  1500,
			WindowRaw: "5m",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// applyEnv fills credential fields left empty by the file from the
// environment, matching the original env-only deployment style.
func applyEnv(cfg *Config) {
	if cfg.Iplicit.Domain == "" {
		cfg.Iplicit.Domain = os.Getenv("IPLICIT_DOMAIN")
	}
	if cfg.Iplicit.Username == "" {
		cfg.Iplicit.Username = os.Getenv("IPLICIT_USERNAME")
	}
	if cfg.Iplicit.APIKey == "" {
		cfg.Iplicit.APIKey = os.Getenv("IPLICIT_API_KEY")
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Iplicit.Domain == "" {
		return fmt.Errorf("iplicit.domain is required (or set IPLICIT_DOMAIN)")
	}
	if c.Iplicit.Username == "" {
		return fmt.Errorf("iplicit.username is required (or set IPLICIT_USERNAME)")
	}
	if c.Iplicit.APIKey == "" {
		return fmt.Errorf("iplicit.api_key is required (or set IPLICIT_API_KEY)")
	}
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Auth.Require && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.require is enabled")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Iplicit.RequestTimeoutRaw != "" {
		cfg.Iplicit.RequestTimeout, err = time.ParseDuration(cfg.Iplicit.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Iplicit.RequestTimeoutRaw, err)
		}
	}

	if cfg.Iplicit.TokenMarginRaw != "" {
		cfg.Iplicit.TokenMargin, err = time.ParseDuration(cfg.Iplicit.TokenMarginRaw)
		if err != nil {
			return fmt.Errorf("parsing token_margin %q: %w", cfg.Iplicit.TokenMarginRaw, err)
		}
	}

	if cfg.Iplicit.Retry.BaseDelayRaw != "" {
		cfg.Iplicit.Retry.BaseDelay, err = time.ParseDuration(cfg.Iplicit.Retry.BaseDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing retry.base_delay %q: %w", cfg.Iplicit.Retry.BaseDelayRaw, err)
		}
	}

	if cfg.RateLimit.WindowRaw != "" {
		cfg.RateLimit.Window, err = time.ParseDuration(cfg.RateLimit.WindowRaw)
		if err != nil {
			return fmt.Errorf("parsing rate_limit.window %q: %w", cfg.RateLimit.WindowRaw, err)
		}
	}

	return nil
}
