// ABOUTME: Entry point for the iplicit MCP server
// ABOUTME: Bridges conversational agents to the iplicit accounting API

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/qlickxl/iplicit-mcp-server/internal/auth"
	"github.com/qlickxl/iplicit-mcp-server/internal/config"
	"github.com/qlickxl/iplicit-mcp-server/internal/iplicit"
	"github.com/qlickxl/iplicit-mcp-server/internal/mcp"
	"github.com/qlickxl/iplicit-mcp-server/internal/ratelimit"
	"github.com/qlickxl/iplicit-mcp-server/internal/session"
	"github.com/qlickxl/iplicit-mcp-server/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _       _ _      _ _
 (_)_ __ | (_) ___(_) |_      _ __ ___   ___ _ __
 | | '_ \| | |/ __| | __|____| '_ ' _ \ / __| '_ \
 | | |_) | | | (__| | ||_____| | | | | | (__| |_) |
 |_| .__/|_|_|\___|_|\__|    |_| |_| |_|\___| .__/
   |_|                                      |_|
`

// getConfigPath returns the path to the server config file.
// Priority: IPLICIT_MCP_CONFIG env var > XDG_CONFIG_HOME/iplicit-mcp/config.yaml > ~/.config/iplicit-mcp/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("IPLICIT_MCP_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "iplicit-mcp", "config.yaml")
}

func main() {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch command {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fmt.Println("Usage: iplicit-mcp [serve|health]")
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the config path and loads it. A missing file is fine:
// the server can run entirely from IPLICIT_* environment variables.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if configPath == "" {
		fmt.Println("Config:   (environment only)")
	} else {
		fmt.Printf("Config:   %s\n", configPath)
	}
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Upstream: %s ", cfg.Iplicit.BaseURL)
	cyan.Print(cfg.Iplicit.Domain)
	fmt.Println()
	if cfg.Auth.Require {
		green.Print("    ▶ ")
		yellow.Println("Auth:     bearer token required")
	}
	fmt.Println()

	logger.Info("starting iplicit-mcp",
		"http_addr", cfg.Server.HTTPAddr,
		"base_url", cfg.Iplicit.BaseURL,
		"domain", cfg.Iplicit.Domain,
	)

	server, err := buildServer(cfg, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

// buildServer wires the full stack: token manager, rate limiter, transport,
// resolver, writer, tool catalog, and the MCP endpoint.
func buildServer(cfg *config.Config, logger *slog.Logger) (http.Handler, error) {
	httpClient := &http.Client{Timeout: cfg.Iplicit.RequestTimeout}

	authenticator, err := session.NewAPIAuthenticator(
		cfg.Iplicit.BaseURL,
		cfg.Iplicit.Domain,
		cfg.Iplicit.Username,
		cfg.Iplicit.APIKey,
		httpClient,
	)
	if err != nil {
		return nil, fmt.Errorf("configuring authenticator: %w", err)
	}

	tokens := session.NewManager(session.Config{
		Authenticator: authenticator,
		Margin:        cfg.Iplicit.TokenMargin,
		Logger:        logger,
	})

	limiter := ratelimit.New(ratelimit.Config{
		Capacity: cfg.RateLimit.Capacity,
		Window:   cfg.RateLimit.Window,
		Blocking: true,
	})

	client, err := iplicit.NewClient(iplicit.ClientConfig{
		BaseURL:    cfg.Iplicit.BaseURL,
		Domain:     cfg.Iplicit.Domain,
		Tokens:     tokens,
		Limiter:    limiter,
		HTTPClient: httpClient,
		Retry: iplicit.RetryPolicy{
			MaxAttempts: cfg.Iplicit.Retry.MaxAttempts,
			BaseDelay:   cfg.Iplicit.Retry.BaseDelay,
			Multiplier:  cfg.Iplicit.Retry.Multiplier,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	resolver := iplicit.NewResolver(client, logger)
	writer := iplicit.NewWriter(client, logger)

	registry := tools.NewRegistry(logger)
	service := tools.NewService(client, resolver, writer, logger)
	if err := service.RegisterAll(registry); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Tools:         registry,
		Logger:        logger,
		TokenVerifier: verifier,
		RequireAuth:   cfg.Auth.Require,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	mux := http.NewServeMux()
	mcpServer.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	return mux, nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
