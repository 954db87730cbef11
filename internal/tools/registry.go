// ABOUTME: In-process tool registry: definitions plus handlers, dispatched by name.
// ABOUTME: Tools are registered once at startup and listed/called by the MCP server.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrToolNotFound is returned when a call names an unregistered tool.
var ErrToolNotFound = errors.New("tool not found")

// HandlerFunc executes one tool call. The returned string is the text
// content handed back to the agent.
type HandlerFunc func(ctx context.Context, input json.RawMessage) (string, error)

// Tool pairs an MCP tool definition with its handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     HandlerFunc
}

// Registry holds the tool catalog.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	tools map[string]*Tool
	order []string // registration order, used for stable listing
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		tools:  make(map[string]*Tool),
	}
}

// Register adds a tool. Duplicate names are an error.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return errors.New("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	r.logger.Debug("tool registered", "name", t.Name)
	return nil
}

// List returns all tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Call dispatches an invocation to the named tool.
func (r *Registry) Call(ctx context.Context, name string, input json.RawMessage) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t.Handler(ctx, input)
}
