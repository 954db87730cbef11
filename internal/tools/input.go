// ABOUTME: Shared input parsing helpers for tool handlers.
// ABOUTME: Applies the catalog defaults (limit 50, markdown output).

package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qlickxl/iplicit-mcp-server/internal/format"
)

// listOptions are the paging/format fields every search tool shares.
type listOptions struct {
	Limit  int    `json:"limit"`
	Format string `json:"format"`
}

func (o *listOptions) normalize() {
	if o.Limit <= 0 {
		o.Limit = defaultLimit
	}
	if o.Format == "" {
		o.Format = format.Markdown
	}
}

// parseInput unmarshals tool arguments into a typed input struct. Empty
// input is valid for tools whose fields are all optional.
func parseInput(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

func normFormat(f string) string {
	if f == "" {
		return format.Markdown
	}
	return f
}

func clamp(n, cap int) int {
	if n > cap {
		return cap
	}
	return n
}

// matchesTerm reports whether any of the values contains term,
// case-insensitively.
func matchesTerm(term string, values ...string) bool {
	term = strings.ToLower(term)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}
