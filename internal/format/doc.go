// ABOUTME: Tool-output rendering: JSON passthrough or human-readable Markdown.
// ABOUTME: Currency cells use exact decimal arithmetic, never float formatting.

// Package format turns normalized iplicit resources into the strings tools
// return to the conversational agent.
package format
