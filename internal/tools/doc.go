// Package tools defines the tool catalog exposed to the agent and the
// handlers behind it. Each tool takes raw JSON arguments, runs against the
// iplicit request layer, and renders its result as JSON or Markdown text.
package tools
