// ABOUTME: Configuration package for iplicit-mcp
// ABOUTME: YAML with ${ENV} expansion, read once at startup, no hot reload

// Package config loads and validates the server configuration.
package config
