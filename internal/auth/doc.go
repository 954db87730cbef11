// ABOUTME: Bearer-token authentication for the MCP HTTP endpoint
// ABOUTME: HS256 JWTs with a shared secret from configuration

// Package auth verifies bearer tokens presented by MCP clients.
package auth
