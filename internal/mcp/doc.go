// Package mcp implements the Model Context Protocol Streamable HTTP
// transport over a single /mcp endpoint.
//
// The server handles the JSON-RPC 2.0 methods initialize, tools/list and
// tools/call, issues an Mcp-Session-Id on initialize, and terminates
// sessions on DELETE. Server-initiated SSE streams are not supported; every
// response is a single JSON body.
//
// Tool failures that the calling agent can act on (upstream validation
// rejections, ambiguous references, rate limiting) are returned in-band as
// tool results with isError set, keeping the upstream messages intact.
// Protocol-level problems (unknown tool, cancelled request) become JSON-RPC
// errors.
package mcp
