// ABOUTME: Core request layer for the iplicit accounting API.
// ABOUTME: Transport, response normalization, reference resolution, and write orchestration.

// Package iplicit implements the shared request layer beneath every tool:
// an authenticated, rate-limited, retrying HTTP transport; normalization of
// the API's two collection shapes into one; resolution of human codes to
// identifiers; and the write-then-read orchestration that guarantees write
// callers always see a fully materialized resource.
package iplicit
