// ABOUTME: Client-side compliance with the iplicit API request quota.
// ABOUTME: Sliding-window counting, safe under concurrent acquisition.

// Package ratelimit throttles outbound API calls to stay within the remote
// quota (1500 requests per 5 minutes by default).
package ratelimit
