// ABOUTME: Authentication lifecycle for the iplicit API session token.
// ABOUTME: Single shared credential, refreshed near expiry, single-flight under bursts.

// Package session manages the iplicit session token: acquisition, expiry
// tracking with a safety margin, and coordinated refresh so concurrent
// callers never issue duplicate authentication exchanges.
package session
