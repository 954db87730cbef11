// ABOUTME: Typed error taxonomy for iplicit API failures.
// ABOUTME: Callers classify outcomes with errors.As rather than parsing messages.

package iplicit

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AuthError indicates the credential could not be obtained or refreshed,
// or that the API rejected our token even after a forced refresh.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("iplicit authentication failed (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("iplicit authentication failed: %s", e.Message)
}

// RateLimitError indicates a quota was hit, either locally (the sliding
// window limiter in non-blocking mode) or upstream (HTTP 429 after retries).
type RateLimitError struct {
	RetryAfter time.Duration
	Upstream   bool
}

func (e *RateLimitError) Error() string {
	src := "local"
	if e.Upstream {
		src = "upstream"
	}
	return fmt.Sprintf("iplicit %s rate limit exceeded, retry after %s", src, e.RetryAfter)
}

// TransientError indicates a network failure or 5xx that persisted through
// the bounded retry budget. The call may be safely retried later.
type TransientError struct {
	Status   int // 0 for pure network failures
	Attempts int
	Message  string
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("iplicit server error %d after %d attempts: %s", e.Status, e.Attempts, e.Message)
	}
	return fmt.Sprintf("iplicit unreachable after %d attempts: %s", e.Attempts, e.Message)
}

// ValidationError carries a 400 (or 405) response verbatim, with field-level
// detail when the API returned its {"errors": {field: [messages]}} shape.
type ValidationError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("iplicit rejected the request (%d): %s", e.Status, e.Message)
	}
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	var b strings.Builder
	fmt.Fprintf(&b, "iplicit rejected the request (%d):", e.Status)
	for _, f := range names {
		fmt.Fprintf(&b, "\n  %s: %s", f, strings.Join(e.Fields[f], ", "))
	}
	return b.String()
}

// NotFoundError covers both HTTP 404 and a code that resolved to nothing.
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e *NotFoundError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("iplicit resource %q not found", e.Ref)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.Ref)
}

// AmbiguousRefError is returned when a human code matches more than one
// entity. The resolver never picks one silently; a wrong pick against a
// financial document is worse than asking the caller to disambiguate.
type AmbiguousRefError struct {
	Kind       string
	Ref        string
	Candidates []string
}

func (e *AmbiguousRefError) Error() string {
	return fmt.Sprintf("%s %q matches %d records: %s",
		e.Kind, e.Ref, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

// PermissionError carries a 403 verbatim. Never retried.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("iplicit denied access: %s", e.Message)
}

// BusinessRuleError wraps a remote-enforced state constraint violation,
// e.g. updating a document that is no longer in draft. The remote message is
// preserved verbatim; LastStatus is the document's last known numeric status
// when the orchestrator could fetch it (-1 when unknown). Cause holds the
// underlying *ValidationError so field-level detail stays reachable through
// errors.As.
type BusinessRuleError struct {
	Message    string
	LastStatus int
	Cause      error
}

func (e *BusinessRuleError) Error() string {
	if e.LastStatus >= 0 {
		return fmt.Sprintf("iplicit business rule violation (document status %d): %s", e.LastStatus, e.Message)
	}
	return fmt.Sprintf("iplicit business rule violation: %s", e.Message)
}

func (e *BusinessRuleError) Unwrap() error { return e.Cause }

// ShapeError signals that a response matched neither known collection shape.
// It indicates contract drift upstream and is logged distinctly.
type ShapeError struct {
	Got string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected iplicit response shape: %s", e.Got)
}

// ConfirmedWriteError reports that a write call succeeded but the follow-up
// fetch of the resulting resource failed. The write itself must not be
// treated as failed: ID names the resource that now exists remotely.
type ConfirmedWriteError struct {
	Kind  string
	ID    string
	Cause error
}

func (e *ConfirmedWriteError) Error() string {
	return fmt.Sprintf("%s %s was written but could not be read back: %v", e.Kind, e.ID, e.Cause)
}

func (e *ConfirmedWriteError) Unwrap() error { return e.Cause }
