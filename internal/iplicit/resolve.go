// ABOUTME: Resolves human-readable codes to iplicit identifiers.
// ABOUTME: UUID-shaped input passes through with zero network calls.

package iplicit

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"
)

// Entity kinds the resolver knows how to look up.
const (
	KindContactAccount = "contactaccount"
	KindDepartment     = "department"
	KindCostCentre     = "costcentre"
	KindProject        = "project"
	KindProduct        = "product"
	KindDocument       = "document"
)

// lookupSpec describes how a kind is searched: which endpoint to list and
// which field carries the human code.
type lookupSpec struct {
	path      string
	codeField string
}

var lookupSpecs = map[string]lookupSpec{
	KindContactAccount: {path: "contactaccount", codeField: "code"},
	KindDepartment:     {path: "department", codeField: "code"},
	KindCostCentre:     {path: "costcentre", codeField: "code"},
	KindProject:        {path: "project", codeField: "code"},
	KindProduct:        {path: "product", codeField: "code"},
	KindDocument:       {path: "document", codeField: "docNo"},
}

// lookupPageSize is how many records one resolution search scans. The API
// has no server-side code filter, so matching happens client-side over the
// first page, matching the integration's documented behavior.
const lookupPageSize = "100"

// Resolver turns identifier-or-code strings into identifiers. Ambiguity is
// an error, never a silent pick.
type Resolver struct {
	client *Client
	logger *slog.Logger
}

// NewResolver creates a resolver on top of the given transport.
func NewResolver(client *Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, logger: logger}
}

// Resolve returns the identifier for ref. A UUID-shaped ref is returned
// unchanged without any network call. Anything else is treated as a human
// code and searched within the given kind: zero matches yields
// *NotFoundError, more than one yields *AmbiguousRefError.
func (r *Resolver) Resolve(ctx context.Context, ref, kind string) (string, error) {
	if _, err := uuid.Parse(ref); err == nil {
		return ref, nil
	}

	spec, ok := lookupSpecs[kind]
	if !ok {
		return "", fmt.Errorf("unknown entity kind %q", kind)
	}

	raw, err := r.client.Execute(ctx, "GET", spec.path,
		url.Values{"maxRecordCount": {lookupPageSize}}, nil)
	if err != nil {
		return "", fmt.Errorf("searching %s for %q: %w", kind, ref, err)
	}

	items, err := NormalizeCollection(raw)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, item := range items {
		if code, _ := item[spec.codeField].(string); code == ref {
			if id := item.ID(); id != "" {
				matches = append(matches, id)
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Kind: kind, Ref: ref}
	case 1:
		r.logger.Debug("resolved code", "kind", kind, "ref", ref, "id", matches[0])
		return matches[0], nil
	default:
		return "", &AmbiguousRefError{Kind: kind, Ref: ref, Candidates: matches}
	}
}
