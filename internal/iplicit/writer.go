// ABOUTME: Two-phase write orchestration: create/update/transition then read back.
// ABOUTME: Also holds the process-lifetime cache of API-mandatory defaults.

package iplicit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Document workflow actions accepted by Transition.
const (
	ActionPost    = "post"
	ActionApprove = "approve"
	ActionReverse = "reverse"
)

// Writer performs write operations against the API. Creation responses
// carry only an identifier and update/transition responses are empty, so
// every write is followed by one GET of the affected resource: callers
// always receive a fully materialized Resource, never a partial one.
//
// State constraints (draft-only updates, posted-only reversals) are not
// replicated locally; the remote API's own validation is surfaced as
// *BusinessRuleError so local and remote rules can never drift apart.
type Writer struct {
	client *Client
	logger *slog.Logger

	// defaults cache: populated once per process by the first caller that
	// needs a docTypeId or legalEntityId, never invalidated. These values
	// effectively never change within a session; a fresh process re-fetches.
	group singleflight.Group
	mu    sync.Mutex
	cache map[string]string
}

// NewWriter creates a write orchestrator on top of the given transport.
func NewWriter(client *Client, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		client: client,
		logger: logger,
		cache:  make(map[string]string),
	}
}

// Create POSTs payload to the kind's endpoint and fetches the resulting
// resource. If the follow-up fetch fails after a successful create, the
// returned error is *ConfirmedWriteError carrying the new resource's id:
// the write itself succeeded.
func (w *Writer) Create(ctx context.Context, kind string, payload map[string]any) (Resource, error) {
	raw, err := w.client.Execute(ctx, "POST", kind, nil, payload)
	if err != nil {
		return nil, err
	}

	// Some endpoints already return the full object.
	if res, derr := DecodeResource(raw); derr == nil {
		if res.ID() != "" && len(res) > 1 {
			return res, nil
		}
	}

	id, err := extractID(raw)
	if err != nil {
		return nil, err
	}

	res, ferr := w.fetch(ctx, kind, id)
	if ferr != nil {
		return nil, &ConfirmedWriteError{Kind: kind, ID: id, Cause: ferr}
	}
	w.logger.Info("created resource", "kind", kind, "id", id)
	return res, nil
}

// Update PATCHes the resource and fetches the result. A remote validation
// failure is surfaced as *BusinessRuleError with the upstream message
// verbatim, annotated with the resource's last known status when one can
// still be read.
func (w *Writer) Update(ctx context.Context, kind, id string, payload map[string]any) (Resource, error) {
	if len(payload) == 0 {
		return nil, &ValidationError{Status: 400, Message: "at least one field must be provided to update"}
	}

	_, err := w.client.Execute(ctx, "PATCH", kind+"/"+id, nil, payload)
	if err != nil {
		return nil, w.wrapStateError(ctx, kind, id, err)
	}

	res, ferr := w.fetch(ctx, kind, id)
	if ferr != nil {
		return nil, &ConfirmedWriteError{Kind: kind, ID: id, Cause: ferr}
	}
	return res, nil
}

// Transition runs a document workflow action (post, approve, reverse) and
// fetches the resulting document.
func (w *Writer) Transition(ctx context.Context, id, action string, payload map[string]any) (Resource, error) {
	_, err := w.client.Execute(ctx, "POST", fmt.Sprintf("document/%s/%s", id, action), nil, payload)
	if err != nil {
		return nil, w.wrapStateError(ctx, KindDocument, id, err)
	}

	res, ferr := w.fetch(ctx, KindDocument, id)
	if ferr != nil {
		return nil, &ConfirmedWriteError{Kind: KindDocument, ID: id, Cause: ferr}
	}
	w.logger.Info("document transitioned", "id", id, "action", action)
	return res, nil
}

// DefaultLegalEntity returns the tenant's first legal entity id, cached for
// the life of the process.
func (w *Writer) DefaultLegalEntity(ctx context.Context) (string, error) {
	return w.cached("legalentity", func() (string, error) {
		items, err := w.firstPage(ctx, "legalentity")
		if err != nil {
			return "", err
		}
		if len(items) == 0 || items[0].ID() == "" {
			return "", errors.New("could not determine default legal entity; provide legalEntityId explicitly")
		}
		return items[0].ID(), nil
	})
}

// DefaultDocType returns the default document type id for a document class
// ("PurchaseInvoice" or "SaleInvoice"), cached for the life of the process.
func (w *Writer) DefaultDocType(ctx context.Context, docClass string) (string, error) {
	endpoint := "saleinvoice"
	if docClass == "PurchaseInvoice" {
		endpoint = "purchaseinvoice"
	}
	return w.cached("doctype:"+docClass, func() (string, error) {
		items, err := w.firstPage(ctx, endpoint)
		if err != nil {
			return "", err
		}
		if len(items) > 0 {
			if id, _ := items[0]["docTypeId"].(string); id != "" {
				return id, nil
			}
		}
		return "", fmt.Errorf("could not determine default document type for %s; provide docTypeId explicitly", docClass)
	})
}

// cached runs fetch at most once per key per process, coalescing concurrent
// callers onto one in-flight lookup.
func (w *Writer) cached(key string, fetch func() (string, error)) (string, error) {
	w.mu.Lock()
	if v, ok := w.cache[key]; ok {
		w.mu.Unlock()
		return v, nil
	}
	w.mu.Unlock()

	v, err, _ := w.group.Do(key, func() (any, error) {
		value, err := fetch()
		if err != nil {
			return "", err
		}
		w.mu.Lock()
		w.cache[key] = value
		w.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// firstPage lists one record from an endpoint.
func (w *Writer) firstPage(ctx context.Context, endpoint string) ([]Resource, error) {
	raw, err := w.client.Execute(ctx, "GET", endpoint, url.Values{"maxRecordCount": {"1"}}, nil)
	if err != nil {
		return nil, err
	}
	return NormalizeCollection(raw)
}

// fetch reads back one resource after a write.
func (w *Writer) fetch(ctx context.Context, kind, id string) (Resource, error) {
	raw, err := w.client.Execute(ctx, "GET", kind+"/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	return DecodeResource(raw)
}

// wrapStateError converts a remote validation failure on a state-sensitive
// write into *BusinessRuleError, annotated with the resource's last known
// status when a best-effort read still succeeds. Other errors pass through.
func (w *Writer) wrapStateError(ctx context.Context, kind, id string, err error) error {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return err
	}

	lastStatus := -1
	if res, ferr := w.fetch(ctx, kind, id); ferr == nil {
		if status, ok := res.Status(); ok {
			lastStatus = status
		}
	}
	return &BusinessRuleError{Message: verr.Message, LastStatus: lastStatus, Cause: verr}
}

// extractID pulls the new resource id out of a creation response, which the
// API returns as either a bare JSON string or a small {"id": ...} object.
func extractID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", &ShapeError{Got: "empty creation response"}
	}

	switch trimmed[0] {
	case '"':
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil || id == "" {
			return "", &ShapeError{Got: "malformed creation id " + summarize(trimmed)}
		}
		return id, nil
	case '{':
		res, err := DecodeResource(trimmed)
		if err != nil {
			return "", err
		}
		if id := res.ID(); id != "" {
			return id, nil
		}
		return "", &ShapeError{Got: "creation response without id"}
	default:
		return "", &ShapeError{Got: "creation response " + summarize(trimmed)}
	}
}
