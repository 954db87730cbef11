// ABOUTME: Normalizes the two collection shapes the iplicit API returns.
// ABOUTME: Bare arrays and {"items": [...]} wrappers both become []Resource.

package iplicit

import (
	"bytes"
	"encoding/json"
)

// Resource is one remote entity as the API returned it. The core layer is
// domain-opaque: it never interprets fields beyond "id" and, for documents,
// the numeric "status".
type Resource map[string]any

// ID returns the resource identifier, or "" when absent.
func (r Resource) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Status returns the document's numeric status code and whether one was
// present. Status codes are opaque integers to this layer (2=draft and
// 160=posted are interpreted by callers, not here).
func (r Resource) Status() (int, bool) {
	switch v := r["status"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// Page is a normalized collection response.
type Page struct {
	Items      []Resource
	TotalCount int
}

// NormalizeCollection converts a raw list response into a flat ordered slice.
// The API returns either a bare array or an object wrapping the array in an
// "items" field; anything else is contract drift and yields *ShapeError.
// Individual resources are never mutated.
func NormalizeCollection(raw json.RawMessage) ([]Resource, error) {
	page, err := NormalizePage(raw)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// NormalizePage is NormalizeCollection plus the wrapper's totalCount when
// present. A bare array's TotalCount is its length.
func NormalizePage(raw json.RawMessage) (Page, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Page{}, &ShapeError{Got: "empty body"}
	}

	switch trimmed[0] {
	case '[':
		var items []Resource
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Page{}, &ShapeError{Got: "malformed array: " + err.Error()}
		}
		return Page{Items: items, TotalCount: len(items)}, nil

	case '{':
		var wrapper struct {
			Items      *[]Resource `json:"items"`
			TotalCount *int        `json:"totalCount"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return Page{}, &ShapeError{Got: "malformed object: " + err.Error()}
		}
		if wrapper.Items == nil {
			return Page{}, &ShapeError{Got: "object without items field"}
		}
		page := Page{Items: *wrapper.Items, TotalCount: len(*wrapper.Items)}
		if wrapper.TotalCount != nil {
			page.TotalCount = *wrapper.TotalCount
		}
		return page, nil

	default:
		return Page{}, &ShapeError{Got: "scalar " + summarize(trimmed)}
	}
}

// DecodeResource unmarshals a single-object response.
func DecodeResource(raw json.RawMessage) (Resource, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ShapeError{Got: "expected object, got " + summarize(trimmed)}
	}
	var res Resource
	if err := json.Unmarshal(trimmed, &res); err != nil {
		return nil, &ShapeError{Got: "malformed object: " + err.Error()}
	}
	return res, nil
}

// summarize truncates a raw body for error messages.
func summarize(raw []byte) string {
	const max = 60
	if len(raw) == 0 {
		return "empty body"
	}
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
