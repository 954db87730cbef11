// ABOUTME: Tests for tool output rendering.
// ABOUTME: Covers money formatting, date normalization, and both output modes.

package format

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlickxl/iplicit-mcp-server/internal/iplicit"
)

func TestMoney(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"float", 1234.5, "£1,234.50"},
		{"float with cents", 0.07, "£0.07"},
		{"int", 1000000, "£1,000,000.00"},
		{"negative", -42.1, "£-42.10"},
		{"string amount", "99.999", "£100.00"},
		{"json number", json.Number("250"), "£250.00"},
		{"unparseable string", "free", "free"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Money(tc.in))
		})
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2026-03-31", formatDate("2026-03-31T00:00:00Z"))
	assert.Equal(t, "2026-03-31", formatDate("2026-03-31T14:22:05"))
	assert.Equal(t, "2026-03-31", formatDate("2026-03-31"))
	assert.Equal(t, "next week", formatDate("next week"), "unparseable dates pass through")
}

func TestPage_MarkdownDocumentTable(t *testing.T) {
	page := iplicit.Page{
		Items: []iplicit.Resource{
			{
				"docClass": "PurchaseInvoice",
				"docNo":    "PIN-0042",
				"docDate":  "2026-03-01T00:00:00Z",
				"total":    1250.0,
				"status":   float64(2),
			},
		},
		TotalCount: 1,
	}

	out := Page(page, Markdown, "documents")
	assert.Contains(t, out, "## Documents")
	assert.Contains(t, out, "Found **1** documents")
	assert.Contains(t, out, "| Doc Class |")
	assert.Contains(t, out, "PIN-0042")
	assert.Contains(t, out, "£1,250.00")
	assert.Contains(t, out, "2026-03-01")
}

func TestPage_MarkdownTruncationNotice(t *testing.T) {
	page := iplicit.Page{
		Items:      []iplicit.Resource{{"code": "P1"}, {"code": "P2"}},
		TotalCount: 412,
	}
	out := Page(page, Markdown, "projects")
	assert.Contains(t, out, "(showing first 2 of 412 total)")
}

func TestPage_MarkdownEmpty(t *testing.T) {
	out := Page(iplicit.Page{}, Markdown, "projects")
	assert.Equal(t, "No projects found.", out)
}

func TestPage_JSONRoundTrips(t *testing.T) {
	page := iplicit.Page{
		Items:      []iplicit.Resource{{"id": "a", "code": "X"}},
		TotalCount: 7,
	}
	out := Page(page, JSON, "projects")

	var decoded struct {
		Items      []map[string]any `json:"items"`
		TotalCount int              `json:"totalCount"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, 7, decoded.TotalCount)
	require.Len(t, decoded.Items, 1)
	assert.Equal(t, "X", decoded.Items[0]["code"])
}

func TestPage_UnknownContextFallsBackToFieldList(t *testing.T) {
	page := iplicit.Page{
		Items:      []iplicit.Resource{{"id": "b1", "reference": "BATCH-9"}},
		TotalCount: 1,
	}
	out := Page(page, Markdown, "batch payments")
	assert.Contains(t, out, "### Item 1")
	assert.Contains(t, out, "- **reference:** BATCH-9")
}

func TestItem_DocumentWithLines(t *testing.T) {
	doc := iplicit.Resource{
		"docClass":    "SaleInvoice",
		"docNo":       "SIN-0007",
		"docDate":     "2026-02-14",
		"status":      float64(160),
		"total":       300.0,
		"description": "February retainer",
		"details": []any{
			map[string]any{"description": "Consulting", "quantity": float64(2), "unitPrice": 150.0, "amount": 300.0},
		},
	}

	out := Item(doc, Markdown, "document")
	assert.Contains(t, out, "## Document Details")
	assert.Contains(t, out, "SaleInvoice SIN-0007")
	assert.Contains(t, out, "- **Description:** February retainer")
	assert.Contains(t, out, "### Line Items (1 items)")
	assert.Contains(t, out, "| Consulting | 2 | £150.00 | £300.00 |")
}

func TestItem_ContactWithSupplierRole(t *testing.T) {
	contact := iplicit.Resource{
		"id":          "c-1",
		"code":        "ACME",
		"description": "Acme Ltd",
		"countryCode": "GB",
		"supplier": map[string]any{
			"isActive": true,
			"currency": "GBP",
		},
	}

	out := Item(contact, Markdown, "contact")
	assert.Contains(t, out, "## Contact Account: Acme Ltd")
	assert.Contains(t, out, "- **Code:** ACME")
	assert.Contains(t, out, "### Supplier Information")
	assert.Contains(t, out, "- **Active:** Yes")
	assert.Contains(t, out, "- **Currency:** GBP")
}

func TestItem_JSON(t *testing.T) {
	res := iplicit.Resource{"id": "p-1", "code": "PRJ"}
	out := Item(res, JSON, "project")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "PRJ", decoded["code"])
}

func TestItem_GenericContext(t *testing.T) {
	res := iplicit.Resource{
		"id":     "d-9",
		"code":   "SALES",
		"active": true,
		"nested": map[string]any{"skip": "me"},
	}
	out := Item(res, Markdown, "department")
	assert.Contains(t, out, "## Department")
	assert.Contains(t, out, "- **code:** SALES")
	assert.NotContains(t, out, "skip")
}

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "1,234,567.89", groupThousands("1234567.89"))
	assert.Equal(t, "999.00", groupThousands("999.00"))
	assert.Equal(t, "-12,000.00", groupThousands("-12000.00"))
}
