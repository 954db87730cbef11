// ABOUTME: Renders normalized API resources as JSON or Markdown for tool output.
// ABOUTME: Context-specific tables for the common entity kinds, generic fallback otherwise.

package format

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qlickxl/iplicit-mcp-server/internal/iplicit"
)

// Output formats accepted by every tool.
const (
	JSON     = "json"
	Markdown = "markdown"
)

// column maps a table header to the resource field(s) that fill it.
type column struct {
	header string
	render func(iplicit.Resource) string
}

// tables defines the Markdown layout per rendering context. Contexts the
// map doesn't know fall back to a generic key/value listing.
var tables = map[string][]column{
	"documents": {
		{"Doc Class", field("docClass")},
		{"Doc No", anyField("docNo", "number")},
		{"Date", dateField("docDate", "date")},
		{"Contact", anyField("contactAccountDescription", "contact")},
		{"Amount", moneyField("total", "amount")},
		{"Status", field("status")},
	},
	"contacts": {
		{"Code", field("code")},
		{"Name", anyField("description", "name")},
		{"Type", contactType},
		{"Country", field("countryCode")},
		{"Active", contactActive},
	},
	"projects": {
		{"Code", field("code")},
		{"Description", field("description")},
		{"Start Date", dateField("dateFrom")},
		{"Status", activeFlag},
	},
	"orders": {
		{"Order No", anyField("docNo", "number")},
		{"Date", dateField("docDate", "date")},
		{"Contact", anyField("contactAccountDescription", "supplier", "customer")},
		{"Amount", moneyField("total", "amount")},
		{"Status", field("status")},
	},
	"payments": {
		{"Date", dateField("docDate", "date")},
		{"Contact", anyField("contactAccountDescription", "contact")},
		{"Amount", moneyField("amount", "total")},
		{"Currency", field("currency")},
		{"Status", field("status")},
	},
	"products": {
		{"Code", field("code")},
		{"Description", anyField("description", "name")},
		{"Type", field("productType")},
		{"Active", boolFlag("isActive")},
	},
	"departments": {
		{"Code", field("code")},
		{"Name", anyField("description", "name")},
		{"Active", boolFlag("active")},
	},
	"cost centres": {
		{"Code", field("code")},
		{"Name", anyField("description", "name")},
		{"Active", boolFlag("active")},
	},
}

// Page renders a normalized collection.
func Page(page iplicit.Page, format, context string) string {
	if format == JSON {
		return renderJSON(map[string]any{
			"items":      page.Items,
			"totalCount": page.TotalCount,
		})
	}
	return pageMarkdown(page, context)
}

// Item renders a single resource.
func Item(res iplicit.Resource, format, context string) string {
	if format == JSON {
		return renderJSON(res)
	}
	switch context {
	case "document":
		return documentMarkdown(res)
	case "contact":
		return contactMarkdown(res)
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "## %s\n\n", titleize(context))
		b.WriteString(fieldList(res))
		return b.String()
	}
}

func renderJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

func pageMarkdown(page iplicit.Page, context string) string {
	if len(page.Items) == 0 {
		return fmt.Sprintf("No %s found.", context)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", titleize(context))
	fmt.Fprintf(&b, "Found **%d** %s", len(page.Items), context)
	if page.TotalCount > len(page.Items) {
		fmt.Fprintf(&b, " (showing first %d of %d total)", len(page.Items), page.TotalCount)
	}
	b.WriteString("\n\n")

	cols, ok := tables[context]
	if !ok {
		for i, item := range page.Items {
			fmt.Fprintf(&b, "### Item %d\n\n", i+1)
			b.WriteString(fieldList(item))
			b.WriteString("\n")
		}
		return b.String()
	}

	for i, col := range cols {
		if i > 0 {
			b.WriteString(" | ")
		} else {
			b.WriteString("| ")
		}
		b.WriteString(col.header)
	}
	b.WriteString(" |\n")
	for i := range cols {
		if i == 0 {
			b.WriteString("|")
		}
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for _, item := range page.Items {
		for i, col := range cols {
			if i == 0 {
				b.WriteString("|")
			}
			b.WriteString(" " + col.render(item) + " |")
		}
		b.WriteString("\n")
	}

	return b.String()
}

func documentMarkdown(doc iplicit.Resource) string {
	var b strings.Builder
	b.WriteString("## Document Details\n\n")
	fmt.Fprintf(&b, "**Document:** %s %s\n\n", field("docClass")(doc), anyField("docNo", "number")(doc))
	fmt.Fprintf(&b, "- **Date:** %s\n", dateField("docDate", "date")(doc))
	fmt.Fprintf(&b, "- **Contact:** %s\n", field("contactAccountDescription")(doc))
	fmt.Fprintf(&b, "- **Status:** %s\n", field("status")(doc))
	fmt.Fprintf(&b, "- **Total:** %s\n", moneyField("total", "amount")(doc))
	if desc, _ := doc["description"].(string); desc != "" {
		fmt.Fprintf(&b, "- **Description:** %s\n", desc)
	}

	lines := lineItems(doc)
	if len(lines) > 0 {
		fmt.Fprintf(&b, "\n### Line Items (%d items)\n\n", len(lines))
		b.WriteString("| Description | Quantity | Unit Price | Amount |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, line := range lines {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				field("description")(line),
				field("quantity")(line),
				moneyField("unitPrice", "price")(line),
				moneyField("amount", "total")(line))
		}
	}
	return b.String()
}

func contactMarkdown(contact iplicit.Resource) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Contact Account: %s\n\n", anyField("description", "name")(contact))
	fmt.Fprintf(&b, "- **Code:** %s\n", field("code")(contact))
	fmt.Fprintf(&b, "- **Country:** %s\n", field("countryCode")(contact))
	fmt.Fprintf(&b, "- **ID:** %s\n", field("id")(contact))

	for _, role := range []string{"supplier", "customer"} {
		nested, ok := contact[role].(map[string]any)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n### %s Information\n\n", titleize(role))
		active := "No"
		if on, _ := nested["isActive"].(bool); on {
			active = "Yes"
		}
		fmt.Fprintf(&b, "- **Active:** %s\n", active)
		fmt.Fprintf(&b, "- **Currency:** %s\n", stringify(nested["currency"]))
	}
	return b.String()
}

// fieldList renders scalar fields as a markdown list, skipping nested
// structures, with stable key order.
func fieldList(res iplicit.Resource) string {
	keys := make([]string, 0, len(res))
	for k, v := range res {
		switch v.(type) {
		case map[string]any, []any:
			continue
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- **%s:** %s\n", k, stringify(res[k]))
	}
	return b.String()
}

func lineItems(doc iplicit.Resource) []iplicit.Resource {
	for _, key := range []string{"lines", "details", "items"} {
		rawLines, ok := doc[key].([]any)
		if !ok {
			continue
		}
		lines := make([]iplicit.Resource, 0, len(rawLines))
		for _, rl := range rawLines {
			if m, ok := rl.(map[string]any); ok {
				lines = append(lines, iplicit.Resource(m))
			}
		}
		return lines
	}
	return nil
}

// Field accessors

func field(name string) func(iplicit.Resource) string {
	return func(r iplicit.Resource) string {
		return stringify(r[name])
	}
}

func anyField(names ...string) func(iplicit.Resource) string {
	return func(r iplicit.Resource) string {
		for _, n := range names {
			if v, ok := r[n]; ok && v != nil {
				return stringify(v)
			}
		}
		return "N/A"
	}
}

func dateField(names ...string) func(iplicit.Resource) string {
	return func(r iplicit.Resource) string {
		for _, n := range names {
			if s, ok := r[n].(string); ok && s != "" {
				return formatDate(s)
			}
		}
		return "N/A"
	}
}

func moneyField(names ...string) func(iplicit.Resource) string {
	return func(r iplicit.Resource) string {
		for _, n := range names {
			if v, ok := r[n]; ok && v != nil {
				return Money(v)
			}
		}
		return "N/A"
	}
}

func boolFlag(name string) func(iplicit.Resource) string {
	return func(r iplicit.Resource) string {
		if on, ok := r[name].(bool); ok && !on {
			return "✗"
		}
		return "✓"
	}
}

func activeFlag(r iplicit.Resource) string {
	if on, ok := r["isActive"].(bool); ok && !on {
		return "Inactive"
	}
	return "Active"
}

func contactType(r iplicit.Resource) string {
	if _, ok := r["supplier"]; ok {
		return "Supplier"
	}
	if _, ok := r["customer"]; ok {
		return "Customer"
	}
	return "Contact"
}

func contactActive(r iplicit.Resource) string {
	for _, role := range []string{"supplier", "customer"} {
		if nested, ok := r[role].(map[string]any); ok {
			if on, isBool := nested["isActive"].(bool); isBool && !on {
				return "✗"
			}
			return "✓"
		}
	}
	return "✓"
}

// Money renders an amount as £1,234.56 with exact decimal arithmetic.
func Money(v any) string {
	var d decimal.Decimal
	switch n := v.(type) {
	case float64:
		d = decimal.NewFromFloat(n)
	case int:
		d = decimal.NewFromInt(int64(n))
	case string:
		parsed, err := decimal.NewFromString(n)
		if err != nil {
			return n
		}
		d = parsed
	case json.Number:
		parsed, err := decimal.NewFromString(n.String())
		if err != nil {
			return n.String()
		}
		d = parsed
	default:
		return stringify(v)
	}
	return "£" + groupThousands(d.StringFixed(2))
}

// groupThousands inserts comma separators into a fixed-point decimal string.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

// formatDate normalizes an ISO timestamp to YYYY-MM-DD.
func formatDate(s string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "N/A"
	case string:
		if t == "" {
			return "N/A"
		}
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func titleize(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
