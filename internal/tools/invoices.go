// ABOUTME: Invoice creation tools for purchase and sales invoices.
// ABOUTME: Resolves contact codes and fills API-mandatory defaults before the write.

package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/qlickxl/iplicit-mcp-server/internal/format"
	"github.com/qlickxl/iplicit-mcp-server/internal/iplicit"
)

type invoiceLine struct {
	Description          string  `json:"description"`
	Quantity             float64 `json:"quantity"`
	NetCurrencyUnitPrice float64 `json:"net_currency_unit_price"`
	TaxCodeID            string  `json:"tax_code_id"`
	AccountID            string  `json:"account_id"`
}

type createInvoiceInput struct {
	ContactAccountID string        `json:"contact_account_id"`
	DocDate          string        `json:"doc_date"`
	DueDate          string        `json:"due_date"`
	Currency         string        `json:"currency"`
	DocTypeID        string        `json:"doc_type_id"`
	LegalEntityID    string        `json:"legal_entity_id"`
	Description      string        `json:"description"`
	TheirDocNo       string        `json:"their_doc_no"`
	Reference        string        `json:"reference"`
	PaymentTermsID   string        `json:"payment_terms_id"`
	ProjectID        string        `json:"project_id"`
	Lines            []invoiceLine `json:"lines"`
	Format           string        `json:"format"`
}

// CreatePurchaseInvoice creates a draft purchase invoice.
func (s *Service) CreatePurchaseInvoice(ctx context.Context, input json.RawMessage) (string, error) {
	return s.createInvoice(ctx, input, "PurchaseInvoice")
}

// CreateSaleInvoice creates a draft sales invoice.
func (s *Service) CreateSaleInvoice(ctx context.Context, input json.RawMessage) (string, error) {
	return s.createInvoice(ctx, input, "SaleInvoice")
}

func (s *Service) createInvoice(ctx context.Context, input json.RawMessage, docClass string) (string, error) {
	var in createInvoiceInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	if in.ContactAccountID == "" {
		return "", errors.New("contact_account_id is required")
	}
	if in.DocDate == "" || in.DueDate == "" {
		return "", errors.New("doc_date and due_date are required")
	}

	contactID, err := s.resolver.Resolve(ctx, in.ContactAccountID, iplicit.KindContactAccount)
	if err != nil {
		return "", err
	}

	docTypeID := in.DocTypeID
	if docTypeID == "" {
		docTypeID, err = s.writer.DefaultDocType(ctx, docClass)
		if err != nil {
			return "", err
		}
	}

	legalEntityID := in.LegalEntityID
	if legalEntityID == "" {
		legalEntityID, err = s.writer.DefaultLegalEntity(ctx)
		if err != nil {
			return "", err
		}
	}

	currency := in.Currency
	if currency == "" {
		currency = "GBP"
	}

	payload := map[string]any{
		"contactAccountId": contactID,
		"docTypeId":        docTypeID,
		"legalEntityId":    legalEntityID,
		"docDate":          in.DocDate,
		"dueDate":          in.DueDate,
		"currency":         currency,
	}
	if in.Description != "" {
		payload["description"] = in.Description
	}
	if in.TheirDocNo != "" {
		payload["theirDocNo"] = in.TheirDocNo
	}
	if in.Reference != "" {
		payload["reference"] = in.Reference
	}
	if in.PaymentTermsID != "" {
		payload["paymentTermsId"] = in.PaymentTermsID
	}
	if in.ProjectID != "" {
		payload["projectId"] = in.ProjectID
	}
	if len(in.Lines) > 0 {
		// The API names the line collection "details".
		payload["details"] = apiLines(in.Lines)
	}

	endpoint := "saleinvoice"
	if docClass == "PurchaseInvoice" {
		endpoint = "purchaseinvoice"
	}

	invoice, err := s.writer.Create(ctx, endpoint, payload)
	if err != nil {
		return "", err
	}
	return format.Item(invoice, normFormat(in.Format), "document"), nil
}

// apiLines converts tool line input to the API's field names.
func apiLines(lines []invoiceLine) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		qty := line.Quantity
		if qty == 0 {
			qty = 1
		}
		m := map[string]any{
			"description":          line.Description,
			"quantity":             qty,
			"netCurrencyUnitPrice": line.NetCurrencyUnitPrice,
		}
		if line.TaxCodeID != "" {
			m["taxCodeId"] = line.TaxCodeID
		}
		if line.AccountID != "" {
			m["accountId"] = line.AccountID
		}
		out = append(out, m)
	}
	return out
}
