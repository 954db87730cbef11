// ABOUTME: Document tools: search, fetch, and draft updates.
// ABOUTME: Document references accept either a UUID or a document number.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"

	"github.com/qlickxl/iplicit-mcp-server/internal/format"
	"github.com/qlickxl/iplicit-mcp-server/internal/iplicit"
)

type searchDocumentsInput struct {
	DocClass       string `json:"doc_class"`
	Status         string `json:"status"`
	FromDate       string `json:"from_date"`
	ToDate         string `json:"to_date"`
	ContactAccount string `json:"contact_account"`
	listOptions
}

// SearchDocuments lists documents with server-side filters.
func (s *Service) SearchDocuments(ctx context.Context, input json.RawMessage) (string, error) {
	var in searchDocumentsInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	in.normalize()

	query := url.Values{}
	if in.FromDate != "" {
		query.Set("fromDate", in.FromDate)
	}
	if in.ToDate != "" {
		query.Set("toDate", in.ToDate)
	}
	if in.DocClass != "" {
		query.Set("docClass", in.DocClass)
	}
	if in.Status != "" {
		query.Set("status", in.Status)
	}
	if in.ContactAccount != "" {
		query.Set("contactAccount", in.ContactAccount)
	}
	query.Set("pageSize", strconv.Itoa(clamp(in.Limit, documentPageCap)))

	raw, err := s.client.Execute(ctx, "GET", "document", query, nil)
	if err != nil {
		return "", err
	}
	page, err := iplicit.NormalizePage(raw)
	if err != nil {
		return "", err
	}
	return format.Page(page, in.Format, "documents"), nil
}

type getDocumentInput struct {
	DocumentID string `json:"document_id"`
	Format     string `json:"format"`
}

// GetDocument fetches one document by UUID or document number.
func (s *Service) GetDocument(ctx context.Context, input json.RawMessage) (string, error) {
	var in getDocumentInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	if in.DocumentID == "" {
		return "", errors.New("document_id is required")
	}

	id, err := s.resolver.Resolve(ctx, in.DocumentID, iplicit.KindDocument)
	if err != nil {
		return "", err
	}

	raw, err := s.client.Execute(ctx, "GET", "document/"+id, nil, nil)
	if err != nil {
		return "", err
	}
	doc, err := iplicit.DecodeResource(raw)
	if err != nil {
		return "", err
	}
	return format.Item(doc, normFormat(in.Format), "document"), nil
}

type updateDocumentInput struct {
	DocumentID       string           `json:"document_id"`
	Description      *string          `json:"description"`
	TheirDocNo       *string          `json:"their_doc_no"`
	Reference        *string          `json:"reference"`
	DocDate          *string          `json:"doc_date"`
	DueDate          *string          `json:"due_date"`
	ContactAccountID *string          `json:"contact_account_id"`
	Lines            []map[string]any `json:"lines"`
	Format           string           `json:"format"`
}

// UpdateDocument patches a draft document with only the provided fields.
// The API rejects non-draft updates; that rejection surfaces as a business
// rule error rather than being second-guessed locally.
func (s *Service) UpdateDocument(ctx context.Context, input json.RawMessage) (string, error) {
	var in updateDocumentInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	if in.DocumentID == "" {
		return "", errors.New("document_id is required")
	}

	id, err := s.resolver.Resolve(ctx, in.DocumentID, iplicit.KindDocument)
	if err != nil {
		return "", err
	}

	payload := map[string]any{}
	if in.Description != nil {
		payload["description"] = *in.Description
	}
	if in.TheirDocNo != nil {
		payload["theirDocNo"] = *in.TheirDocNo
	}
	if in.Reference != nil {
		payload["reference"] = *in.Reference
	}
	if in.DocDate != nil {
		payload["docDate"] = *in.DocDate
	}
	if in.DueDate != nil {
		payload["dueDate"] = *in.DueDate
	}
	if in.ContactAccountID != nil {
		contactID, rerr := s.resolver.Resolve(ctx, *in.ContactAccountID, iplicit.KindContactAccount)
		if rerr != nil {
			return "", rerr
		}
		payload["contactAccountId"] = contactID
	}
	if in.Lines != nil {
		// The API names the line collection "details".
		payload["details"] = in.Lines
	}

	doc, err := s.writer.Update(ctx, iplicit.KindDocument, id, payload)
	if err != nil {
		return "", err
	}
	return format.Item(doc, normFormat(in.Format), "document"), nil
}
