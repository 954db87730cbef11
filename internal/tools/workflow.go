// ABOUTME: Document workflow tools: post, approve and reverse.
// ABOUTME: State rules are enforced remotely; rejections surface verbatim.

package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/qlickxl/iplicit-mcp-server/internal/format"
	"github.com/qlickxl/iplicit-mcp-server/internal/iplicit"
)

type postDocumentInput struct {
	DocumentID  string `json:"document_id"`
	PostingDate string `json:"posting_date"`
	Format      string `json:"format"`
}

// PostDocument posts a draft document, finalizing it.
func (s *Service) PostDocument(ctx context.Context, input json.RawMessage) (string, error) {
	var in postDocumentInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	var payload map[string]any
	if in.PostingDate != "" {
		payload = map[string]any{"postingDate": in.PostingDate}
	}
	return s.transition(ctx, in.DocumentID, iplicit.ActionPost, payload, in.Format)
}

type approveDocumentInput struct {
	DocumentID   string `json:"document_id"`
	ApprovalNote string `json:"approval_note"`
	Format       string `json:"format"`
}

// ApproveDocument approves a document awaiting workflow approval.
func (s *Service) ApproveDocument(ctx context.Context, input json.RawMessage) (string, error) {
	var in approveDocumentInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	var payload map[string]any
	if in.ApprovalNote != "" {
		payload = map[string]any{"note": in.ApprovalNote}
	}
	return s.transition(ctx, in.DocumentID, iplicit.ActionApprove, payload, in.Format)
}

type reverseDocumentInput struct {
	DocumentID     string `json:"document_id"`
	ReversalDate   string `json:"reversal_date"`
	ReversalReason string `json:"reversal_reason"`
	Format         string `json:"format"`
}

// ReverseDocument creates a reversing entry for a posted document.
func (s *Service) ReverseDocument(ctx context.Context, input json.RawMessage) (string, error) {
	var in reverseDocumentInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	if in.ReversalDate == "" {
		return "", errors.New("reversal_date is required")
	}
	payload := map[string]any{"reversalDate": in.ReversalDate}
	if in.ReversalReason != "" {
		payload["reason"] = in.ReversalReason
	}
	return s.transition(ctx, in.DocumentID, iplicit.ActionReverse, payload, in.Format)
}

func (s *Service) transition(ctx context.Context, ref, action string, payload map[string]any, outFormat string) (string, error) {
	if ref == "" {
		return "", errors.New("document_id is required")
	}
	id, err := s.resolver.Resolve(ctx, ref, iplicit.KindDocument)
	if err != nil {
		return "", err
	}
	res, err := s.writer.Transition(ctx, id, action, payload)
	if err != nil {
		return "", err
	}
	return format.Item(res, normFormat(outFormat), "document"), nil
}
