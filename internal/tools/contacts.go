// ABOUTME: Contact account tools: search customers/suppliers and fetch one account.
// ABOUTME: The API has no server-side contact filters, so matching happens client-side.

package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/qlickxl/iplicit-mcp-server/internal/format"
	"github.com/qlickxl/iplicit-mcp-server/internal/iplicit"
)

type searchContactAccountsInput struct {
	AccountType string `json:"account_type"`
	SearchTerm  string `json:"search_term"`
	ActiveOnly  *bool  `json:"active_only"`
	listOptions
}

// SearchContactAccounts lists contact accounts filtered by role, activity
// and a free-text term over code and description.
func (s *Service) SearchContactAccounts(ctx context.Context, input json.RawMessage) (string, error) {
	var in searchContactAccountsInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	in.normalize()
	activeOnly := in.ActiveOnly == nil || *in.ActiveOnly

	items, err := s.listContacts(ctx)
	if err != nil {
		return "", err
	}

	filtered := make([]iplicit.Resource, 0, len(items))
	for _, item := range items {
		switch in.AccountType {
		case "supplier":
			if _, ok := item["supplier"]; !ok {
				continue
			}
		case "customer":
			if _, ok := item["customer"]; !ok {
				continue
			}
		}
		if activeOnly && !contactIsActive(item) {
			continue
		}
		if in.SearchTerm != "" {
			desc, _ := item["description"].(string)
			code, _ := item["code"].(string)
			if !matchesTerm(in.SearchTerm, desc, code) {
				continue
			}
		}
		filtered = append(filtered, item)
		if len(filtered) >= in.Limit {
			break
		}
	}

	page := iplicit.Page{Items: filtered, TotalCount: len(filtered)}
	return format.Page(page, in.Format, "contacts"), nil
}

type getContactAccountInput struct {
	AccountID string `json:"account_id"`
	Format    string `json:"format"`
}

// GetContactAccount fetches one contact account by id or code.
func (s *Service) GetContactAccount(ctx context.Context, input json.RawMessage) (string, error) {
	var in getContactAccountInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	if in.AccountID == "" {
		return "", errors.New("account_id is required")
	}

	items, err := s.listContacts(ctx)
	if err != nil {
		return "", err
	}

	for _, item := range items {
		id, _ := item["id"].(string)
		code, _ := item["code"].(string)
		if id == in.AccountID || code == in.AccountID {
			return format.Item(item, normFormat(in.Format), "contact"), nil
		}
	}
	return "", &iplicit.NotFoundError{Kind: iplicit.KindContactAccount, Ref: in.AccountID}
}

func (s *Service) listContacts(ctx context.Context) ([]iplicit.Resource, error) {
	raw, err := s.client.Execute(ctx, "GET", "contactaccount", nil, nil)
	if err != nil {
		return nil, err
	}
	return iplicit.NormalizeCollection(raw)
}

// contactIsActive checks the nested supplier/customer activity flag;
// accounts with neither role count as active.
func contactIsActive(item iplicit.Resource) bool {
	for _, role := range []string{"supplier", "customer"} {
		if nested, ok := item[role].(map[string]any); ok {
			if on, isBool := nested["isActive"].(bool); isBool {
				return on
			}
			return true
		}
	}
	return true
}
