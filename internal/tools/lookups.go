// ABOUTME: Reference-data tools: projects, products, departments, cost centres.
// ABOUTME: Single-item lookups accept either a UUID or a human code.

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

type searchTermInput struct {
	SearchTerm  string `json:"search_term"`
	Status      string `json:"status"`
	ProductType string `json:"product_type"`
	ActiveOnly  *bool  `json:"active_only"`
	listOptions
}

// SearchProjects lists projects filtered by term and status.
func (s *Service) SearchProjects(ctx context.Context, input json.RawMessage) (string, error) {
	var in searchTermInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	in.normalize()

	raw, err := s.client.Execute(ctx, "GET", "project", nil, nil)
	if err != nil {
		return "", err
	}
	items, err := iplicit.NormalizeCollection(raw)
	if err != nil {
		return "", err
	}

	filtered := make([]iplicit.Resource, 0, len(items))
	for _, item := range items {
		if in.SearchTerm != "" {
			desc, _ := item["description"].(string)
			code, _ := item["code"].(string)
			if !matchesTerm(in.SearchTerm, desc, code) {
				continue
			}
		}
		if in.Status == "active" || in.Status == "inactive" {
			active, isBool := item["isActive"].(bool)
			if !isBool {
				active = true
			}
			if active != (in.Status == "active") {
				continue
			}
		}
		filtered = append(filtered, item)
		if len(filtered) >= in.Limit {
			break
		}
	}

	page := iplicit.Page{Items: filtered, TotalCount: len(filtered)}
	return format.Page(page, in.Format, "projects"), nil
}

// SearchProducts lists products filtered by term, type and activity.
func (s *Service) SearchProducts(ctx context.Context, input json.RawMessage) (string, error) {
	var in searchTermInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	in.normalize()
	activeOnly := in.ActiveOnly == nil || *in.ActiveOnly

	query := url.Values{"maxRecordCount": {strconv.Itoa(clamp(in.Limit, searchPageCap))}}
	raw, err := s.client.Execute(ctx, "GET", "product", query, nil)
	if err != nil {
		return "", err
	}
	items, err := iplicit.NormalizeCollection(raw)
	if err != nil {
		return "", err
	}

	filtered := make([]iplicit.Resource, 0, len(items))
	for _, item := range items {
		if in.SearchTerm != "" {
			code, _ := item["code"].(string)
			desc, _ := item["description"].(string)
			name, _ := item["name"].(string)
			if !matchesTerm(in.SearchTerm, code, desc, name) {
				continue
			}
		}
		if activeOnly {
			if on, isBool := item["isActive"].(bool); isBool && !on {
				continue
			}
		}
		if in.ProductType != "" {
			if ptype, _ := item["productType"].(string); ptype != in.ProductType {
				continue
			}
		}
		filtered = append(filtered, item)
		if len(filtered) >= in.Limit {
			break
		}
	}

	page := iplicit.Page{Items: filtered, TotalCount: len(filtered)}
	return format.Page(page, in.Format, "products"), nil
}

type getProductInput struct {
	ProductID string `json:"product_id"`
	Format    string `json:"format"`
}

// GetProduct fetches one product by UUID or code.
func (s *Service) GetProduct(ctx context.Context, input json.RawMessage) (string, error) {
	var in getProductInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	if in.ProductID == "" {
		return "", errors.New("product_id is required")
	}
	return s.getByCode(ctx, in.ProductID, iplicit.KindProduct, normFormat(in.Format), "product")
}

// SearchDepartments lists departments filtered by term and activity.
func (s *Service) SearchDepartments(ctx context.Context, input json.RawMessage) (string, error) {
	return s.searchOrgUnit(ctx, input, "department", "departments")
}

// SearchCostCentres lists cost centres filtered by term and activity.
func (s *Service) SearchCostCentres(ctx context.Context, input json.RawMessage) (string, error) {
	return s.searchOrgUnit(ctx, input, "costcentre", "cost centres")
}

func (s *Service) searchOrgUnit(ctx context.Context, input json.RawMessage, endpoint, view string) (string, error) {
	var in searchTermInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	in.normalize()
	activeOnly := in.ActiveOnly == nil || *in.ActiveOnly

	query := url.Values{"maxRecordCount": {strconv.Itoa(clamp(in.Limit, searchPageCap))}}
	raw, err := s.client.Execute(ctx, "GET", endpoint, query, nil)
	if err != nil {
		return "", err
	}
	items, err := iplicit.NormalizeCollection(raw)
	if err != nil {
		return "", err
	}

	filtered := make([]iplicit.Resource, 0, len(items))
	for _, item := range items {
		if in.SearchTerm != "" {
			code, _ := item["code"].(string)
			desc, _ := item["description"].(string)
			name, _ := item["name"].(string)
			if !matchesTerm(in.SearchTerm, code, desc, name) {
				continue
			}
		}
		if activeOnly {
			if on, isBool := item["active"].(bool); isBool && !on {
				continue
			}
		}
		filtered = append(filtered, item)
		if len(filtered) >= in.Limit {
			break
		}
	}

	page := iplicit.Page{Items: filtered, TotalCount: len(filtered)}
	return format.Page(page, in.Format, view), nil
}

type getDepartmentInput struct {
	DepartmentID string `json:"department_id"`
	Format       string `json:"format"`
}

// GetDepartment fetches one department by UUID or code.
func (s *Service) GetDepartment(ctx context.Context, input json.RawMessage) (string, error) {
	var in getDepartmentInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	if in.DepartmentID == "" {
		return "", errors.New("department_id is required")
	}
	return s.getByCode(ctx, in.DepartmentID, iplicit.KindDepartment, normFormat(in.Format), "department")
}

type getCostCentreInput struct {
	CostCentreID string `json:"cost_centre_id"`
	Format       string `json:"format"`
}

// GetCostCentre fetches one cost centre by UUID or code.
func (s *Service) GetCostCentre(ctx context.Context, input json.RawMessage) (string, error) {
	var in getCostCentreInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	if in.CostCentreID == "" {
		return "", errors.New("cost_centre_id is required")
	}
	return s.getByCode(ctx, in.CostCentreID, iplicit.KindCostCentre, normFormat(in.Format), "cost centre")
}

// getByCode resolves an identifier-or-code reference and fetches the entity.
func (s *Service) getByCode(ctx context.Context, ref, kind, outFormat, view string) (string, error) {
	id, err := s.resolver.Resolve(ctx, ref, kind)
	if err != nil {
		return "", err
	}
	raw, err := s.client.Execute(ctx, "GET", kind+"/"+id, nil, nil)
	if err != nil {
		return "", err
	}
	res, err := iplicit.DecodeResource(raw)
	if err != nil {
		return "", err
	}
	return format.Item(res, outFormat, view), nil
}
