// ABOUTME: Order and payment tools: purchase orders, sales orders, payments, batch payments.
// ABOUTME: Date/status/project filters are server-side; contact and amount filters are client-side.

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

type searchOrdersInput struct {
	FromDate  string `json:"from_date"`
	ToDate    string `json:"to_date"`
	Status    string `json:"status"`
	ProjectID string `json:"project_id"`
	Supplier  string `json:"supplier"`
	Customer  string `json:"customer"`
	listOptions
}

// SearchPurchaseOrders lists purchase orders.
func (s *Service) SearchPurchaseOrders(ctx context.Context, input json.RawMessage) (string, error) {
	return s.searchOrders(ctx, input, "purchaseorder")
}

// SearchSaleOrders lists sales orders.
func (s *Service) SearchSaleOrders(ctx context.Context, input json.RawMessage) (string, error) {
	return s.searchOrders(ctx, input, "saleorder")
}

func (s *Service) searchOrders(ctx context.Context, input json.RawMessage, endpoint string) (string, error) {
	var in searchOrdersInput
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
	if in.Status != "" {
		query.Set("status", in.Status)
	}
	if in.ProjectID != "" {
		query.Set("projectId", in.ProjectID)
	}
	query.Set("maxRecordCount", strconv.Itoa(clamp(in.Limit, searchPageCap)))

	raw, err := s.client.Execute(ctx, "GET", endpoint, query, nil)
	if err != nil {
		return "", err
	}
	items, err := iplicit.NormalizeCollection(raw)
	if err != nil {
		return "", err
	}

	contactTerm := in.Supplier
	if contactTerm == "" {
		contactTerm = in.Customer
	}
	if contactTerm != "" {
		filtered := items[:0]
		for _, item := range items {
			desc, _ := item["contactAccountDescription"].(string)
			supplier, _ := item["supplier"].(string)
			customer, _ := item["customer"].(string)
			if matchesTerm(contactTerm, desc, supplier, customer) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	if len(items) > in.Limit {
		items = items[:in.Limit]
	}

	page := iplicit.Page{Items: items, TotalCount: len(items)}
	return format.Page(page, in.Format, "orders"), nil
}

type getOrderInput struct {
	OrderID string `json:"order_id"`
	Format  string `json:"format"`
}

// GetPurchaseOrder fetches one purchase order.
func (s *Service) GetPurchaseOrder(ctx context.Context, input json.RawMessage) (string, error) {
	return s.getOrder(ctx, input, "purchaseorder")
}

// GetSaleOrder fetches one sales order.
func (s *Service) GetSaleOrder(ctx context.Context, input json.RawMessage) (string, error) {
	return s.getOrder(ctx, input, "saleorder")
}

func (s *Service) getOrder(ctx context.Context, input json.RawMessage, endpoint string) (string, error) {
	var in getOrderInput
	if err := parseInput(input, &in); err != nil {
		return "", err
	}
	if in.OrderID == "" {
		return "", errors.New("order_id is required")
	}

	raw, err := s.client.Execute(ctx, "GET", endpoint+"/"+in.OrderID, nil, nil)
	if err != nil {
		return "", err
	}
	order, err := iplicit.DecodeResource(raw)
	if err != nil {
		return "", err
	}
	return format.Item(order, normFormat(in.Format), "order"), nil
}

type searchPaymentsInput struct {
	FromDate  string   `json:"from_date"`
	ToDate    string   `json:"to_date"`
	Contact   string   `json:"contact"`
	MinAmount *float64 `json:"min_amount"`
	MaxAmount *float64 `json:"max_amount"`
	listOptions
}

// SearchPayments lists payments with optional contact and amount filters.
func (s *Service) SearchPayments(ctx context.Context, input json.RawMessage) (string, error) {
	var in searchPaymentsInput
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
	query.Set("maxRecordCount", strconv.Itoa(clamp(in.Limit, searchPageCap)))

	raw, err := s.client.Execute(ctx, "GET", "payment", query, nil)
	if err != nil {
		return "", err
	}
	items, err := iplicit.NormalizeCollection(raw)
	if err != nil {
		return "", err
	}

	filtered := make([]iplicit.Resource, 0, len(items))
	for _, item := range items {
		if in.Contact != "" {
			desc, _ := item["contactAccountDescription"].(string)
			contact, _ := item["contact"].(string)
			if !matchesTerm(in.Contact, desc, contact) {
				continue
			}
		}
		amount, _ := item["amount"].(float64)
		if in.MinAmount != nil && amount < *in.MinAmount {
			continue
		}
		if in.MaxAmount != nil && amount > *in.MaxAmount {
			continue
		}
		filtered = append(filtered, item)
		if len(filtered) >= in.Limit {
			break
		}
	}

	page := iplicit.Page{Items: filtered, TotalCount: len(filtered)}
	return format.Page(page, in.Format, "payments"), nil
}

type searchBatchPaymentsInput struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
	Status   string `json:"status"`
	listOptions
}

// SearchBatchPayments lists batch payments.
func (s *Service) SearchBatchPayments(ctx context.Context, input json.RawMessage) (string, error) {
	var in searchBatchPaymentsInput
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
	if in.Status != "" {
		query.Set("status", in.Status)
	}
	query.Set("maxRecordCount", strconv.Itoa(clamp(in.Limit, searchPageCap)))

	raw, err := s.client.Execute(ctx, "GET", "batchpayment", query, nil)
	if err != nil {
		return "", err
	}
	items, err := iplicit.NormalizeCollection(raw)
	if err != nil {
		return "", err
	}
	if len(items) > in.Limit {
		items = items[:in.Limit]
	}

	page := iplicit.Page{Items: items, TotalCount: len(items)}
	return format.Page(page, in.Format, "payments"), nil
}
