// ABOUTME: Tool catalog for the iplicit accounting API.
// ABOUTME: Wires every tool definition to its handler over the core request layer.

package tools

import (
	"encoding/json"
	"log/slog"

	"github.com/qlickxl/iplicit-mcp-server/internal/iplicit"
)

// Service owns the dependencies tool handlers share: the transport for
// reads, the resolver for identifier-or-code inputs, and the write
// orchestrator for anything that mutates remote state.
type Service struct {
	client   *iplicit.Client
	resolver *iplicit.Resolver
	writer   *iplicit.Writer
	logger   *slog.Logger
}

// NewService creates the tool service.
func NewService(client *iplicit.Client, resolver *iplicit.Resolver, writer *iplicit.Writer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, resolver: resolver, writer: writer, logger: logger}
}

// defaultLimit and the per-search caps mirror the API's paging behavior.
const (
	defaultLimit    = 50
	documentPageCap = 100
	searchPageCap   = 500
)

// RegisterAll adds the full catalog to the registry.
func (s *Service) RegisterAll(r *Registry) error {
	catalog := []*Tool{
		{
			Name:        "search_documents",
			Description: "Search accounting documents (invoices, credit notes, orders) with filters for class, status, date range and contact",
			InputSchema: schema(`{"type":"object","properties":{"doc_class":{"type":"string","description":"Document class filter, e.g. SaleInvoice, PurchaseInvoice"},"status":{"type":"string"},"from_date":{"type":"string","format":"date"},"to_date":{"type":"string","format":"date"},"contact_account":{"type":"string"},"limit":{"type":"integer","default":50},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}}}`),
			Handler:     s.SearchDocuments,
		},
		{
			Name:        "get_document",
			Description: "Fetch one document by ID or document number",
			InputSchema: schema(`{"type":"object","properties":{"document_id":{"type":"string"},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["document_id"]}`),
			Handler:     s.GetDocument,
		},
		{
			Name:        "search_contact_accounts",
			Description: "Search customers and suppliers by type, name or code",
			InputSchema: schema(`{"type":"object","properties":{"account_type":{"type":"string","enum":["customer","supplier","all"],"default":"all"},"search_term":{"type":"string"},"active_only":{"type":"boolean","default":true},"limit":{"type":"integer","default":50},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}}}`),
			Handler:     s.SearchContactAccounts,
		},
		{
			Name:        "get_contact_account",
			Description: "Fetch one contact account by ID or code",
			InputSchema: schema(`{"type":"object","properties":{"account_id":{"type":"string"},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["account_id"]}`),
			Handler:     s.GetContactAccount,
		},
		{
			Name:        "search_projects",
			Description: "Search projects by name, code or status",
			InputSchema: schema(`{"type":"object","properties":{"search_term":{"type":"string"},"status":{"type":"string","enum":["active","inactive"]},"limit":{"type":"integer","default":50},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}}}`),
			Handler:     s.SearchProjects,
		},
		{
			Name:        "create_purchase_invoice",
			Description: "Create a draft purchase invoice. Contact may be given as a code or UUID; document type and legal entity default when omitted",
			InputSchema: schema(`{"type":"object","properties":{"contact_account_id":{"type":"string"},"doc_date":{"type":"string","format":"date"},"due_date":{"type":"string","format":"date"},"currency":{"type":"string","default":"GBP"},"doc_type_id":{"type":"string"},"legal_entity_id":{"type":"string"},"description":{"type":"string"},"their_doc_no":{"type":"string"},"payment_terms_id":{"type":"string"},"project_id":{"type":"string"},"lines":{"type":"array","items":{"type":"object","properties":{"description":{"type":"string"},"quantity":{"type":"number","default":1},"net_currency_unit_price":{"type":"number"},"tax_code_id":{"type":"string"},"account_id":{"type":"string"}},"required":["description","net_currency_unit_price"]}},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["contact_account_id","doc_date","due_date"]}`),
			Handler:     s.CreatePurchaseInvoice,
		},
		{
			Name:        "create_sale_invoice",
			Description: "Create a draft sales invoice. Contact may be given as a code or UUID; document type and legal entity default when omitted",
			InputSchema: schema(`{"type":"object","properties":{"contact_account_id":{"type":"string"},"doc_date":{"type":"string","format":"date"},"due_date":{"type":"string","format":"date"},"currency":{"type":"string","default":"GBP"},"doc_type_id":{"type":"string"},"legal_entity_id":{"type":"string"},"description":{"type":"string"},"reference":{"type":"string"},"payment_terms_id":{"type":"string"},"project_id":{"type":"string"},"lines":{"type":"array","items":{"type":"object","properties":{"description":{"type":"string"},"quantity":{"type":"number","default":1},"net_currency_unit_price":{"type":"number"},"tax_code_id":{"type":"string"},"account_id":{"type":"string"}},"required":["description","net_currency_unit_price"]}},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["contact_account_id","doc_date","due_date"]}`),
			Handler:     s.CreateSaleInvoice,
		},
		{
			Name:        "update_document",
			Description: "Update a draft document. Only draft documents can be updated; the API enforces this",
			InputSchema: schema(`{"type":"object","properties":{"document_id":{"type":"string"},"description":{"type":"string"},"their_doc_no":{"type":"string"},"reference":{"type":"string"},"doc_date":{"type":"string","format":"date"},"due_date":{"type":"string","format":"date"},"contact_account_id":{"type":"string"},"lines":{"type":"array","items":{"type":"object"}},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["document_id"]}`),
			Handler:     s.UpdateDocument,
		},
		{
			Name:        "search_purchase_orders",
			Description: "Search purchase orders with date, status, project and supplier filters",
			InputSchema: schema(`{"type":"object","properties":{"from_date":{"type":"string","format":"date"},"to_date":{"type":"string","format":"date"},"status":{"type":"string"},"project_id":{"type":"string"},"supplier":{"type":"string"},"limit":{"type":"integer","default":50},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}}}`),
			Handler:     s.SearchPurchaseOrders,
		},
		{
			Name:        "get_purchase_order",
			Description: "Fetch one purchase order by ID",
			InputSchema: schema(`{"type":"object","properties":{"order_id":{"type":"string"},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["order_id"]}`),
			Handler:     s.GetPurchaseOrder,
		},
		{
			Name:        "search_sale_orders",
			Description: "Search sales orders with date, status, project and customer filters",
			InputSchema: schema(`{"type":"object","properties":{"from_date":{"type":"string","format":"date"},"to_date":{"type":"string","format":"date"},"status":{"type":"string"},"project_id":{"type":"string"},"customer":{"type":"string"},"limit":{"type":"integer","default":50},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}}}`),
			Handler:     s.SearchSaleOrders,
		},
		{
			Name:        "get_sale_order",
			Description: "Fetch one sales order by ID",
			InputSchema: schema(`{"type":"object","properties":{"order_id":{"type":"string"},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["order_id"]}`),
			Handler:     s.GetSaleOrder,
		},
		{
			Name:        "search_payments",
			Description: "Search payments with date, contact and amount filters",
			InputSchema: schema(`{"type":"object","properties":{"from_date":{"type":"string","format":"date"},"to_date":{"type":"string","format":"date"},"contact":{"type":"string"},"min_amount":{"type":"number"},"max_amount":{"type":"number"},"limit":{"type":"integer","default":50},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}}}`),
			Handler:     s.SearchPayments,
		},
		{
			Name:        "search_products",
			Description: "Search products by code, description or type",
			InputSchema: schema(`{"type":"object","properties":{"search_term":{"type":"string"},"product_type":{"type":"string"},"active_only":{"type":"boolean","default":true},"limit":{"type":"integer","default":50},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}}}`),
			Handler:     s.SearchProducts,
		},
		{
			Name:        "get_product",
			Description: "Fetch one product by ID or code",
			InputSchema: schema(`{"type":"object","properties":{"product_id":{"type":"string"},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["product_id"]}`),
			Handler:     s.GetProduct,
		},
		{
			Name:        "search_departments",
			Description: "Search departments by code or name",
			InputSchema: schema(`{"type":"object","properties":{"search_term":{"type":"string"},"active_only":{"type":"boolean","default":true},"limit":{"type":"integer","default":50},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}}}`),
			Handler:     s.SearchDepartments,
		},
		{
			Name:        "get_department",
			Description: "Fetch one department by ID or code",
			InputSchema: schema(`{"type":"object","properties":{"department_id":{"type":"string"},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["department_id"]}`),
			Handler:     s.GetDepartment,
		},
		{
			Name:        "search_cost_centres",
			Description: "Search cost centres by code or name",
			InputSchema: schema(`{"type":"object","properties":{"search_term":{"type":"string"},"active_only":{"type":"boolean","default":true},"limit":{"type":"integer","default":50},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}}}`),
			Handler:     s.SearchCostCentres,
		},
		{
			Name:        "get_cost_centre",
			Description: "Fetch one cost centre by ID or code",
			InputSchema: schema(`{"type":"object","properties":{"cost_centre_id":{"type":"string"},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["cost_centre_id"]}`),
			Handler:     s.GetCostCentre,
		},
		{
			Name:        "post_document",
			Description: "Post a draft document to finalize it. Only draft documents can be posted",
			InputSchema: schema(`{"type":"object","properties":{"document_id":{"type":"string"},"posting_date":{"type":"string","format":"date"},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["document_id"]}`),
			Handler:     s.PostDocument,
		},
		{
			Name:        "approve_document",
			Description: "Approve a document when an approval workflow is enabled",
			InputSchema: schema(`{"type":"object","properties":{"document_id":{"type":"string"},"approval_note":{"type":"string"},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["document_id"]}`),
			Handler:     s.ApproveDocument,
		},
		{
			Name:        "reverse_document",
			Description: "Reverse a posted document with a reversing entry. Only posted documents can be reversed",
			InputSchema: schema(`{"type":"object","properties":{"document_id":{"type":"string"},"reversal_date":{"type":"string","format":"date"},"reversal_reason":{"type":"string"},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}},"required":["document_id","reversal_date"]}`),
			Handler:     s.ReverseDocument,
		},
		{
			Name:        "search_batch_payments",
			Description: "Search batch payments with date and status filters",
			InputSchema: schema(`{"type":"object","properties":{"from_date":{"type":"string","format":"date"},"to_date":{"type":"string","format":"date"},"status":{"type":"string"},"limit":{"type":"integer","default":50},"format":{"type":"string","enum":["json","markdown"],"default":"markdown"}}}`),
			Handler:     s.SearchBatchPayments,
		},
	}

	for _, t := range catalog {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func schema(s string) json.RawMessage { return json.RawMessage(s) }
