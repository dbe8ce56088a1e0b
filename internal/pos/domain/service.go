package domain

import (
	"context"

	ledgerdomain "github.com/smallbiznis/branchledger/internal/ledger/domain"
	"github.com/smallbiznis/branchledger/pkg/db/pagination"
)

// CartItem is one priced line of an incoming cart. UnitPrice is the
// price quoted to the customer and becomes the immutable snapshot on the
// recorded line item.
type CartItem struct {
	ProductCode string `json:"product_code"`
	Qty         int64  `json:"qty"`
	UnitPrice   int64  `json:"unit_price"`
}

// CommitSaleRequest is a fully priced cart plus payment selection. The
// transaction identifier is assigned client-side before any persistence
// so a retried submit carries the same identity; when absent the service
// assigns one before touching the database.
type CommitSaleRequest struct {
	TransactionID string                     `json:"transaction_id"`
	Items         []CartItem                 `json:"items"`
	Subtotal      int64                      `json:"subtotal"`
	Discount      int64                      `json:"discount"`
	Tax           int64                      `json:"tax"`
	GrandTotal    int64                      `json:"grand_total"`
	PaymentMethod ledgerdomain.PaymentMethod `json:"payment_method"`
	CashReceived  int64                      `json:"cash_received"`
}

// CommitSaleResponse returns the durably recorded sale.
type CommitSaleResponse struct {
	Transaction ledgerdomain.SaleTransaction `json:"transaction"`
	Items       []ledgerdomain.SaleLineItem  `json:"items"`
}

// DefectReportRequest removes damaged stock outside a sale.
type DefectReportRequest struct {
	ProductCode string `json:"product_code"`
	Qty         int64  `json:"qty"`
	Reason      string `json:"reason"`
}

// ListSalesRequest pages through a branch's recorded sales, newest first.
type ListSalesRequest struct {
	pagination.Pagination
}

// ListSalesResponse is one page of recorded sales.
type ListSalesResponse struct {
	Sales    []ledgerdomain.SaleTransaction `json:"sales"`
	PageInfo pagination.PageInfo            `json:"page_info"`
}

// Service is the POS write boundary. CommitSale must succeed or fail
// atomically against the branch's local ledger only; cloud reachability
// never participates.
type Service interface {
	CommitSale(ctx context.Context, branchCode string, req CommitSaleRequest) (*CommitSaleResponse, error)
	ReportDefect(ctx context.Context, branchCode string, req DefectReportRequest) error
	ListSales(ctx context.Context, branchCode string, req ListSalesRequest) (*ListSalesResponse, error)
}

// SyncTrigger requests an immediate replication attempt for a branch.
// Best-effort: correctness relies on the recurring sweep, never on this.
type SyncTrigger interface {
	Nudge(branchCode string)
}
