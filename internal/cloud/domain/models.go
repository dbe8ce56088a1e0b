package domain

import (
	"context"
	"time"

	ledgerdomain "github.com/smallbiznis/branchledger/internal/ledger/domain"
)

// CloudSale mirrors a branch SaleTransaction in the consolidated HQ
// ledger. TransactionID carries the branch-assigned identifier; its
// uniqueness constraint is the sole mechanism preventing double-counted
// revenue under at-least-once delivery.
type CloudSale struct {
	TransactionID string                     `gorm:"type:varchar(64);primaryKey"`
	BranchCode    string                     `gorm:"type:varchar(32);not null;index"`
	Subtotal      int64                      `gorm:"not null"`
	Discount      int64                      `gorm:"not null"`
	Tax           int64                      `gorm:"not null"`
	GrandTotal    int64                      `gorm:"not null"`
	PaymentMethod ledgerdomain.PaymentMethod `gorm:"type:varchar(16);not null"`
	SoldAt        time.Time                  `gorm:"not null;index"`
	ReceivedAt    time.Time                  `gorm:"not null"`
}

// TableName sets the database table name.
func (CloudSale) TableName() string { return "cloud_sales" }

// CloudSaleItem mirrors one sale line, keyed by (transaction, line) to
// survive re-delivery.
type CloudSaleItem struct {
	TransactionID string `gorm:"type:varchar(64);not null;uniqueIndex:ux_cloud_sale_items_txn_line,priority:1"`
	LineNo        int    `gorm:"not null;uniqueIndex:ux_cloud_sale_items_txn_line,priority:2"`
	BranchCode    string `gorm:"type:varchar(32);not null;index"`
	ProductCode   string `gorm:"type:varchar(64);not null;index"`
	ProductName   string `gorm:"type:varchar(255);not null"`
	Qty           int64  `gorm:"not null"`
	UnitPrice     int64  `gorm:"not null"`
	LineSubtotal  int64  `gorm:"not null"`
}

// TableName sets the database table name.
func (CloudSaleItem) TableName() string { return "cloud_sale_items" }

// BranchRevenue is one row of the cross-branch revenue aggregate.
type BranchRevenue struct {
	BranchCode string `json:"branch_code"`
	SaleCount  int64  `json:"sale_count"`
	Revenue    int64  `json:"revenue"`
}

// ProductSales is one row of the top-products aggregate.
type ProductSales struct {
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	QtySold     int64  `json:"qty_sold"`
	Revenue     int64  `json:"revenue"`
}

// Store is the HQ ledger write path plus the read aggregates the
// reporting boundary consumes.
type Store interface {
	// Ping reports whether the HQ ledger is reachable right now.
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
	UpsertSale(ctx context.Context, sale CloudSale, items []CloudSaleItem) error
	RevenueByBranch(ctx context.Context, since time.Time) ([]BranchRevenue, error)
	TopProducts(ctx context.Context, since time.Time, limit int) ([]ProductSales, error)
	SaleCount(ctx context.Context) (int64, error)
}
