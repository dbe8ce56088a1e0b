package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodQRIS   PaymentMethod = "QRIS"
	PaymentMethodDebit  PaymentMethod = "DEBIT"
	PaymentMethodCredit PaymentMethod = "CREDIT"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodQRIS, PaymentMethodDebit, PaymentMethodCredit:
		return true
	}
	return false
}

// OutboundStatus is the replication lifecycle of a queue entry.
type OutboundStatus string

const (
	OutboundStatusPending   OutboundStatus = "PENDING"
	OutboundStatusCompleted OutboundStatus = "COMPLETED"
	// OutboundStatusFailed is always retryable. There is no terminal
	// failure state short of operator intervention; dropping a sale is
	// not an option for a financial ledger.
	OutboundStatusFailed OutboundStatus = "FAILED"
)

// OutboundOp is the replicated operation kind.
type OutboundOp string

const (
	OutboundOpInsert OutboundOp = "INSERT"
)

// SaleTransaction is the immutable header of a completed sale. The ID is
// assigned client-side before any persistence so it is stable across
// retries; replication only ever inserts it or confirms its existence.
// All monetary amounts are integer rupiah.
type SaleTransaction struct {
	ID            string        `gorm:"type:text;primaryKey" json:"id"`
	BranchCode    string        `gorm:"type:text;not null;index" json:"branch_code"`
	Subtotal      int64         `gorm:"not null" json:"subtotal"`
	Discount      int64         `gorm:"not null" json:"discount"`
	Tax           int64         `gorm:"not null" json:"tax"`
	GrandTotal    int64         `gorm:"not null" json:"grand_total"`
	PaymentMethod PaymentMethod `gorm:"type:text;not null" json:"payment_method"`
	CashReceived  int64         `gorm:"not null;default:0" json:"cash_received"`
	ChangeDue     int64         `gorm:"not null;default:0" json:"change_due"`
	Synced        bool          `gorm:"not null;default:false;index" json:"synced"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (SaleTransaction) TableName() string { return "sale_transactions" }

// SaleLineItem belongs to exactly one SaleTransaction. UnitPrice is a
// snapshot taken at sale time, independent of the current catalog price.
type SaleLineItem struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	TransactionID string       `gorm:"type:text;not null;uniqueIndex:ux_sale_items_txn_line,priority:1" json:"transaction_id"`
	LineNo        int          `gorm:"not null;uniqueIndex:ux_sale_items_txn_line,priority:2" json:"line_no"`
	ProductCode   string       `gorm:"type:text;not null" json:"product_code"`
	ProductName   string       `gorm:"type:text;not null" json:"product_name"`
	Qty           int64        `gorm:"not null" json:"qty"`
	UnitPrice     int64        `gorm:"not null" json:"unit_price"`
	LineSubtotal  int64        `gorm:"not null" json:"line_subtotal"`
}

// TableName sets the database table name.
func (SaleLineItem) TableName() string { return "sale_line_items" }

// ProductStock is the per-branch quantity-on-hand counter plus a catalog
// snapshot. Decremented under the same transaction as the sale commit, so
// concurrent sales of one product serialize at the row.
type ProductStock struct {
	ProductCode string    `gorm:"type:text;primaryKey" json:"product_code"`
	ProductName string    `gorm:"type:text;not null" json:"product_name"`
	UnitPrice   int64     `gorm:"not null" json:"unit_price"`
	QtyOnHand   int64     `gorm:"not null;default:0" json:"qty_on_hand"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (ProductStock) TableName() string { return "product_stocks" }

// StockAdjustment records a non-sale inventory mutation (defect report).
type StockAdjustment struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ProductCode string       `gorm:"type:text;not null;index" json:"product_code"`
	Qty         int64        `gorm:"not null" json:"qty"`
	Reason      string       `gorm:"type:text;not null" json:"reason"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (StockAdjustment) TableName() string { return "stock_adjustments" }

// OutboundEntry is one unit of replication work owed to the cloud ledger.
// Created in the same local transaction as the sale it carries, and never
// deleted: completed rows stay behind as the audit trail. Payload is a
// serialized snapshot so a push never re-reads mutable state.
type OutboundEntry struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	TargetTable   string         `gorm:"type:text;not null" json:"target_table"`
	TransactionID string         `gorm:"type:text;not null;uniqueIndex" json:"transaction_id"`
	Op            OutboundOp     `gorm:"type:text;not null" json:"op"`
	Payload       datatypes.JSON `gorm:"not null" json:"payload"`
	Status        OutboundStatus `gorm:"type:text;not null;default:'PENDING';index" json:"status"`
	RetryCount    int            `gorm:"not null;default:0" json:"retry_count"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// TableName sets the database table name.
func (OutboundEntry) TableName() string { return "outbound_queue" }

// SalePayload is the replication snapshot serialized into an OutboundEntry.
type SalePayload struct {
	Transaction SaleTransaction `json:"transaction"`
	Items       []SaleLineItem  `json:"items"`
}
