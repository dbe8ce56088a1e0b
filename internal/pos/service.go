package pos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/branchledger/internal/clock"
	"github.com/smallbiznis/branchledger/internal/config"
	ledgerdomain "github.com/smallbiznis/branchledger/internal/ledger/domain"
	"github.com/smallbiznis/branchledger/internal/observability/metrics"
	domain "github.com/smallbiznis/branchledger/internal/pos/domain"
	"github.com/smallbiznis/branchledger/internal/tenant"
	"github.com/smallbiznis/branchledger/pkg/db"
	"github.com/smallbiznis/branchledger/pkg/db/pagination"
)

// Service records sales and stock movements against a branch's local
// ledger. Every write lands in the branch sqlite file; nothing here ever
// opens a connection to the consolidated ledger.
type Service struct {
	log           *zap.Logger
	router        *tenant.Router
	node          *snowflake.Node
	clock         clock.Clock
	metrics       *metrics.Metrics
	trigger       domain.SyncTrigger
	allowOversell bool
}

var _ domain.Service = (*Service)(nil)

func NewService(
	log *zap.Logger,
	cfg config.Config,
	router *tenant.Router,
	node *snowflake.Node,
	clk clock.Clock,
	m *metrics.Metrics,
) *Service {
	return &Service{
		log:           log.Named("pos.service"),
		router:        router,
		node:          node,
		clock:         clk,
		metrics:       m,
		allowOversell: cfg.AllowOversell,
	}
}

// SetSyncTrigger attaches the replication nudge. Optional; the service
// is fully functional without it.
func (s *Service) SetSyncTrigger(t domain.SyncTrigger) {
	s.trigger = t
}

// CommitSale durably records a sale in the branch ledger and enqueues it
// for replication inside the same transaction. On any failure the ledger
// is left untouched.
func (s *Service) CommitSale(ctx context.Context, branchCode string, req domain.CommitSaleRequest) (*domain.CommitSaleResponse, error) {
	t, err := s.router.Resolve(branchCode)
	if err != nil {
		return nil, err
	}

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	txnID := req.TransactionID
	if txnID == "" {
		txnID = uuid.NewString()
	}

	now := s.clock.Now()

	header := ledgerdomain.SaleTransaction{
		ID:            txnID,
		BranchCode:    branchCode,
		Subtotal:      req.Subtotal,
		Discount:      req.Discount,
		Tax:           req.Tax,
		GrandTotal:    req.GrandTotal,
		PaymentMethod: req.PaymentMethod,
		CashReceived:  req.CashReceived,
		Synced:        false,
		CreatedAt:     now,
	}
	if req.PaymentMethod == ledgerdomain.PaymentMethodCash {
		header.ChangeDue = req.CashReceived - req.GrandTotal
	}

	items := make([]ledgerdomain.SaleLineItem, 0, len(req.Items))

	err = t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&header).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return ledgerdomain.ErrDuplicateTransaction
			}
			return err
		}

		for i, line := range req.Items {
			var stock ledgerdomain.ProductStock
			if err := tx.Where("product_code = ?", line.ProductCode).First(&stock).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: %s", ledgerdomain.ErrUnknownProduct, line.ProductCode)
				}
				return err
			}

			item := ledgerdomain.SaleLineItem{
				ID:            s.node.Generate(),
				TransactionID: txnID,
				LineNo:        i + 1,
				ProductCode:   line.ProductCode,
				ProductName:   stock.ProductName,
				Qty:           line.Qty,
				UnitPrice:     line.UnitPrice,
				LineSubtotal:  line.Qty * line.UnitPrice,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			items = append(items, item)

			if err := s.decrementStock(tx, line.ProductCode, line.Qty); err != nil {
				return err
			}
		}

		payload, err := json.Marshal(ledgerdomain.SalePayload{
			Transaction: header,
			Items:       items,
		})
		if err != nil {
			return err
		}

		entry := ledgerdomain.OutboundEntry{
			ID:            s.node.Generate(),
			TargetTable:   "cloud_sales",
			TransactionID: txnID,
			Op:            ledgerdomain.OutboundOpInsert,
			Payload:       payload,
			Status:        ledgerdomain.OutboundStatusPending,
			CreatedAt:     now,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		s.metrics.RecordCommitFailure(ctx, branchCode, failureReason(err))
		if isDomainErr(err) {
			return nil, err
		}
		s.log.Error("sale commit failed",
			zap.String("branch_code", branchCode),
			zap.String("transaction_id", txnID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ledgerdomain.ErrCommitFailed, err)
	}

	s.metrics.RecordSaleCommitted(ctx, branchCode, string(req.PaymentMethod))
	s.log.Info("sale committed",
		zap.String("branch_code", branchCode),
		zap.String("transaction_id", txnID),
		zap.Int64("grand_total", header.GrandTotal),
		zap.Int("line_items", len(items)),
	)

	if s.trigger != nil {
		s.trigger.Nudge(branchCode)
	}

	return &domain.CommitSaleResponse{Transaction: header, Items: items}, nil
}

// decrementStock applies a guarded decrement so concurrent sales cannot
// drive inventory below zero unless oversell is explicitly enabled.
func (s *Service) decrementStock(tx *gorm.DB, productCode string, qty int64) error {
	q := tx.Model(&ledgerdomain.ProductStock{}).
		Where("product_code = ?", productCode)
	if !s.allowOversell {
		q = q.Where("qty_on_hand >= ?", qty)
	}
	res := q.Update("qty_on_hand", gorm.Expr("qty_on_hand - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ledgerdomain.ErrInsufficientStock, productCode)
	}
	return nil
}

// ReportDefect removes damaged or expired stock from inventory and
// records the adjustment for audit. Defect reports stay local; they are
// not replicated.
func (s *Service) ReportDefect(ctx context.Context, branchCode string, req domain.DefectReportRequest) error {
	t, err := s.router.Resolve(branchCode)
	if err != nil {
		return err
	}
	if req.Qty <= 0 {
		return ledgerdomain.ErrInvalidQuantity
	}

	err = t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stock ledgerdomain.ProductStock
		if err := tx.Where("product_code = ?", req.ProductCode).First(&stock).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ledgerdomain.ErrUnknownProduct, req.ProductCode)
			}
			return err
		}
		if err := s.decrementStock(tx, req.ProductCode, req.Qty); err != nil {
			return err
		}
		adj := ledgerdomain.StockAdjustment{
			ID:          s.node.Generate(),
			ProductCode: req.ProductCode,
			Qty:         req.Qty,
			Reason:      req.Reason,
			CreatedAt:   s.clock.Now(),
		}
		return tx.Create(&adj).Error
	})
	if err != nil {
		return err
	}

	s.metrics.RecordDefectReport(ctx, branchCode)
	s.log.Info("defect recorded",
		zap.String("branch_code", branchCode),
		zap.String("product_code", req.ProductCode),
		zap.Int64("qty", req.Qty),
	)
	return nil
}

// ListSales returns the branch's recorded sales, newest first, with
// keyset pagination.
func (s *Service) ListSales(ctx context.Context, branchCode string, req domain.ListSalesRequest) (*domain.ListSalesResponse, error) {
	t, err := s.router.Resolve(branchCode)
	if err != nil {
		return nil, err
	}

	limit := req.Limit()
	q := t.DB.WithContext(ctx).
		Model(&ledgerdomain.SaleTransaction{}).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, err
		}
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var sales []ledgerdomain.SaleTransaction
	if err := q.Find(&sales).Error; err != nil {
		return nil, err
	}

	sales, pageInfo, err := pagination.BuildCursorPageInfo(sales, limit, func(s ledgerdomain.SaleTransaction) pagination.Cursor {
		return pagination.Cursor{ID: s.ID, CreatedAt: s.CreatedAt}
	})
	if err != nil {
		return nil, err
	}

	return &domain.ListSalesResponse{Sales: sales, PageInfo: *pageInfo}, nil
}

func validateRequest(req domain.CommitSaleRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: empty cart", ledgerdomain.ErrInvalidTotals)
	}
	var subtotal int64
	for _, line := range req.Items {
		if line.Qty <= 0 {
			return fmt.Errorf("%w: %s", ledgerdomain.ErrInvalidQuantity, line.ProductCode)
		}
		if line.UnitPrice < 0 {
			return fmt.Errorf("%w: negative unit price on %s", ledgerdomain.ErrInvalidTotals, line.ProductCode)
		}
		subtotal += line.Qty * line.UnitPrice
	}
	if req.Subtotal != subtotal {
		return fmt.Errorf("%w: subtotal %d does not match line items %d", ledgerdomain.ErrInvalidTotals, req.Subtotal, subtotal)
	}
	if req.Discount < 0 || req.Tax < 0 {
		return fmt.Errorf("%w: negative discount or tax", ledgerdomain.ErrInvalidTotals)
	}
	if want := subtotal - req.Discount + req.Tax; req.GrandTotal != want {
		return fmt.Errorf("%w: grand total %d, expected %d", ledgerdomain.ErrInvalidTotals, req.GrandTotal, want)
	}
	if req.GrandTotal < 0 {
		return fmt.Errorf("%w: negative grand total", ledgerdomain.ErrInvalidTotals)
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("%w: %q", ledgerdomain.ErrInvalidPayment, req.PaymentMethod)
	}
	if req.PaymentMethod == ledgerdomain.PaymentMethodCash && req.CashReceived < req.GrandTotal {
		return fmt.Errorf("%w: cash received %d below grand total %d", ledgerdomain.ErrInvalidPayment, req.CashReceived, req.GrandTotal)
	}
	return nil
}

func isDomainErr(err error) bool {
	for _, d := range []error{
		ledgerdomain.ErrDuplicateTransaction,
		ledgerdomain.ErrUnknownProduct,
		ledgerdomain.ErrInsufficientStock,
		ledgerdomain.ErrInvalidTotals,
		ledgerdomain.ErrInvalidPayment,
		ledgerdomain.ErrInvalidQuantity,
	} {
		if errors.Is(err, d) {
			return true
		}
	}
	return false
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ledgerdomain.ErrDuplicateTransaction):
		return "duplicate"
	case errors.Is(err, ledgerdomain.ErrUnknownProduct):
		return "unknown_product"
	case errors.Is(err, ledgerdomain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ledgerdomain.ErrInvalidTotals), errors.Is(err, ledgerdomain.ErrInvalidQuantity):
		return "invalid_totals"
	case errors.Is(err, ledgerdomain.ErrInvalidPayment):
		return "invalid_payment"
	default:
		return "internal"
	}
}
