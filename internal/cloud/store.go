package cloud

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smallbiznis/branchledger/internal/cloud/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store accepts replicated sales idempotently. Duplicate pushes of the
// same transaction identifier are no-ops, not errors and not extra rows.
type Store struct {
	db  *gorm.DB
	log *zap.Logger

	ensureOnce sync.Once
	ensureErr  error
}

// NewStore wraps an open HQ ledger handle.
func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{
		db:  db,
		log: log.Named("cloud.store"),
	}
}

// Ping checks HQ ledger reachability without side effects.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// EnsureSchema provisions the consolidated tables on first use. AutoMigrate
// is create-if-not-exists, so a freshly stood-up HQ instance and concurrent
// workers from multiple branches are both safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.ensureOnce.Do(func() {
		s.ensureErr = s.db.WithContext(ctx).AutoMigrate(
			&domain.CloudSale{},
			&domain.CloudSaleItem{},
		)
		if s.ensureErr == nil {
			s.log.Info("cloud ledger schema ready")
		}
	})
	if s.ensureErr != nil {
		return fmt.Errorf("ensure cloud schema: %w", s.ensureErr)
	}
	return nil
}

// UpsertSale writes one sale and its lines in a single cloud transaction.
// Both inserts are keyed conflicts-do-nothing, so re-delivery under
// at-least-once semantics leaves exactly one header and one row per line.
func (s *Store) UpsertSale(ctx context.Context, sale domain.CloudSale, items []domain.CloudSaleItem) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "transaction_id"}},
				DoNothing: true,
			}).
			Create(&sale).Error; err != nil {
			return fmt.Errorf("upsert cloud sale %s: %w", sale.TransactionID, err)
		}

		if len(items) == 0 {
			return nil
		}
		if err := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "transaction_id"}, {Name: "line_no"}},
				DoNothing: true,
			}).
			Create(&items).Error; err != nil {
			return fmt.Errorf("upsert cloud sale items %s: %w", sale.TransactionID, err)
		}
		return nil
	})
}

// RevenueByBranch aggregates replicated revenue per branch since the
// given time.
func (s *Store) RevenueByBranch(ctx context.Context, since time.Time) ([]domain.BranchRevenue, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	var rows []domain.BranchRevenue
	err := s.db.WithContext(ctx).Raw(
		`SELECT branch_code, COUNT(1) AS sale_count, COALESCE(SUM(grand_total), 0) AS revenue
		 FROM cloud_sales
		 WHERE sold_at >= ?
		 GROUP BY branch_code
		 ORDER BY branch_code`,
		since,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// TopProducts ranks replicated products by quantity sold.
func (s *Store) TopProducts(ctx context.Context, since time.Time, limit int) ([]domain.ProductSales, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	var rows []domain.ProductSales
	err := s.db.WithContext(ctx).Raw(
		`SELECT i.product_code, MAX(i.product_name) AS product_name,
		        COALESCE(SUM(i.qty), 0) AS qty_sold,
		        COALESCE(SUM(i.line_subtotal), 0) AS revenue
		 FROM cloud_sale_items i
		 JOIN cloud_sales s ON s.transaction_id = i.transaction_id
		 WHERE s.sold_at >= ?
		 GROUP BY i.product_code
		 ORDER BY qty_sold DESC, i.product_code
		 LIMIT ?`,
		since,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SaleCount returns the total number of consolidated sale headers.
func (s *Store) SaleCount(ctx context.Context) (int64, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return 0, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.CloudSale{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DB exposes the underlying handle for the health probe.
func (s *Store) DB() *gorm.DB { return s.db }
