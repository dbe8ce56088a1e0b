package seed

import (
	"context"
	"errors"
	"time"

	ledgerdomain "github.com/smallbiznis/branchledger/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureCatalog seeds a starter product catalog into a fresh branch ledger
// so a newly provisioned store is sellable out of the box. Existing rows
// are left untouched.
func EnsureCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	now := time.Now().UTC()
	products := []ledgerdomain.ProductStock{
		{ProductCode: "P1", ProductName: "Teh Botol 450ml", UnitPrice: 3500, QtyOnHand: 100, UpdatedAt: now},
		{ProductCode: "P2", ProductName: "Roti Tawar", UnitPrice: 4000, QtyOnHand: 100, UpdatedAt: now},
		{ProductCode: "P3", ProductName: "Indomie Goreng", UnitPrice: 3000, QtyOnHand: 200, UpdatedAt: now},
		{ProductCode: "P4", ProductName: "Air Mineral 600ml", UnitPrice: 2500, QtyOnHand: 150, UpdatedAt: now},
	}

	ctx := context.Background()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&products).Error
}
