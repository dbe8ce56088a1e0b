package tenant

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/smallbiznis/branchledger/internal/config"
	"github.com/smallbiznis/branchledger/internal/migration"
	"github.com/smallbiznis/branchledger/internal/seed"
	"github.com/smallbiznis/branchledger/internal/tenant/domain"
	"github.com/smallbiznis/branchledger/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Tenant pairs a branch with its open local ledger handle.
type Tenant struct {
	Branch domain.Branch
	DB     *gorm.DB
}

// Router resolves branch codes to their isolated local ledger stores. The
// registry is resolved once at startup into a closed set of handles; there
// is no dynamic schema naming anywhere downstream.
type Router struct {
	log     *zap.Logger
	tenants map[string]*Tenant
	order   []string
}

// NewRouter opens one ledger database per configured branch, migrating
// each schema and seeding the catalog when requested.
func NewRouter(cfg config.Config, log *zap.Logger) (*Router, error) {
	if len(cfg.Branches) == 0 {
		return nil, fmt.Errorf("tenant router: no branches configured")
	}
	if err := os.MkdirAll(cfg.LocalDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("tenant router: create data dir: %w", err)
	}

	r := &Router{
		log:     log.Named("tenant.router"),
		tenants: make(map[string]*Tenant, len(cfg.Branches)),
	}

	for _, bc := range cfg.Branches {
		code := strings.TrimSpace(bc.Code)
		if code == "" {
			continue
		}
		if _, exists := r.tenants[code]; exists {
			return nil, fmt.Errorf("tenant router: duplicate branch code %q", code)
		}

		conn, err := db.OpenBranch(cfg, code)
		if err != nil {
			return nil, fmt.Errorf("tenant router: open branch %s: %w", code, err)
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("tenant router: branch %s handle: %w", code, err)
		}
		if err := migration.RunMigrations(sqlDB); err != nil {
			return nil, fmt.Errorf("tenant router: migrate branch %s: %w", code, err)
		}
		if cfg.SeedCatalog {
			if err := seed.EnsureCatalog(conn); err != nil {
				return nil, fmt.Errorf("tenant router: seed branch %s: %w", code, err)
			}
		}

		r.tenants[code] = &Tenant{
			Branch: domain.Branch{
				Code:    code,
				Name:    bc.Name,
				Address: bc.Address,
				Active:  true,
			},
			DB: conn,
		}
		r.order = append(r.order, code)
		r.log.Info("branch ledger ready", zap.String("branch_code", code))
	}

	sort.Strings(r.order)
	return r, nil
}

// Resolve returns the tenant for a branch code, or ErrUnknownBranch.
func (r *Router) Resolve(code string) (*Tenant, error) {
	tenant, ok := r.tenants[strings.TrimSpace(code)]
	if !ok {
		return nil, domain.ErrUnknownBranch
	}
	return tenant, nil
}

// Tenants returns all tenants in stable branch-code order.
func (r *Router) Tenants() []*Tenant {
	out := make([]*Tenant, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.tenants[code])
	}
	return out
}

// Close shuts down every branch handle.
func (r *Router) Close() error {
	var firstErr error
	for _, code := range r.order {
		sqlDB, err := r.tenants[code].DB.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := sqlDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
