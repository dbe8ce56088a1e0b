package db

import (
	"time"

	"github.com/smallbiznis/branchledger/internal/config"
	"github.com/smallbiznis/branchledger/internal/observability/logger"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

// OpenCloud opens the HQ ledger handle with pool limits and prometheus
// pool metrics attached.
func OpenCloud(cfg config.Config) (*gorm.DB, error) {
	dialector, err := CloudDialect(cfg)
	if err != nil {
		return nil, err
	}

	// No ping at open: a branch must come up with zero connectivity to HQ.
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:               logger.NewGormLogger(logger.DefaultGormLoggerConfig()),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.CloudDBMaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.CloudDBMaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.CloudDBConnMaxLifetime) * time.Second)

	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          "cloud_ledger",
		RefreshInterval: 15,
	})); err != nil {
		return nil, err
	}

	return conn, nil
}

// OpenBranch opens one branch's local ledger. The pool is bounded so a
// replication drain cannot exhaust connections needed by POS commits.
func OpenBranch(cfg config.Config, branchCode string) (*gorm.DB, error) {
	conn, err := gorm.Open(BranchDialect(cfg.LocalDataDir, branchCode), &gorm.Config{
		Logger: logger.NewGormLogger(logger.DefaultGormLoggerConfig()),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	maxOpen := cfg.LocalDBMaxOpenConn
	if maxOpen <= 0 {
		maxOpen = 5
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)

	return conn, nil
}
