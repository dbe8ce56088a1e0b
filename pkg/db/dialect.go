package db

import (
	"fmt"

	"github.com/smallbiznis/branchledger/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// CloudDialect selects the HQ ledger dialector from config.
func CloudDialect(cfg config.Config) (gorm.Dialector, error) {
	switch cfg.CloudDBType {
	case "mysql":
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.CloudDBUser,
			cfg.CloudDBPassword,
			cfg.CloudDBHost,
			cfg.CloudDBPort,
			cfg.CloudDBName,
		)), nil
	case "postgres":
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.CloudDBHost,
			cfg.CloudDBUser,
			cfg.CloudDBPassword,
			cfg.CloudDBName,
			cfg.CloudDBPort,
			cfg.CloudDBSSLMode,
		)), nil
	case "sqlite":
		return sqlite.Open(fmt.Sprintf("%s/cloud.db?_pragma=busy_timeout(5000)", cfg.LocalDataDir)), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.CloudDBType)
	}
}

// BranchDialect returns the sqlite dialector for one branch's local ledger.
func BranchDialect(dataDir, branchCode string) gorm.Dialector {
	return sqlite.Open(fmt.Sprintf("%s/branch_%s.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dataDir, branchCode))
}
