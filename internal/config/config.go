package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	// LocalDataDir is where per-branch ledger databases live.
	LocalDataDir string
	// Branches is the closed set of tenants this process serves.
	Branches []BranchConfig
	// AllowOversell permits inventory counters to go negative on sale
	// commit. Off by default: a refused sale beats a silent negative
	// counter in a financial ledger.
	AllowOversell bool
	SeedCatalog   bool

	OTLPEndpoint string

	CloudDBType            string
	CloudDBHost            string
	CloudDBPort            string
	CloudDBName            string
	CloudDBUser            string
	CloudDBPassword        string
	CloudDBSSLMode         string
	CloudDBMaxIdleConn     int
	CloudDBMaxOpenConn     int
	CloudDBConnMaxLifetime int

	// LocalDBMaxOpenConn bounds each branch store's pool. The replication
	// worker draws from the same pool, so commits keep priority by keeping
	// drain batches small rather than by a separate pool.
	LocalDBMaxOpenConn int

	// SyncIntervalSeconds is the background replication sweep cadence.
	SyncIntervalSeconds int
	// SyncPushTimeoutSeconds bounds one push to the HQ ledger.
	SyncPushTimeoutSeconds int
	SyncBatchSize          int
}

// BranchConfig identifies one provisioned branch.
type BranchConfig struct {
	Code    string
	Name    string
	Address string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "branchledger"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		LocalDataDir:  getenv("LOCAL_DATA_DIR", "./data"),
		Branches:      parseBranches(getenv("BRANCHES", "")),
		AllowOversell: getenvBool("POS_ALLOW_OVERSELL", false),
		SeedCatalog:   getenvBool("POS_SEED_CATALOG", true),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		CloudDBType:            getenv("CLOUD_DATABASE_TYPE", "postgres"),
		CloudDBHost:            getenv("CLOUD_DATABASE_HOST", "localhost"),
		CloudDBPort:            getenv("CLOUD_DATABASE_PORT", "5432"),
		CloudDBName:            getenv("CLOUD_DATABASE_NAME", "branchledger"),
		CloudDBUser:            getenv("CLOUD_DATABASE_USER", "postgres"),
		CloudDBPassword:        getenv("CLOUD_DATABASE_PASSWORD", ""),
		CloudDBSSLMode:         getenv("CLOUD_DATABASE_SSLMODE", "disable"),
		CloudDBMaxIdleConn:     getenvInt("CLOUD_DATABASE_MAX_IDLE_CONN", 2),
		CloudDBMaxOpenConn:     getenvInt("CLOUD_DATABASE_MAX_OPEN_CONN", 10),
		CloudDBConnMaxLifetime: getenvInt("CLOUD_DATABASE_CONN_MAX_LIFETIME", 3600),

		LocalDBMaxOpenConn: getenvInt("LOCAL_DATABASE_MAX_OPEN_CONN", 5),

		SyncIntervalSeconds:    getenvInt("SYNC_INTERVAL_SECONDS", 30),
		SyncPushTimeoutSeconds: getenvInt("SYNC_PUSH_TIMEOUT_SECONDS", 10),
		SyncBatchSize:          getenvInt("SYNC_BATCH_SIZE", 100),
	}

	return cfg
}

// parseBranches reads "101:Jakarta Pusat:Jl. Sudirman 1,102:Bandung"
// into the closed tenant registry. Name and address segments are
// optional; an entry without a name keeps the code as its name.
func parseBranches(raw string) []BranchConfig {
	parts := strings.Split(raw, ",")
	out := make([]BranchConfig, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		code, rest, _ := strings.Cut(p, ":")
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		name, address, _ := strings.Cut(rest, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			name = code
		}
		out = append(out, BranchConfig{
			Code:    code,
			Name:    name,
			Address: strings.TrimSpace(address),
		})
	}
	if len(out) == 0 {
		log.Println("no branches configured; set BRANCHES")
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
