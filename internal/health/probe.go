package health

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	clouddomain "github.com/smallbiznis/branchledger/internal/cloud/domain"
	"github.com/smallbiznis/branchledger/internal/tenant"
)

// StoreStatus is the probe result for one datastore.
type StoreStatus struct {
	Store     string `json:"store"`
	Reachable bool   `json:"reachable"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Report is a point-in-time view of every datastore the process talks
// to. The process itself is healthy as long as it can answer; an
// unreachable cloud is reported, never fatal.
type Report struct {
	Status string        `json:"status"`
	Stores []StoreStatus `json:"stores"`
}

const probeTimeout = 2 * time.Second

// StoreCloud names the HQ ledger entry in a Report; branch entries are
// named "branch_<code>".
const StoreCloud = "cloud"

// Probe checks the branch ledgers and the HQ ledger.
type Probe struct {
	log    *zap.Logger
	router *tenant.Router
	cloud  clouddomain.Store
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Router *tenant.Router
	Cloud  clouddomain.Store
}

func NewProbe(p Params) *Probe {
	return &Probe{
		log:    p.Log.Named("health.probe"),
		router: p.Router,
		cloud:  p.Cloud,
	}
}

// Check pings every store with a short per-store timeout. It never
// returns an error; failures are carried in the report.
func (p *Probe) Check(ctx context.Context) Report {
	report := Report{Status: "ok"}

	for _, t := range p.router.Tenants() {
		status := p.pingBranch(ctx, t)
		if !status.Reachable {
			report.Status = "degraded"
		}
		report.Stores = append(report.Stores, status)
	}

	cloudStatus := p.pingCloud(ctx)
	if !cloudStatus.Reachable {
		// Expected during an outage. The branch keeps selling.
		report.Status = "degraded"
	}
	report.Stores = append(report.Stores, cloudStatus)

	return report
}

func (p *Probe) pingBranch(ctx context.Context, t *tenant.Tenant) StoreStatus {
	status := StoreStatus{Store: "branch_" + t.Branch.Code}
	sqlDB, err := t.DB.DB()
	if err != nil {
		status.Error = err.Error()
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Reachable = true
	status.LatencyMs = time.Since(start).Milliseconds()
	return status
}

func (p *Probe) pingCloud(ctx context.Context) StoreStatus {
	status := StoreStatus{Store: StoreCloud}

	pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	if err := p.cloud.Ping(pingCtx); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Reachable = true
	status.LatencyMs = time.Since(start).Milliseconds()
	return status
}
