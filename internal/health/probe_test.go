package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	clouddomain "github.com/smallbiznis/branchledger/internal/cloud/domain"
	"github.com/smallbiznis/branchledger/internal/config"
	"github.com/smallbiznis/branchledger/internal/tenant"
)

type stubCloud struct {
	pingErr error
}

func (s *stubCloud) Ping(context.Context) error        { return s.pingErr }
func (s *stubCloud) EnsureSchema(context.Context) error { return nil }
func (s *stubCloud) UpsertSale(context.Context, clouddomain.CloudSale, []clouddomain.CloudSaleItem) error {
	return nil
}
func (s *stubCloud) RevenueByBranch(context.Context, time.Time) ([]clouddomain.BranchRevenue, error) {
	return nil, nil
}
func (s *stubCloud) TopProducts(context.Context, time.Time, int) ([]clouddomain.ProductSales, error) {
	return nil, nil
}
func (s *stubCloud) SaleCount(context.Context) (int64, error) { return 0, nil }

func newTestProbe(t *testing.T, cloud clouddomain.Store) *Probe {
	t.Helper()
	cfg := config.Config{
		LocalDataDir:       t.TempDir(),
		Branches:           []config.BranchConfig{{Code: "101", Name: "Jakarta Pusat"}},
		LocalDBMaxOpenConn: 2,
	}
	router, err := tenant.NewRouter(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	t.Cleanup(func() { _ = router.Close() })

	return NewProbe(Params{Log: zap.NewNop(), Router: router, Cloud: cloud})
}

func TestCheckAllReachable(t *testing.T) {
	probe := newTestProbe(t, &stubCloud{})

	report := probe.Check(context.Background())
	if report.Status != "ok" {
		t.Fatalf("status = %q, want ok", report.Status)
	}
	if len(report.Stores) != 2 {
		t.Fatalf("stores = %d, want branch + cloud", len(report.Stores))
	}
	for _, s := range report.Stores {
		if !s.Reachable {
			t.Fatalf("store %s unreachable: %s", s.Store, s.Error)
		}
	}
}

func TestCheckDegradedWhenCloudDown(t *testing.T) {
	probe := newTestProbe(t, &stubCloud{pingErr: errors.New("connection refused")})

	report := probe.Check(context.Background())
	if report.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", report.Status)
	}

	var cloudStatus *StoreStatus
	for i := range report.Stores {
		if report.Stores[i].Store == "cloud" {
			cloudStatus = &report.Stores[i]
		}
	}
	if cloudStatus == nil {
		t.Fatal("no cloud store in report")
	}
	if cloudStatus.Reachable {
		t.Fatal("cloud reported reachable")
	}
	if cloudStatus.Error == "" {
		t.Fatal("cloud error not carried in report")
	}

	// The branch stays green; an HQ outage never fails the probe.
	for _, s := range report.Stores {
		if s.Store == "branch_101" && !s.Reachable {
			t.Fatalf("branch unreachable: %s", s.Error)
		}
	}
}
