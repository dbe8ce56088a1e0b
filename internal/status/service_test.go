package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/smallbiznis/branchledger/internal/clock"
	clouddomain "github.com/smallbiznis/branchledger/internal/cloud/domain"
	"github.com/smallbiznis/branchledger/internal/config"
	"github.com/smallbiznis/branchledger/internal/health"
	ledgerdomain "github.com/smallbiznis/branchledger/internal/ledger/domain"
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

func newTestService(t *testing.T, cloud clouddomain.Store) (*Service, *tenant.Router, *clock.FakeClock) {
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

	clk := clock.NewFakeClock(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	probe := health.NewProbe(health.Params{Log: zap.NewNop(), Router: router, Cloud: cloud})
	svc := NewService(Params{Log: zap.NewNop(), Router: router, Probe: probe, Clock: clk})
	return svc, router, clk
}

func queueEntry(id int64, txnID string, status ledgerdomain.OutboundStatus, createdAt time.Time, completedAt *time.Time) ledgerdomain.OutboundEntry {
	return ledgerdomain.OutboundEntry{
		ID:            snowflake.ID(id),
		TargetTable:   "cloud_sales",
		TransactionID: txnID,
		Op:            ledgerdomain.OutboundOpInsert,
		Payload:       []byte(`{}`),
		Status:        status,
		CreatedAt:     createdAt,
		CompletedAt:   completedAt,
	}
}

func TestOverviewCountsBacklog(t *testing.T) {
	svc, router, clk := newTestService(t, &stubCloud{})
	now := clk.Now()

	tn, _ := router.Resolve("101")
	completedAt := now.Add(-2 * time.Hour)
	staleCompletedAt := now.Add(-30 * time.Hour)
	entries := []ledgerdomain.OutboundEntry{
		queueEntry(1, "txn-p1", ledgerdomain.OutboundStatusPending, now.Add(-10*time.Minute), nil),
		queueEntry(2, "txn-p2", ledgerdomain.OutboundStatusPending, now.Add(-5*time.Minute), nil),
		queueEntry(3, "txn-f1", ledgerdomain.OutboundStatusFailed, now.Add(-20*time.Minute), nil),
		queueEntry(4, "txn-c1", ledgerdomain.OutboundStatusCompleted, now.Add(-3*time.Hour), &completedAt),
		queueEntry(5, "txn-c2", ledgerdomain.OutboundStatusCompleted, now.Add(-31*time.Hour), &staleCompletedAt),
	}
	for i := range entries {
		if err := tn.DB.Create(&entries[i]).Error; err != nil {
			t.Fatalf("insert entry: %v", err)
		}
	}

	overview := svc.Overview(context.Background())
	if !overview.CloudReachable {
		t.Fatal("cloud should be reachable")
	}
	if len(overview.Branches) != 1 {
		t.Fatalf("branches = %d, want 1", len(overview.Branches))
	}

	bs := overview.Branches[0]
	if bs.PendingCount != 2 {
		t.Fatalf("pending = %d, want 2", bs.PendingCount)
	}
	if bs.FailedCount != 1 {
		t.Fatalf("failed = %d, want 1", bs.FailedCount)
	}
	if bs.CompletedLast24h != 1 {
		t.Fatalf("completed last 24h = %d, want 1", bs.CompletedLast24h)
	}
	if bs.LastSyncedAt == nil || !bs.LastSyncedAt.Equal(completedAt) {
		t.Fatalf("last synced = %v, want %v", bs.LastSyncedAt, completedAt)
	}
	// Oldest owed entry is the failed one from 20 minutes ago.
	if bs.OldestPendingAge != "20m0s" {
		t.Fatalf("oldest pending age = %q, want 20m0s", bs.OldestPendingAge)
	}
}

func TestOverviewReportsCloudOutage(t *testing.T) {
	svc, _, _ := newTestService(t, &stubCloud{pingErr: errors.New("unreachable")})

	overview := svc.Overview(context.Background())
	if overview.CloudReachable {
		t.Fatal("cloud reported reachable during outage")
	}
	if len(overview.Branches) != 1 {
		t.Fatalf("branches = %d, want 1; status must answer while offline", len(overview.Branches))
	}
	for _, st := range overview.Stores {
		if st.Store == health.StoreCloud && st.Error == "" {
			t.Fatal("cloud store entry should carry the outage error")
		}
	}
}

func TestOverviewIncludesStoreLatencies(t *testing.T) {
	svc, _, _ := newTestService(t, &stubCloud{})

	overview := svc.Overview(context.Background())
	if len(overview.Stores) != 2 {
		t.Fatalf("stores = %d, want branch + cloud", len(overview.Stores))
	}

	byName := make(map[string]health.StoreStatus, len(overview.Stores))
	for _, st := range overview.Stores {
		byName[st.Store] = st
	}
	branch, ok := byName["branch_101"]
	if !ok || !branch.Reachable {
		t.Fatalf("branch store missing or unreachable: %+v", overview.Stores)
	}
	if branch.LatencyMs < 0 {
		t.Fatalf("branch latency = %d", branch.LatencyMs)
	}
	cloud, ok := byName[health.StoreCloud]
	if !ok || !cloud.Reachable {
		t.Fatalf("cloud store missing or unreachable: %+v", overview.Stores)
	}
}

func TestOverviewEmptyQueue(t *testing.T) {
	svc, _, _ := newTestService(t, &stubCloud{})

	overview := svc.Overview(context.Background())
	bs := overview.Branches[0]
	if bs.PendingCount != 0 || bs.FailedCount != 0 {
		t.Fatalf("fresh branch backlog = %+v", bs)
	}
	if bs.LastSyncedAt != nil {
		t.Fatalf("last synced = %v, want nil", bs.LastSyncedAt)
	}
	if bs.OldestPendingAge != "" {
		t.Fatalf("oldest pending age = %q, want empty", bs.OldestPendingAge)
	}
}
