package pos

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/smallbiznis/branchledger/internal/clock"
	"github.com/smallbiznis/branchledger/internal/config"
	ledgerdomain "github.com/smallbiznis/branchledger/internal/ledger/domain"
	domain "github.com/smallbiznis/branchledger/internal/pos/domain"
	"github.com/smallbiznis/branchledger/internal/tenant"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

type testEnv struct {
	svc    *Service
	router *tenant.Router
	clock  *clock.FakeClock
}

func newTestEnv(t *testing.T, allowOversell bool) *testEnv {
	t.Helper()
	cfg := config.Config{
		LocalDataDir: t.TempDir(),
		Branches: []config.BranchConfig{
			{Code: "101", Name: "Jakarta Pusat"},
			{Code: "102", Name: "Bandung"},
		},
		SeedCatalog:        true,
		AllowOversell:      allowOversell,
		LocalDBMaxOpenConn: 2,
	}
	router, err := tenant.NewRouter(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	t.Cleanup(func() { _ = router.Close() })

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(zap.NewNop(), cfg, router, mustNode(t), clk, nil)
	return &testEnv{svc: svc, router: router, clock: clk}
}

// twoItemCart is a 2x3500 + 1x4000 cart with 1210 tax, grand total 12210.
func twoItemCart(txnID string) domain.CommitSaleRequest {
	return domain.CommitSaleRequest{
		TransactionID: txnID,
		Items: []domain.CartItem{
			{ProductCode: "P1", Qty: 2, UnitPrice: 3500},
			{ProductCode: "P2", Qty: 1, UnitPrice: 4000},
		},
		Subtotal:      11000,
		Tax:           1210,
		GrandTotal:    12210,
		PaymentMethod: ledgerdomain.PaymentMethodCash,
		CashReceived:  20000,
	}
}

func TestCommitSaleRecordsLedgerAndQueue(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	resp, err := env.svc.CommitSale(ctx, "101", twoItemCart("txn-001"))
	if err != nil {
		t.Fatalf("commit sale: %v", err)
	}
	if resp.Transaction.GrandTotal != 12210 {
		t.Fatalf("grand total = %d, want 12210", resp.Transaction.GrandTotal)
	}
	if resp.Transaction.ChangeDue != 7790 {
		t.Fatalf("change due = %d, want 7790", resp.Transaction.ChangeDue)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("line items = %d, want 2", len(resp.Items))
	}
	if resp.Items[0].LineNo != 1 || resp.Items[1].LineNo != 2 {
		t.Fatalf("line numbers = %d,%d, want 1,2", resp.Items[0].LineNo, resp.Items[1].LineNo)
	}
	if resp.Items[0].ProductName != "Teh Botol 450ml" {
		t.Fatalf("product name snapshot = %q", resp.Items[0].ProductName)
	}

	tn, err := env.router.Resolve("101")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var stock ledgerdomain.ProductStock
	if err := tn.DB.Where("product_code = ?", "P1").First(&stock).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if stock.QtyOnHand != 98 {
		t.Fatalf("P1 qty = %d, want 98", stock.QtyOnHand)
	}

	var entry ledgerdomain.OutboundEntry
	if err := tn.DB.Where("transaction_id = ?", "txn-001").First(&entry).Error; err != nil {
		t.Fatalf("load outbound entry: %v", err)
	}
	if entry.Status != ledgerdomain.OutboundStatusPending {
		t.Fatalf("outbound status = %s, want PENDING", entry.Status)
	}
	if entry.TargetTable != "cloud_sales" {
		t.Fatalf("target table = %q", entry.TargetTable)
	}
}

func TestCommitSaleDuplicateTransaction(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	if _, err := env.svc.CommitSale(ctx, "101", twoItemCart("txn-dup")); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	_, err := env.svc.CommitSale(ctx, "101", twoItemCart("txn-dup"))
	if !errors.Is(err, ledgerdomain.ErrDuplicateTransaction) {
		t.Fatalf("err = %v, want ErrDuplicateTransaction", err)
	}

	tn, _ := env.router.Resolve("101")
	var count int64
	tn.DB.Model(&ledgerdomain.SaleTransaction{}).Count(&count)
	if count != 1 {
		t.Fatalf("sale rows = %d, want 1", count)
	}

	// The retry must not double-decrement inventory.
	var stock ledgerdomain.ProductStock
	tn.DB.Where("product_code = ?", "P1").First(&stock)
	if stock.QtyOnHand != 98 {
		t.Fatalf("P1 qty after duplicate = %d, want 98", stock.QtyOnHand)
	}
}

func TestCommitSaleUnknownProductRollsBack(t *testing.T) {
	env := newTestEnv(t, false)

	req := domain.CommitSaleRequest{
		TransactionID: "txn-rollback",
		Items: []domain.CartItem{
			{ProductCode: "P1", Qty: 1, UnitPrice: 3500},
			{ProductCode: "NOPE", Qty: 1, UnitPrice: 100},
		},
		Subtotal:      3600,
		GrandTotal:    3600,
		PaymentMethod: ledgerdomain.PaymentMethodQRIS,
	}
	_, err := env.svc.CommitSale(context.Background(), "101", req)
	if !errors.Is(err, ledgerdomain.ErrUnknownProduct) {
		t.Fatalf("err = %v, want ErrUnknownProduct", err)
	}

	tn, _ := env.router.Resolve("101")
	var headers, entries int64
	tn.DB.Model(&ledgerdomain.SaleTransaction{}).Count(&headers)
	tn.DB.Model(&ledgerdomain.OutboundEntry{}).Count(&entries)
	if headers != 0 || entries != 0 {
		t.Fatalf("rows after rollback: headers=%d entries=%d, want 0,0", headers, entries)
	}

	var stock ledgerdomain.ProductStock
	tn.DB.Where("product_code = ?", "P1").First(&stock)
	if stock.QtyOnHand != 100 {
		t.Fatalf("P1 qty after rollback = %d, want 100", stock.QtyOnHand)
	}
}

func TestCommitSaleInsufficientStock(t *testing.T) {
	env := newTestEnv(t, false)

	req := domain.CommitSaleRequest{
		TransactionID: "txn-oversell",
		Items: []domain.CartItem{
			{ProductCode: "P1", Qty: 1000, UnitPrice: 3500},
		},
		Subtotal:      3500000,
		GrandTotal:    3500000,
		PaymentMethod: ledgerdomain.PaymentMethodDebit,
	}
	_, err := env.svc.CommitSale(context.Background(), "101", req)
	if !errors.Is(err, ledgerdomain.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
}

func TestCommitSaleOversellAllowed(t *testing.T) {
	env := newTestEnv(t, true)

	req := domain.CommitSaleRequest{
		TransactionID: "txn-negative",
		Items: []domain.CartItem{
			{ProductCode: "P1", Qty: 1000, UnitPrice: 3500},
		},
		Subtotal:      3500000,
		GrandTotal:    3500000,
		PaymentMethod: ledgerdomain.PaymentMethodDebit,
	}
	if _, err := env.svc.CommitSale(context.Background(), "101", req); err != nil {
		t.Fatalf("commit with oversell: %v", err)
	}

	tn, _ := env.router.Resolve("101")
	var stock ledgerdomain.ProductStock
	tn.DB.Where("product_code = ?", "P1").First(&stock)
	if stock.QtyOnHand != -900 {
		t.Fatalf("P1 qty = %d, want -900", stock.QtyOnHand)
	}
}

func TestCommitSaleValidation(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*domain.CommitSaleRequest)
		wantErr error
	}{
		{"grand total mismatch", func(r *domain.CommitSaleRequest) { r.GrandTotal = 999 }, ledgerdomain.ErrInvalidTotals},
		{"subtotal mismatch", func(r *domain.CommitSaleRequest) { r.Subtotal = 1 }, ledgerdomain.ErrInvalidTotals},
		{"zero quantity", func(r *domain.CommitSaleRequest) { r.Items[0].Qty = 0 }, ledgerdomain.ErrInvalidQuantity},
		{"unknown payment method", func(r *domain.CommitSaleRequest) { r.PaymentMethod = "GOPAY" }, ledgerdomain.ErrInvalidPayment},
		{"cash short", func(r *domain.CommitSaleRequest) { r.CashReceived = 12000 }, ledgerdomain.ErrInvalidPayment},
		{"empty cart", func(r *domain.CommitSaleRequest) {
			r.Items = nil
			r.Subtotal = 0
			r.GrandTotal = 0
		}, ledgerdomain.ErrInvalidTotals},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := twoItemCart("txn-" + tc.name)
			tc.mutate(&req)
			_, err := env.svc.CommitSale(ctx, "101", req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCommitSaleUnknownBranch(t *testing.T) {
	env := newTestEnv(t, false)
	_, err := env.svc.CommitSale(context.Background(), "999", twoItemCart("txn-x"))
	if err == nil {
		t.Fatal("expected error for unknown branch")
	}
}

type recordingTrigger struct {
	mu     sync.Mutex
	nudged []string
}

func (r *recordingTrigger) Nudge(branchCode string) {
	r.mu.Lock()
	r.nudged = append(r.nudged, branchCode)
	r.mu.Unlock()
}

func TestCommitSaleNudgesReplication(t *testing.T) {
	env := newTestEnv(t, false)
	trigger := &recordingTrigger{}
	env.svc.SetSyncTrigger(trigger)

	if _, err := env.svc.CommitSale(context.Background(), "101", twoItemCart("txn-nudge")); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(trigger.nudged) != 1 || trigger.nudged[0] != "101" {
		t.Fatalf("nudged = %v, want [101]", trigger.nudged)
	}
}

func TestReportDefect(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	err := env.svc.ReportDefect(ctx, "101", domain.DefectReportRequest{
		ProductCode: "P2",
		Qty:         3,
		Reason:      "expired",
	})
	if err != nil {
		t.Fatalf("report defect: %v", err)
	}

	tn, _ := env.router.Resolve("101")
	var stock ledgerdomain.ProductStock
	tn.DB.Where("product_code = ?", "P2").First(&stock)
	if stock.QtyOnHand != 97 {
		t.Fatalf("P2 qty = %d, want 97", stock.QtyOnHand)
	}

	var adj ledgerdomain.StockAdjustment
	if err := tn.DB.Where("product_code = ?", "P2").First(&adj).Error; err != nil {
		t.Fatalf("load adjustment: %v", err)
	}
	if adj.Reason != "expired" || adj.Qty != 3 {
		t.Fatalf("adjustment = %+v", adj)
	}

	err = env.svc.ReportDefect(ctx, "101", domain.DefectReportRequest{ProductCode: "NOPE", Qty: 1})
	if !errors.Is(err, ledgerdomain.ErrUnknownProduct) {
		t.Fatalf("err = %v, want ErrUnknownProduct", err)
	}
}

func TestListSalesPagination(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	for _, id := range []string{"txn-a", "txn-b", "txn-c"} {
		if _, err := env.svc.CommitSale(ctx, "101", twoItemCart(id)); err != nil {
			t.Fatalf("commit %s: %v", id, err)
		}
		env.clock.Advance(time.Minute)
	}

	page1, err := env.svc.ListSales(ctx, "101", domain.ListSalesRequest{})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(page1.Sales) != 3 {
		t.Fatalf("sales = %d, want 3", len(page1.Sales))
	}
	if page1.Sales[0].ID != "txn-c" {
		t.Fatalf("newest first, got %s", page1.Sales[0].ID)
	}

	var req domain.ListSalesRequest
	req.PageSize = 2
	page, err := env.svc.ListSales(ctx, "101", req)
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if len(page.Sales) != 2 || !page.PageInfo.HasMore {
		t.Fatalf("page 1: %d sales, has_more=%v", len(page.Sales), page.PageInfo.HasMore)
	}

	req.PageToken = page.PageInfo.NextPageToken
	page2, err := env.svc.ListSales(ctx, "101", req)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page2.Sales) != 1 || page2.Sales[0].ID != "txn-a" {
		t.Fatalf("page 2 = %+v", page2.Sales)
	}
}

func TestBranchLedgersAreIsolated(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	if _, err := env.svc.CommitSale(ctx, "101", twoItemCart("txn-iso")); err != nil {
		t.Fatalf("commit: %v", err)
	}

	other, _ := env.router.Resolve("102")
	var count int64
	other.DB.Model(&ledgerdomain.SaleTransaction{}).Count(&count)
	if count != 0 {
		t.Fatalf("branch 102 sees %d sales from branch 101", count)
	}

	var stock ledgerdomain.ProductStock
	other.DB.Where("product_code = ?", "P1").First(&stock)
	if stock.QtyOnHand != 100 {
		t.Fatalf("branch 102 stock affected: %d", stock.QtyOnHand)
	}
}
