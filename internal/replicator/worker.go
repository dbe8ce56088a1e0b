package replicator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/branchledger/internal/clock"
	clouddomain "github.com/smallbiznis/branchledger/internal/cloud/domain"
	ledgerdomain "github.com/smallbiznis/branchledger/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/branchledger/internal/observability/metrics"
	"github.com/smallbiznis/branchledger/internal/tenant"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Router  *tenant.Router
	Cloud   clouddomain.Store
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics
	Config  Config `optional:"true"`
}

// Worker drains each branch's outbound queue into the consolidated HQ
// ledger. Delivery is at-least-once: an entry is only marked COMPLETED
// after the cloud write returns, and the cloud side absorbs re-delivery
// through keyed idempotent inserts.
type Worker struct {
	log     *zap.Logger
	router  *tenant.Router
	cloud   clouddomain.Store
	clock   clock.Clock
	metrics *obsmetrics.Metrics
	cfg     Config

	sweeping atomic.Bool
	nudges   chan string
}

var ErrInvalidConfig = errors.New("replicator: missing required dependency")

func New(p Params) (*Worker, error) {
	if p.Log == nil || p.Router == nil || p.Cloud == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Worker{
		log:     p.Log.Named("replicator.worker"),
		router:  p.Router,
		cloud:   p.Cloud,
		clock:   p.Clock,
		metrics: p.Metrics,
		cfg:     p.Config.withDefaults(),
		nudges:  make(chan string, 64),
	}, nil
}

// Nudge requests an immediate sweep after a commit. Best-effort: when
// the channel is full a sweep is already owed, so dropping is fine.
func (w *Worker) Nudge(branchCode string) {
	select {
	case w.nudges <- branchCode:
	default:
	}
}

// RunOnce drains every branch sequentially, oldest entries first. The
// sweep is gated on a cheap reachability probe so an offline branch
// skips the queue walk instead of timing out per entry.
func (w *Worker) RunOnce(ctx context.Context) error {
	workerMetrics := obsmetrics.Worker()
	start := w.clock.Now()
	workerMetrics.IncSweepRun()
	defer func() {
		workerMetrics.ObserveSweepDuration(time.Since(start))
	}()

	probeCtx, cancel := context.WithTimeout(ctx, w.cfg.ProbeTimeout)
	err := w.cloud.Ping(probeCtx)
	cancel()
	if err != nil {
		workerMetrics.IncSweepSkipped()
		w.log.Debug("cloud unreachable, sweep skipped", zap.Error(err))
		w.refreshQueueDepths(ctx)
		return nil
	}

	var sweepErr error
	for _, t := range w.router.Tenants() {
		if ctx.Err() != nil {
			return errors.Join(sweepErr, ctx.Err())
		}
		if _, err := w.DrainBranch(ctx, t); err != nil {
			sweepErr = errors.Join(sweepErr, fmt.Errorf("branch %s: %w", t.Branch.Code, err))
		}
	}
	w.refreshQueueDepths(ctx)
	return sweepErr
}

// DrainBranch pushes the branch's pending and failed entries in commit
// order. The drain stops at the first push failure so a later sale never
// reaches HQ before an earlier one; the remainder waits for the next
// sweep.
func (w *Worker) DrainBranch(ctx context.Context, t *tenant.Tenant) (int, error) {
	pushed := 0
	for {
		if ctx.Err() != nil {
			return pushed, ctx.Err()
		}

		var entries []ledgerdomain.OutboundEntry
		err := t.DB.WithContext(ctx).
			Where("status IN ?", []ledgerdomain.OutboundStatus{
				ledgerdomain.OutboundStatusPending,
				ledgerdomain.OutboundStatusFailed,
			}).
			Order("created_at ASC, id ASC").
			Limit(w.cfg.BatchSize).
			Find(&entries).Error
		if err != nil {
			return pushed, err
		}
		if len(entries) == 0 {
			return pushed, nil
		}

		for i := range entries {
			if err := w.ReplicateOne(ctx, t, &entries[i]); err != nil {
				return pushed, err
			}
			pushed++
			if entries[i].Status != ledgerdomain.OutboundStatusCompleted {
				// Pushed but not marked COMPLETED locally. Refetching
				// would return the same rows and re-push them in a hot
				// loop; leave the rest for the next sweep.
				return pushed, nil
			}
		}

		if len(entries) < w.cfg.BatchSize {
			return pushed, nil
		}
	}
}

// ReplicateOne pushes a single queue entry to the cloud ledger and
// records the outcome locally. A push failure moves the entry to FAILED
// with the error attached; FAILED entries are picked up again by the
// next sweep, indefinitely.
func (w *Worker) ReplicateOne(ctx context.Context, t *tenant.Tenant, entry *ledgerdomain.OutboundEntry) error {
	workerMetrics := obsmetrics.Worker()
	branchCode := t.Branch.Code

	var payload ledgerdomain.SalePayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		// A corrupt payload can never succeed; surface it loudly but
		// leave the entry in place for operator inspection.
		corrupt := fmt.Errorf("%w: entry %d: %v", ledgerdomain.ErrPayloadCorrupt, entry.ID, err)
		w.markFailed(ctx, t, entry, corrupt)
		workerMetrics.IncPushResult(branchCode, "corrupt")
		return corrupt
	}

	sale, items := toCloudRecords(payload, w.clock.Now())

	pushCtx, cancel := context.WithTimeout(ctx, w.cfg.PushTimeout)
	pushStart := time.Now()
	err := w.cloud.UpsertSale(pushCtx, sale, items)
	workerMetrics.ObserveCloudLatency(time.Since(pushStart))
	cancel()
	if err != nil {
		w.markFailed(ctx, t, entry, err)
		workerMetrics.IncPushResult(branchCode, "error")
		w.metrics.RecordReplicationRetry(ctx, branchCode)
		return fmt.Errorf("%w: %v", ledgerdomain.ErrReplicationFailed, err)
	}

	// The sale is durable at HQ from here on. Local bookkeeping failures
	// below only cause a redundant re-push, which the cloud upsert
	// absorbs, so they are logged rather than returned.
	now := w.clock.Now()
	err = t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ledgerdomain.OutboundEntry{}).
			Where("id = ?", entry.ID).
			Updates(map[string]any{
				"status":       ledgerdomain.OutboundStatusCompleted,
				"completed_at": now,
				"last_error":   "",
			}).Error; err != nil {
			return err
		}
		return tx.Model(&ledgerdomain.SaleTransaction{}).
			Where("id = ?", entry.TransactionID).
			Update("synced", true).Error
	})
	if err != nil {
		w.log.Warn("replicated sale not marked locally, will re-push",
			zap.String("branch_code", branchCode),
			zap.String("transaction_id", entry.TransactionID),
			zap.Error(err),
		)
	} else {
		entry.Status = ledgerdomain.OutboundStatusCompleted
		entry.CompletedAt = &now
	}

	workerMetrics.IncPushResult(branchCode, "ok")
	w.metrics.RecordReplicationPush(ctx, branchCode, "ok")
	w.log.Info("sale replicated",
		zap.String("branch_code", branchCode),
		zap.String("transaction_id", entry.TransactionID),
		zap.Int("retry_count", entry.RetryCount),
	)
	return nil
}

func (w *Worker) markFailed(ctx context.Context, t *tenant.Tenant, entry *ledgerdomain.OutboundEntry, pushErr error) {
	entry.RetryCount++
	entry.Status = ledgerdomain.OutboundStatusFailed
	err := t.DB.WithContext(ctx).Model(&ledgerdomain.OutboundEntry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"status":      ledgerdomain.OutboundStatusFailed,
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  pushErr.Error(),
		}).Error
	if err != nil {
		w.log.Error("outbound entry not marked failed",
			zap.String("branch_code", t.Branch.Code),
			zap.String("transaction_id", entry.TransactionID),
			zap.Error(err),
		)
	}
	w.metrics.RecordReplicationPush(ctx, t.Branch.Code, "error")
	w.log.Warn("replication push failed",
		zap.String("branch_code", t.Branch.Code),
		zap.String("transaction_id", entry.TransactionID),
		zap.Int("retry_count", entry.RetryCount),
		zap.Error(pushErr),
	)
}

// refreshQueueDepths exports per-branch queue gauges for the operator
// dashboards.
func (w *Worker) refreshQueueDepths(ctx context.Context) {
	workerMetrics := obsmetrics.Worker()
	for _, t := range w.router.Tenants() {
		for _, status := range []ledgerdomain.OutboundStatus{
			ledgerdomain.OutboundStatusPending,
			ledgerdomain.OutboundStatusFailed,
		} {
			var count int64
			if err := t.DB.WithContext(ctx).
				Model(&ledgerdomain.OutboundEntry{}).
				Where("status = ?", status).
				Count(&count).Error; err != nil {
				continue
			}
			workerMetrics.SetQueueDepth(t.Branch.Code, string(status), count)
		}
	}
}

// RunForever sweeps on a fixed interval and additionally whenever a
// commit nudges the worker. A sweep in flight is never overlapped; a
// nudge arriving mid-sweep is satisfied by the sweep already running or
// the next tick.
func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		case <-w.nudges:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	if !w.sweeping.CompareAndSwap(false, true) {
		obsmetrics.Worker().IncSweepSkipped()
		return
	}
	defer w.sweeping.Store(false)

	if err := w.RunOnce(ctx); err != nil {
		w.log.Warn("replication sweep finished with errors", zap.Error(err))
	}
}

func toCloudRecords(payload ledgerdomain.SalePayload, receivedAt time.Time) (clouddomain.CloudSale, []clouddomain.CloudSaleItem) {
	txn := payload.Transaction
	sale := clouddomain.CloudSale{
		TransactionID: txn.ID,
		BranchCode:    txn.BranchCode,
		Subtotal:      txn.Subtotal,
		Discount:      txn.Discount,
		Tax:           txn.Tax,
		GrandTotal:    txn.GrandTotal,
		PaymentMethod: txn.PaymentMethod,
		SoldAt:        txn.CreatedAt,
		ReceivedAt:    receivedAt,
	}
	items := make([]clouddomain.CloudSaleItem, 0, len(payload.Items))
	for _, line := range payload.Items {
		items = append(items, clouddomain.CloudSaleItem{
			TransactionID: line.TransactionID,
			LineNo:        line.LineNo,
			BranchCode:    txn.BranchCode,
			ProductCode:   line.ProductCode,
			ProductName:   line.ProductName,
			Qty:           line.Qty,
			UnitPrice:     line.UnitPrice,
			LineSubtotal:  line.LineSubtotal,
		})
	}
	return sale, items
}
