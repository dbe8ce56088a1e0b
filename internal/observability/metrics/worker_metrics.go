package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics tracks the replication worker's sweeps and pushes.
type WorkerMetrics struct {
	sweepRuns     prometheus.Counter
	sweepSkipped  prometheus.Counter
	sweepDuration prometheus.Histogram
	pushResults   *prometheus.CounterVec
	queueDepth    *prometheus.GaugeVec
	cloudLatency  prometheus.Histogram
}

var (
	workerMetricsOnce sync.Once
	workerMetrics     *WorkerMetrics
)

// Worker returns the singleton replication worker metrics registry.
func Worker() *WorkerMetrics {
	return WorkerWithConfig(Config{})
}

// WorkerWithConfig returns the singleton worker metrics registry using config labels.
func WorkerWithConfig(cfg Config) *WorkerMetrics {
	workerMetricsOnce.Do(func() {
		workerMetrics = newWorkerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return workerMetrics
}

// ResetWorkerMetricsForTest resets the worker metrics singleton for tests.
func ResetWorkerMetricsForTest() {
	workerMetricsOnce = sync.Once{}
	workerMetrics = nil
}

func newWorkerMetrics(registerer prometheus.Registerer, cfg Config) *WorkerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "branchledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	sweepRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "branchledger_replication_sweeps_total",
		Help:        "Replication sweep cycles started.",
		ConstLabels: constLabels,
	})
	sweepSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "branchledger_replication_sweeps_skipped_total",
		Help:        "Sweep cycles skipped because the previous cycle was still running.",
		ConstLabels: constLabels,
	})
	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "branchledger_replication_sweep_duration_seconds",
		Help:        "Replication sweep latency, bounding outbound-queue staleness.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		ConstLabels: constLabels,
	})
	pushResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "branchledger_replication_pushes_total",
		Help:        "Cloud push attempts by branch and result.",
		ConstLabels: constLabels,
	}, []string{"branch_code", "result"})
	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "branchledger_outbound_queue_depth",
		Help:        "Outbound entries not yet COMPLETED, by branch and status.",
		ConstLabels: constLabels,
	}, []string{"branch_code", "status"})
	cloudLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "branchledger_cloud_push_duration_seconds",
		Help:        "Round-trip latency of a single cloud upsert.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	})

	for _, collector := range []prometheus.Collector{
		sweepRuns, sweepSkipped, sweepDuration, pushResults, queueDepth, cloudLatency,
	} {
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}

	return &WorkerMetrics{
		sweepRuns:     sweepRuns,
		sweepSkipped:  sweepSkipped,
		sweepDuration: sweepDuration,
		pushResults:   pushResults,
		queueDepth:    queueDepth,
		cloudLatency:  cloudLatency,
	}
}

// IncSweepRun counts a sweep cycle start.
func (m *WorkerMetrics) IncSweepRun() {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
}

// IncSweepSkipped counts a sweep cycle skipped due to overlap.
func (m *WorkerMetrics) IncSweepSkipped() {
	if m == nil {
		return
	}
	m.sweepSkipped.Inc()
}

// ObserveSweepDuration records how long a full sweep took.
func (m *WorkerMetrics) ObserveSweepDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}

// IncPushResult counts one push attempt outcome.
func (m *WorkerMetrics) IncPushResult(branchCode, result string) {
	if m == nil {
		return
	}
	m.pushResults.WithLabelValues(branchCode, result).Inc()
}

// SetQueueDepth reports the current backlog for a branch.
func (m *WorkerMetrics) SetQueueDepth(branchCode, status string, depth int64) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(branchCode, status).Set(float64(depth))
}

// ObserveCloudLatency records one upsert round trip.
func (m *WorkerMetrics) ObserveCloudLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.cloudLatency.Observe(d.Seconds())
}
