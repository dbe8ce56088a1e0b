package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	salesCommitted   metric.Int64Counter
	commitFailures   metric.Int64Counter
	defectReports    metric.Int64Counter
	replicationPush  metric.Int64Counter
	replicationRetry metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "branchledger"
	}
	meter := provider.Meter(name)

	salesCommitted, err := meter.Int64Counter("branchledger_sales_committed_total")
	if err != nil {
		return nil, err
	}
	commitFailures, err := meter.Int64Counter("branchledger_commit_failures_total")
	if err != nil {
		return nil, err
	}
	defectReports, err := meter.Int64Counter("branchledger_defect_reports_total")
	if err != nil {
		return nil, err
	}
	replicationPush, err := meter.Int64Counter("branchledger_replication_pushes_total")
	if err != nil {
		return nil, err
	}
	replicationRetry, err := meter.Int64Counter("branchledger_replication_retries_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		salesCommitted:   salesCommitted,
		commitFailures:   commitFailures,
		defectReports:    defectReports,
		replicationPush:  replicationPush,
		replicationRetry: replicationRetry,
	}, nil
}

// RecordSaleCommitted increments committed sale counts.
func (m *Metrics) RecordSaleCommitted(ctx context.Context, branchCode string, paymentMethod string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("branch_code", strings.TrimSpace(branchCode)),
		attribute.String("payment_method", strings.TrimSpace(paymentMethod)),
	)
	m.salesCommitted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCommitFailure increments failed sale commit counts.
func (m *Metrics) RecordCommitFailure(ctx context.Context, branchCode, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("branch_code", strings.TrimSpace(branchCode)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.commitFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDefectReport increments defect report counts.
func (m *Metrics) RecordDefectReport(ctx context.Context, branchCode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("branch_code", strings.TrimSpace(branchCode)))
	m.defectReports.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReplicationPush increments replication push counts by result.
func (m *Metrics) RecordReplicationPush(ctx context.Context, branchCode, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("branch_code", strings.TrimSpace(branchCode)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.replicationPush.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReplicationRetry increments retry counts for failed entries.
func (m *Metrics) RecordReplicationRetry(ctx context.Context, branchCode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("branch_code", strings.TrimSpace(branchCode)))
	m.replicationRetry.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"branch_code":    {},
	"payment_method": {},
	"result":         {},
	"reason":         {},
	"endpoint":       {},
	"status_code":    {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
