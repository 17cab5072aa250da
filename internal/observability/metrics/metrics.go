package metrics

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
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

// Metrics exposes application-level instruments for the reconciliation engine.
type Metrics struct {
	sessionsStarted   metric.Int64Counter
	rowsIngested      metric.Int64Counter
	validationErrors  metric.Int64Counter
	identityDecisions metric.Int64Counter
	reviewQueueDepth  metric.Int64UpDownCounter
	stageDuration     metric.Float64Histogram
	compositeScore    metric.Float64Histogram
	revenueAtRisk     metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		return noop.NewMeterProvider(), nil
	}

	exporter, err := otlpmetrichttp.New(context.Background(),
		otlpmetrichttp.WithEndpoint(cfg.ExporterEndpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

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
		name = "reconciler"
	}
	meter := provider.Meter(name)

	sessionsStarted, err := meter.Int64Counter("reconciler_sessions_started_total")
	if err != nil {
		return nil, err
	}
	rowsIngested, err := meter.Int64Counter("reconciler_rows_ingested_total")
	if err != nil {
		return nil, err
	}
	validationErrors, err := meter.Int64Counter("reconciler_validation_errors_total")
	if err != nil {
		return nil, err
	}
	identityDecisions, err := meter.Int64Counter("reconciler_identity_decisions_total")
	if err != nil {
		return nil, err
	}
	reviewQueueDepth, err := meter.Int64UpDownCounter("reconciler_identity_review_queue_depth")
	if err != nil {
		return nil, err
	}
	stageDuration, err := meter.Float64Histogram("reconciler_stage_duration_seconds")
	if err != nil {
		return nil, err
	}
	compositeScore, err := meter.Float64Histogram("reconciler_composite_score")
	if err != nil {
		return nil, err
	}
	revenueAtRisk, err := meter.Float64Histogram("reconciler_revenue_at_risk")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		sessionsStarted:   sessionsStarted,
		rowsIngested:      rowsIngested,
		validationErrors:  validationErrors,
		identityDecisions: identityDecisions,
		reviewQueueDepth:  reviewQueueDepth,
		stageDuration:     stageDuration,
		compositeScore:    compositeScore,
		revenueAtRisk:     revenueAtRisk,
	}, nil
}

// RecordSessionStarted increments the session counter.
func (m *Metrics) RecordSessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsStarted.Add(ctx, 1)
}

// RecordRowsIngested adds the number of rows ingested for an entity kind.
func (m *Metrics) RecordRowsIngested(ctx context.Context, entity string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("entity", strings.TrimSpace(entity)))
	m.rowsIngested.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordValidationErrors adds the number of validation errors for an entity kind.
func (m *Metrics) RecordValidationErrors(ctx context.Context, entity string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("entity", strings.TrimSpace(entity)))
	m.validationErrors.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordIdentityDecision increments the identity decision counter by pass.
func (m *Metrics) RecordIdentityDecision(ctx context.Context, pass, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("pass", strings.TrimSpace(pass)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.identityDecisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// SetReviewQueueDepth adjusts the identity review queue depth gauge.
func (m *Metrics) SetReviewQueueDepth(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.reviewQueueDepth.Add(ctx, delta)
}

// ObserveStageDuration records how long a pipeline stage took.
func (m *Metrics) ObserveStageDuration(ctx context.Context, stage string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("stage", strings.TrimSpace(stage)))
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// ObserveCompositeScore records a session's final composite score.
func (m *Metrics) ObserveCompositeScore(ctx context.Context, band string, score float64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("band", strings.TrimSpace(band)))
	m.compositeScore.Record(ctx, score, metric.WithAttributes(attrs...))
}

// ObserveRevenueAtRisk records a session's total revenue at risk.
func (m *Metrics) ObserveRevenueAtRisk(ctx context.Context, amount float64) {
	if m == nil {
		return
	}
	m.revenueAtRisk.Record(ctx, amount)
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"entity":  {},
	"pass":    {},
	"outcome": {},
	"stage":   {},
	"band":    {},
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
