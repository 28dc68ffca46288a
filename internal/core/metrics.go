package core

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	resultOK         = "ok"
	resultError      = "error"
	resultSuperseded = "superseded"
)

// cycleMetrics instruments aggregation cycles. Instruments are created
// against the global meter provider, which the serving layer backs
// with a Prometheus exporter; before that registration the global
// no-op provider absorbs the measurements.
type cycleMetrics struct {
	cycles      metric.Int64Counter
	duration    metric.Float64Histogram
	definitions metric.Int64Gauge
	warnings    metric.Int64Gauge
}

func newCycleMetrics() *cycleMetrics {
	meter := otel.Meter("k8schema")

	m := &cycleMetrics{}
	var err error
	if m.cycles, err = meter.Int64Counter("k8schema_rebuild_cycles_total",
		metric.WithDescription("Completed aggregation cycles by result")); err != nil {
		slog.Warn("failed to create cycle counter", "error", err)
	}
	if m.duration, err = meter.Float64Histogram("k8schema_rebuild_duration_seconds",
		metric.WithDescription("Wall-clock duration of aggregation cycles"),
		metric.WithUnit("s")); err != nil {
		slog.Warn("failed to create duration histogram", "error", err)
	}
	if m.definitions, err = meter.Int64Gauge("k8schema_definitions",
		metric.WithDescription("Definitions in the published snapshot")); err != nil {
		slog.Warn("failed to create definitions gauge", "error", err)
	}
	if m.warnings, err = meter.Int64Gauge("k8schema_cycle_warnings",
		metric.WithDescription("Warnings recorded by the last published cycle")); err != nil {
		slog.Warn("failed to create warnings gauge", "error", err)
	}
	return m
}

func (m *cycleMetrics) observeCycle(ctx context.Context, elapsed time.Duration, result string) {
	attrs := metric.WithAttributes(attribute.String("result", result))
	if m.cycles != nil {
		m.cycles.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

func (m *cycleMetrics) observeCatalog(ctx context.Context, definitions, warnings int) {
	if m.definitions != nil {
		m.definitions.Record(ctx, int64(definitions))
	}
	if m.warnings != nil {
		m.warnings.Record(ctx, int64(warnings))
	}
}
