package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

const (
	// ServiceName identifies this service in exported telemetry.
	ServiceName = "jpxsignal"
	// ServiceVersion is the reported service version.
	ServiceVersion = "1.0.0"
	meterName      = "jpxsignal"
)

// MetricsProviders holds the metrics pipeline and its HTTP exposition
// handler.
type MetricsProviders struct {
	MeterProvider  *sdkmetric.MeterProvider
	Meter          metric.Meter
	PrometheusHTTP http.Handler
}

// InitializeMetrics sets up the OpenTelemetry meter provider with a
// Prometheus exporter.
func InitializeMetrics(logger *slog.Logger) (*MetricsProviders, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
	)

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	logger.Info("metrics initialized", "exporter", "prometheus")

	return &MetricsProviders{
		MeterProvider:  mp,
		Meter:          mp.Meter(meterName, metric.WithInstrumentationVersion(ServiceVersion)),
		PrometheusHTTP: promhttp.Handler(),
	}, nil
}

// Shutdown flushes and stops the meter provider.
func (p *MetricsProviders) Shutdown(ctx context.Context) error {
	if p.MeterProvider != nil {
		return p.MeterProvider.Shutdown(ctx)
	}
	return nil
}

// EngineMetrics holds the application-specific instruments. A nil
// *EngineMetrics is valid and records nothing, so the one-shot CLI can
// run without a metrics pipeline.
type EngineMetrics struct {
	EvaluationsTotal   metric.Int64Counter
	EvaluationDuration metric.Float64Histogram
	FetchFailures      metric.Int64Counter
	StateSaveFailures  metric.Int64Counter
}

// CreateEngineMetrics creates the engine instruments on the given meter.
func CreateEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	evaluations, err := meter.Int64Counter(
		"engine_evaluations_total",
		metric.WithDescription("Total number of risk evaluations by outcome level"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"engine_evaluation_duration_seconds",
		metric.WithDescription("Risk evaluation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fetchFailures, err := meter.Int64Counter(
		"engine_fetch_failures_total",
		metric.WithDescription("Total number of upstream fetch failures by source"),
	)
	if err != nil {
		return nil, err
	}

	saveFailures, err := meter.Int64Counter(
		"engine_state_save_failures_total",
		metric.WithDescription("Total number of state persistence failures"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		EvaluationsTotal:   evaluations,
		EvaluationDuration: duration,
		FetchFailures:      fetchFailures,
		StateSaveFailures:  saveFailures,
	}, nil
}

// RecordEvaluation records one completed evaluation.
func (m *EngineMetrics) RecordEvaluation(ctx context.Context, level string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("level", level))
	m.EvaluationsTotal.Add(ctx, 1, attrs)
	m.EvaluationDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordFetchFailure records a failed upstream fetch.
func (m *EngineMetrics) RecordFetchFailure(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.FetchFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordStateSaveFailure records a failed state persistence attempt.
func (m *EngineMetrics) RecordStateSaveFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.StateSaveFailures.Add(ctx, 1)
}
