package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const instrumentationName = "github.com/cuihairu/gamebrowser/scanner"

// Config controls OpenTelemetry export.
type Config struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string  `mapstructure:"service_version" yaml:"service_version"`
	Environment    string  `mapstructure:"environment" yaml:"environment"`
	CollectorURL   string  `mapstructure:"collector_url" yaml:"collector_url"`
	SamplingRatio  float64 `mapstructure:"sampling_ratio" yaml:"sampling_ratio"`
}

// Provider owns the SDK providers and the scan instruments.
type Provider struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	ScanMetrics    *ScanMetrics
	config         Config
}

// NewProvider wires OTLP HTTP exporters when config.Enabled is set. When
// disabled the scan instruments are backed by no-op providers.
func NewProvider(ctx context.Context, config Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	provider := &Provider{config: config}
	if !config.Enabled {
		provider.ScanMetrics = NewNoopScanMetrics()
		return provider, nil
	}
	if config.ServiceName == "" {
		config.ServiceName = "gamebrowser"
	}
	if config.SamplingRatio <= 0 {
		config.SamplingRatio = 1
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider.TracerProvider, err = initTracing(ctx, res, config)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	otel.SetTracerProvider(provider.TracerProvider)

	provider.MeterProvider, err = initMetrics(ctx, res, config)
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	otel.SetMeterProvider(provider.MeterProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	provider.ScanMetrics, err = NewScanMetrics(otel.Meter(instrumentationName), otel.Tracer(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("failed to create scan metrics: %w", err)
	}
	logger.Info("telemetry enabled", "collector", config.CollectorURL, "service", config.ServiceName)
	return provider, nil
}

func initTracing(ctx context.Context, res *resource.Resource, config Config) (*trace.TracerProvider, error) {
	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(config.CollectorURL),
		otlptracehttp.WithURLPath("/v1/traces"),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(traceExporter,
			trace.WithBatchTimeout(time.Second*5),
			trace.WithMaxExportBatchSize(512),
		),
		trace.WithSampler(trace.TraceIDRatioBased(config.SamplingRatio)),
	), nil
}

func initMetrics(ctx context.Context, res *resource.Resource, config Config) (*metric.MeterProvider, error) {
	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(config.CollectorURL),
		otlpmetrichttp.WithURLPath("/v1/metrics"),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(
			metricExporter,
			metric.WithInterval(time.Second*30),
		)),
	), nil
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown TracerProvider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown MeterProvider: %w", err))
		}
	}
	return errors.Join(errs...)
}
