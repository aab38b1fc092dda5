package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	mnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tnoop "go.opentelemetry.io/otel/trace/noop"
)

// Library scan semantic conventions.
const (
	ScanRootsKey     = attribute.Key("scan.roots")
	ScanForcedKey    = attribute.Key("scan.forced")
	ScanCachedKey    = attribute.Key("scan.cached")
	ScanGamesKey     = attribute.Key("scan.games")
	ScanErrorsKey    = attribute.Key("scan.errors")
	ScanOutcomeKey   = attribute.Key("scan.outcome") // done/errored/busy
	RootReasonKey    = attribute.Key("root.reason")  // missing/not_dir/not_readable/not_writable/list_failed
	ProjectTypeKey   = attribute.Key("game.project_type")
	SpanScan         = "library.scan"
	SpanScanRoot     = "library.scan.root"
	instrumentPrefix = "gamebrowser.scan."
)

// ScanMetrics records scanner activity. A nil *ScanMetrics is valid and
// records nothing.
type ScanMetrics struct {
	tracer trace.Tracer

	duration       metric.Float64Histogram
	scans          metric.Int64Counter
	gamesFound     metric.Int64Counter
	rootErrors     metric.Int64Counter
	foldersVisited metric.Int64Counter
	cacheHits      metric.Int64Counter
}

// NewScanMetrics creates the scan instruments on meter.
func NewScanMetrics(meter metric.Meter, tracer trace.Tracer) (*ScanMetrics, error) {
	m := &ScanMetrics{tracer: tracer}
	var err error

	m.duration, err = meter.Float64Histogram(
		instrumentPrefix+"duration",
		metric.WithDescription("Duration of library scans"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.scans, err = meter.Int64Counter(
		instrumentPrefix+"count",
		metric.WithDescription("Number of scan requests by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.gamesFound, err = meter.Int64Counter(
		instrumentPrefix+"games_found",
		metric.WithDescription("Games discovered by physical scans"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.rootErrors, err = meter.Int64Counter(
		instrumentPrefix+"root_errors",
		metric.WithDescription("Scan roots skipped because they were unusable"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.foldersVisited, err = meter.Int64Counter(
		instrumentPrefix+"folders_visited",
		metric.WithDescription("Folders listed and classified"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.cacheHits, err = meter.Int64Counter(
		instrumentPrefix+"cache_hits",
		metric.WithDescription("Scans answered from the cache"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// NewNoopScanMetrics returns metrics backed by no-op providers.
func NewNoopScanMetrics() *ScanMetrics {
	m, _ := NewScanMetrics(mnoop.NewMeterProvider().Meter("noop"), tnoop.NewTracerProvider().Tracer("noop"))
	return m
}

// StartScan opens the span covering one scan request.
func (m *ScanMetrics) StartScan(ctx context.Context, roots int, force bool) (context.Context, trace.Span) {
	if m == nil || m.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return m.tracer.Start(ctx, SpanScan, trace.WithAttributes(
		ScanRootsKey.Int(roots),
		ScanForcedKey.Bool(force),
	))
}

// StartRoot opens a child span for one root.
func (m *ScanMetrics) StartRoot(ctx context.Context, root string, depth int) (context.Context, trace.Span) {
	if m == nil || m.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return m.tracer.Start(ctx, SpanScanRoot, trace.WithAttributes(
		attribute.String("root.path", root),
		attribute.Int("root.depth", depth),
	))
}

// EndScan records the outcome of a scan and closes span.
func (m *ScanMetrics) EndScan(ctx context.Context, span trace.Span, elapsed time.Duration, games, errs int, cached bool, outcome string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{ScanOutcomeKey.String(outcome), ScanCachedKey.Bool(cached)}
	m.scans.Add(ctx, 1, metric.WithAttributes(attrs...))
	if cached {
		m.cacheHits.Add(ctx, 1)
	} else if outcome != "busy" {
		m.duration.Record(ctx, float64(elapsed.Nanoseconds())/1e6, metric.WithAttributes(attrs...))
	}
	if span == nil {
		return
	}
	span.SetAttributes(ScanGamesKey.Int(games), ScanErrorsKey.Int(errs), ScanCachedKey.Bool(cached), ScanOutcomeKey.String(outcome))
	if outcome == "errored" {
		span.SetStatus(codes.Error, "scan failed")
	}
	span.End()
}

// RecordGame counts one discovered game.
func (m *ScanMetrics) RecordGame(ctx context.Context, projectType string) {
	if m == nil {
		return
	}
	m.gamesFound.Add(ctx, 1, metric.WithAttributes(ProjectTypeKey.String(projectType)))
}

// RecordRootError counts one skipped root.
func (m *ScanMetrics) RecordRootError(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rootErrors.Add(ctx, 1, metric.WithAttributes(RootReasonKey.String(reason)))
	trace.SpanFromContext(ctx).AddEvent("root_skipped", trace.WithAttributes(RootReasonKey.String(reason)))
}

// RecordFolder counts one listed folder.
func (m *ScanMetrics) RecordFolder(ctx context.Context) {
	if m == nil {
		return
	}
	m.foldersVisited.Add(ctx, 1)
}
