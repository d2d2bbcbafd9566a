package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesTotal     = "funcscan.files"
	metricFunctionsTotal = "funcscan.functions"
	metricCallsTotal     = "funcscan.calls"
	metricCacheLookups   = "funcscan.cache.lookups"
	metricParseDuration  = "funcscan.parse.duration"

	attrStatus   = "status"
	attrLanguage = "language"
	attrResult   = "result"
)

// File outcome statuses recorded on the files counter.
const (
	StatusParsed  = "parsed"
	StatusCached  = "cached"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// durationBucketBoundaries covers 100µs to 10s; single-file parses are fast,
// generated sources can be slow.
var durationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

// ScanMetrics holds the OTel instruments for a scan.
type ScanMetrics struct {
	filesTotal     metric.Int64Counter
	functionsTotal metric.Int64Counter
	callsTotal     metric.Int64Counter
	cacheLookups   metric.Int64Counter
	parseDuration  metric.Float64Histogram
}

// NewScanMetrics creates scan metric instruments from the given meter.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	files, err := mt.Int64Counter(metricFilesTotal,
		metric.WithDescription("Source files processed, by outcome"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesTotal, err)
	}

	functions, err := mt.Int64Counter(metricFunctionsTotal,
		metric.WithDescription("Function declarations found"),
		metric.WithUnit("{function}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFunctionsTotal, err)
	}

	calls, err := mt.Int64Counter(metricCallsTotal,
		metric.WithDescription("Call expressions found"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCallsTotal, err)
	}

	lookups, err := mt.Int64Counter(metricCacheLookups,
		metric.WithDescription("Parse cache lookups, by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheLookups, err)
	}

	duration, err := mt.Float64Histogram(metricParseDuration,
		metric.WithDescription("Per-file parse duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricParseDuration, err)
	}

	return &ScanMetrics{
		filesTotal:     files,
		functionsTotal: functions,
		callsTotal:     calls,
		cacheLookups:   lookups,
		parseDuration:  duration,
	}, nil
}

// RecordFile records one processed file. Nil receivers are ignored.
func (sm *ScanMetrics) RecordFile(ctx context.Context, language, status string, functions, calls int, duration time.Duration) {
	if sm == nil {
		return
	}

	langAttr := attribute.String(attrLanguage, language)

	sm.filesTotal.Add(ctx, 1, metric.WithAttributes(langAttr, attribute.String(attrStatus, status)))

	if functions > 0 {
		sm.functionsTotal.Add(ctx, int64(functions), metric.WithAttributes(langAttr))
	}

	if calls > 0 {
		sm.callsTotal.Add(ctx, int64(calls), metric.WithAttributes(langAttr))
	}

	if status == StatusParsed {
		sm.parseDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(langAttr))
	}
}

// RecordCacheLookup records a cache hit or miss.
func (sm *ScanMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if sm == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	sm.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}
