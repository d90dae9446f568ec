package analysis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("archaeologist/analysis")

// runMetrics counts runs by outcome. A nil *runMetrics records nothing.
type runMetrics struct {
	started   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	cacheHits metric.Int64Counter
	duration  metric.Float64Histogram
}

func newRunMetrics() (*runMetrics, error) {
	started, err := meter.Int64Counter(
		"archaeologist.runs.started",
		metric.WithDescription("Total number of analysis runs started"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}
	completed, err := meter.Int64Counter(
		"archaeologist.runs.completed",
		metric.WithDescription("Total number of analysis runs that produced a report"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter(
		"archaeologist.runs.failed",
		metric.WithDescription("Total number of analysis runs that ended in ERROR"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}
	cacheHits, err := meter.Int64Counter(
		"archaeologist.report_cache.hits",
		metric.WithDescription("Reports served from the prompt cache"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"archaeologist.run.duration",
		metric.WithDescription("Duration of analysis runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &runMetrics{
		started:   started,
		completed: completed,
		failed:    failed,
		cacheHits: cacheHits,
		duration:  duration,
	}, nil
}

func (m *runMetrics) recordStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.started.Add(ctx, 1)
}

func (m *runMetrics) recordCompleted(ctx context.Context, d time.Duration, cached bool) {
	if m == nil {
		return
	}
	m.completed.Add(ctx, 1)
	if cached {
		m.cacheHits.Add(ctx, 1)
	}
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", "complete")))
}

func (m *runMetrics) recordFailed(ctx context.Context, d time.Duration, kind ErrorKind) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("error.kind", string(kind)))
	m.failed.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", "error")))
}
