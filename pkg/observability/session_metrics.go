package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricParsesTotal        = "sitterview.session.parses.total"
	metricParseDuration      = "sitterview.session.parse.duration.seconds"
	metricEditsTotal         = "sitterview.session.edits.total"
	metricGrammarLoadErrors  = "sitterview.session.grammar.load.errors.total"
	metricRendersTotal       = "sitterview.outline.renders.total"
	metricRenderDuration     = "sitterview.outline.render.duration.seconds"
	metricStaleRendersTotal  = "sitterview.outline.stale.renders.total"
	metricRenderedRowsLatest = "sitterview.outline.rows"

	attrGrammar     = "grammar"
	attrIncremental = "incremental"
)

// parseBucketBoundaries covers 100µs to 5s: incremental re-parses of small
// edits land at the low end, fresh parses of large files at the high end.
var parseBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5}

// SessionMetrics holds OTel instruments for parse sessions and outline
// rendering. A nil *SessionMetrics records nothing.
type SessionMetrics struct {
	parsesTotal       metric.Int64Counter
	parseDuration     metric.Float64Histogram
	editsTotal        metric.Int64Counter
	grammarLoadErrors metric.Int64Counter
	rendersTotal      metric.Int64Counter
	renderDuration    metric.Float64Histogram
	staleRenders      metric.Int64Counter
	rows              metric.Int64Gauge
}

// NewSessionMetrics creates session metric instruments from the given meter.
func NewSessionMetrics(mt metric.Meter) (*SessionMetrics, error) {
	var (
		sm  SessionMetrics
		err error
	)

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&sm.parsesTotal, metricParsesTotal, "Total successful parses", "{parse}"},
		{&sm.editsTotal, metricEditsTotal, "Total edit deltas applied", "{edit}"},
		{&sm.grammarLoadErrors, metricGrammarLoadErrors, "Total failed grammar loads", "{error}"},
		{&sm.rendersTotal, metricRendersTotal, "Total completed outline renders", "{render}"},
		{&sm.staleRenders, metricStaleRendersTotal, "Total outline renders abandoned for a newer parse", "{render}"},
	}

	for _, c := range counters {
		*c.dst, err = mt.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}
	}

	sm.parseDuration, err = mt.Float64Histogram(metricParseDuration,
		metric.WithDescription("Parse duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(parseBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricParseDuration, err)
	}

	sm.renderDuration, err = mt.Float64Histogram(metricRenderDuration,
		metric.WithDescription("Outline render duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(parseBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRenderDuration, err)
	}

	sm.rows, err = mt.Int64Gauge(metricRenderedRowsLatest,
		metric.WithDescription("Rows in the latest completed outline"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRenderedRowsLatest, err)
	}

	return &sm, nil
}

// RecordParse records a successful parse.
func (sm *SessionMetrics) RecordParse(ctx context.Context, grammar string, incremental bool, duration time.Duration) {
	if sm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrGrammar, grammar),
		attribute.Bool(attrIncremental, incremental),
	)

	sm.parsesTotal.Add(ctx, 1, attrs)
	sm.parseDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordEdits records applied deltas.
func (sm *SessionMetrics) RecordEdits(ctx context.Context, n int) {
	if sm == nil || n == 0 {
		return
	}

	sm.editsTotal.Add(ctx, int64(n))
}

// RecordGrammarLoadError records a failed grammar load.
func (sm *SessionMetrics) RecordGrammarLoadError(ctx context.Context, grammar string) {
	if sm == nil {
		return
	}

	sm.grammarLoadErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(attrGrammar, grammar)))
}

// RecordRender records a completed outline render.
func (sm *SessionMetrics) RecordRender(ctx context.Context, rows int, duration time.Duration) {
	if sm == nil {
		return
	}

	sm.rendersTotal.Add(ctx, 1)
	sm.renderDuration.Record(ctx, duration.Seconds())
	sm.rows.Record(ctx, int64(rows))
}

// RecordStaleRender records an abandoned outline render.
func (sm *SessionMetrics) RecordStaleRender(ctx context.Context) {
	if sm == nil {
		return
	}

	sm.staleRenders.Add(ctx, 1)
}
