package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "sitterview.requests.total"
	metricRequestDuration  = "sitterview.request.duration.seconds"
	metricInflightRequests = "sitterview.inflight.requests"

	attrOp     = "op"
	attrStatus = "status"

	statusOK    = "ok"
	statusError = "error"
)

// LSP and MCP requests answer from an already parsed tree: 1ms to 10s.
var requestBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10}

// REDMetrics counts and times LSP and MCP requests per operation. Failed
// requests carry status="error" on the request counter.
type REDMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter
}

// NewREDMetrics creates the request instruments on mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	requests, reqErr := mt.Int64Counter(metricRequestsTotal, metric.WithUnit("{request}"))
	duration, durErr := mt.Float64Histogram(metricRequestDuration,
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(requestBucketBoundaries...),
	)
	inflight, infErr := mt.Int64UpDownCounter(metricInflightRequests, metric.WithUnit("{request}"))

	err := errors.Join(reqErr, durErr, infErr)
	if err != nil {
		return nil, fmt.Errorf("create request metrics: %w", err)
	}

	return &REDMetrics{requests: requests, duration: duration, inflight: inflight}, nil
}

// Start marks op in flight. The returned func ends the request, recording it
// as failed when failed is true. Call it exactly once.
func (rm *REDMetrics) Start(ctx context.Context, op string) func(failed bool) {
	start := time.Now()
	opAttr := attribute.String(attrOp, op)

	rm.inflight.Add(ctx, 1, metric.WithAttributes(opAttr))

	return func(failed bool) {
		rm.inflight.Add(ctx, -1, metric.WithAttributes(opAttr))

		status := statusOK
		if failed {
			status = statusError
		}

		attrs := metric.WithAttributes(opAttr, attribute.String(attrStatus, status))
		rm.requests.Add(ctx, 1, attrs)
		rm.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
