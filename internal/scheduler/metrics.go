package scheduler

import (
	"context"

	"github.com/appraisal-ops/field-scheduler/backend/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"

type metrics struct {
	outcomes   metric.Int64Counter
	candidates metric.Int64Histogram
}

func newMetrics() *metrics {
	m := telemetry.Meter(meterName)
	outcomes, _ := m.Int64Counter("autoassign.outcomes",
		metric.WithDescription("Auto-assignment results by reason code"),
		metric.WithUnit("{request}"),
	)
	candidates, _ := m.Int64Histogram("autoassign.candidates",
		metric.WithDescription("Candidates surviving the availability stage"),
		metric.WithUnit("{resource}"),
	)
	return &metrics{outcomes: outcomes, candidates: candidates}
}

func (m *metrics) recordOutcome(ctx context.Context, reason ReasonCode) {
	if reason == "" {
		reason = "assigned"
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
}

func (m *metrics) recordCandidates(ctx context.Context, n int) {
	m.candidates.Record(ctx, int64(n))
}
