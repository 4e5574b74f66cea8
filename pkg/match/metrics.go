package match

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

const instrumentation = "github.com/haivivi/tagmatch/pkg/match"

var defaultTracer = otel.Tracer(instrumentation)

var (
	// Queries by the method of their top candidate, "none" or "invalid".
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tagmatch",
		Subsystem: "match",
		Name:      "queries_total",
		Help:      "Queries matched, by method of the best candidate",
	}, []string{"method"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tagmatch",
		Subsystem: "match",
		Name:      "stage_duration_seconds",
		Help:      "Latency of the fuzzy and vector stages",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"stage"})

	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tagmatch",
		Subsystem: "match",
		Name:      "stage_failures_total",
		Help:      "Stage failures by stage and reason (error, timeout, unavailable)",
	}, []string{"stage", "reason"})
)
