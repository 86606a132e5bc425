// Package metrics declares the prometheus collectors shared by the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "actorkit"

var (
	// ExecutionsTotal counts executions by terminal status.
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "executions_total",
		Help:      "Actor executions that reached a terminal state.",
	}, []string{"status"})

	// ExecutionDuration observes wall time of finished executions.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "execution_duration_seconds",
		Help:      "Duration of actor executions.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// CapturedResponses counts intercepted responses by kind (json, raw).
	CapturedResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "captured_responses_total",
		Help:      "Network responses captured during navigation.",
	}, []string{"kind"})

	// SandboxErrors counts script runs that ended in an error result.
	SandboxErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sandbox_errors_total",
		Help:      "Extraction script runs that returned an error.",
	})

	// PlannerCache counts planner cache lookups by result (hit, miss).
	PlannerCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "planner_cache_total",
		Help:      "Planner cache lookups.",
	}, []string{"result"})

	// ActivePages tracks leased browser pages.
	ActivePages = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pages_active",
		Help:      "Browser pages currently leased.",
	})
)
