package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WizardTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_transitions_total",
			Help: "Total number of wizard step transitions",
		},
		[]string{"from", "to"},
	)

	WizardActionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_action_errors_total",
			Help: "Total number of wizard actions that failed",
		},
		[]string{"action", "error_code"},
	)

	BackendCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_backend_calls_total",
			Help: "Total number of lead backend calls",
		},
		[]string{"operation", "outcome"},
	)

	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_backend_call_duration_seconds",
			Help:    "Duration of lead backend calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ConsentPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_polls_total",
			Help: "Total number of consent status checks by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	ConsentPollersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "consent_pollers_active",
			Help: "Number of running consent polling tasks",
		},
	)

	PlanFetchFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_fetch_fallbacks_total",
			Help: "Total number of plan fetches served from the fallback list",
		},
		[]string{"reason"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_requests_total",
			Help: "Cache lookups for zip codes and plan lists",
		},
		[]string{"cache", "result"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wizard_sessions_active",
			Help: "Number of wizard sessions held in memory",
		},
	)
)
