package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for Warden.
// Pass to components that need to record metrics.
type Metrics struct {
	EvaluationsTotal  *prometheus.CounterVec
	ProposalsTotal    prometheus.Counter
	GuardrailOutcomes *prometheus.CounterVec
	ActionsTotal      *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ActiveEvaluations prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "evaluations_total",
				Help:      "Total evaluation runs completed",
			},
			[]string{"result"}, // result=ok/error
		),
		ProposalsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "proposals_total",
				Help:      "Total action proposals seen by the guardrail engine",
			},
		),
		GuardrailOutcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "guardrail_outcomes_total",
				Help:      "Guardrail check outcomes by check and severity",
			},
			[]string{"check", "severity"},
		),
		ActionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "actions_total",
				Help:      "Actions logged by approval status and execution mode",
			},
			[]string{"status", "mode"},
		),
		ExecutionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "warden",
				Name:      "execution_duration_seconds",
				Help:      "Action handler execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		ActiveEvaluations: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "warden",
				Name:      "active_evaluations",
				Help:      "Number of evaluation runs currently in flight",
			},
		),
	}
}
