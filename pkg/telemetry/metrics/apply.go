package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ApplyMetrics tracks configuration pushes to targets.
//
// Metrics:
//   - upo_apply_operations_total: operations by target, kind and status
//   - upo_apply_duration_seconds: per-target apply duration
//   - upo_apply_runs_total: apply runs by outcome
type ApplyMetrics struct {
	operationsTotal *prometheus.CounterVec
	applyDuration   *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
}

// NewApplyMetrics creates and registers apply metrics with the provided registry.
func NewApplyMetrics(cfg Config, registry *prometheus.Registry) *ApplyMetrics {
	am := &ApplyMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "apply_operations_total",
				Help:      "Configuration operations issued to targets",
			},
			[]string{"target", "kind", "status"},
		),

		applyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "apply_duration_seconds",
				Help:      "Duration of one target's apply sequence in seconds",
				Buckets:   cfg.ApplyDurationBuckets,
			},
			[]string{"target"},
		),

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "apply_runs_total",
				Help:      "Apply runs by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		am.operationsTotal,
		am.applyDuration,
		am.runsTotal,
	)

	return am
}

// CountOperation records one operation's outcome on a target.
func (am *ApplyMetrics) CountOperation(target, kind, status string) {
	am.operationsTotal.WithLabelValues(target, kind, status).Inc()
}

// ObserveDuration records how long one target's apply sequence took.
func (am *ApplyMetrics) ObserveDuration(target string, d time.Duration) {
	am.applyDuration.WithLabelValues(target).Observe(d.Seconds())
}

// RecordRun records a whole apply run's outcome ("success", "partial", "dry-run").
func (am *ApplyMetrics) RecordRun(outcome string) {
	am.runsTotal.WithLabelValues(outcome).Inc()
}
