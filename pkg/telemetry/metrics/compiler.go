package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CompilerMetrics tracks intent compilation.
//
// Metrics:
//   - upo_compile_total: compilations by target and status
//   - upo_compile_duration_seconds: compilation duration by target
//   - upo_compile_rules: resolved rule count of the last compilation
//   - upo_capability_gaps_total: capability substitutions by target and requested level
type CompilerMetrics struct {
	compileTotal    *prometheus.CounterVec
	compileDuration *prometheus.HistogramVec
	resolvedRules   prometheus.Gauge
	gapsTotal       *prometheus.CounterVec
}

// NewCompilerMetrics creates and registers compiler metrics with the provided registry.
func NewCompilerMetrics(cfg Config, registry *prometheus.Registry) *CompilerMetrics {
	cm := &CompilerMetrics{
		compileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "compile_total",
				Help:      "Total number of per-target compilations",
			},
			[]string{"target", "status"},
		),

		compileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "compile_duration_seconds",
				Help:      "Duration of per-target compilation in seconds",
				Buckets:   cfg.CompileDurationBuckets,
			},
			[]string{"target"},
		),

		resolvedRules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "compile_rules",
				Help:      "Resolved rule count of the most recent compilation",
			},
		),

		gapsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "capability_gaps_total",
				Help:      "Capability substitutions recorded during compilation",
			},
			[]string{"target", "requested"},
		),
	}

	registry.MustRegister(
		cm.compileTotal,
		cm.compileDuration,
		cm.resolvedRules,
		cm.gapsTotal,
	)

	return cm
}

// RecordCompile records one target's compilation outcome.
func (cm *CompilerMetrics) RecordCompile(target, status string, duration time.Duration) {
	cm.compileTotal.WithLabelValues(target, status).Inc()
	cm.compileDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// SetResolvedRules records the size of the resolved rule set.
func (cm *CompilerMetrics) SetResolvedRules(n int) {
	cm.resolvedRules.Set(float64(n))
}

// RecordGap records a capability substitution on a target.
func (cm *CompilerMetrics) RecordGap(target, requested string) {
	cm.gapsTotal.WithLabelValues(target, requested).Inc()
}
