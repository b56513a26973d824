package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the metrics subsystem.
type Config struct {
	// Enabled turns metric recording on. Disabled collectors register
	// nothing and every record call is a no-op.
	Enabled bool

	// Namespace prefixes every metric name. Default: "upo".
	Namespace string

	// CompileDurationBuckets overrides the compile latency histogram.
	CompileDurationBuckets []float64

	// ApplyDurationBuckets overrides the apply latency histogram.
	ApplyDurationBuckets []float64
}

// Collector owns the Prometheus registry and the per-stage metric sets.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	compiler *CompilerMetrics
	apply    *ApplyMetrics
}

// NewCollector creates a collector with the given configuration. If registry
// is nil a fresh one is used, which keeps tests isolated from each other.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "upo"
	}
	if len(cfg.CompileDurationBuckets) == 0 {
		// Compilation is pure computation, expected well under a second.
		cfg.CompileDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0}
	}
	if len(cfg.ApplyDurationBuckets) == 0 {
		// Apply talks to management APIs; allow for slow targets.
		cfg.ApplyDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 60.0}
	}

	c := &Collector{config: cfg, registry: registry}
	if cfg.Enabled {
		c.compiler = NewCompilerMetrics(cfg, registry)
		c.apply = NewApplyMetrics(cfg, registry)
	}
	return c
}

// Compiler returns the compiler metric set, or nil when metrics are disabled.
func (c *Collector) Compiler() *CompilerMetrics { return c.compiler }

// Apply returns the apply metric set, or nil when metrics are disabled.
func (c *Collector) Apply() *ApplyMetrics { return c.apply }

// Registry exposes the underlying registry for additional registrations.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns the HTTP handler for the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
