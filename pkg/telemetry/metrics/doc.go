// Package metrics exposes Prometheus instrumentation for the compile and
// apply pipeline. A Collector owns the registry; metric sets are created per
// stage and injected where recording happens.
package metrics
