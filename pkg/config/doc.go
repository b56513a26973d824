// Package config defines the orchestrator's YAML configuration: intent
// sources, target endpoints, history, cache, drift and telemetry. Loading
// applies defaults, optional environment overrides, and batched validation.
package config
