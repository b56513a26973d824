package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "targets.ziti.url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every validation failure in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the entire configuration. All errors are collected and
// returned together rather than failing on the first.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateIntent(&cfg.Intent)...)
	errs = append(errs, validateTargets(cfg.Targets)...)
	errs = append(errs, validateDrift(&cfg.Drift)...)
	errs = append(errs, validateLogging(&cfg.Telemetry.Logging)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateIntent(c *IntentConfig) []FieldError {
	var errs []FieldError
	if c.Path == "" && c.Git.Repository == "" {
		errs = append(errs, FieldError{
			Field:   "intent",
			Message: "either path or git.repository must be set",
		})
	}
	if c.Watch && c.Path == "" {
		errs = append(errs, FieldError{
			Field:   "intent.watch",
			Message: "watch requires a local path",
		})
	}
	if c.Git.Depth < 0 {
		errs = append(errs, FieldError{
			Field:   "intent.git.depth",
			Message: "depth cannot be negative",
		})
	}
	return errs
}

func validateTargets(targets map[string]TargetConfig) []FieldError {
	var errs []FieldError
	for name, tc := range targets {
		field := "targets." + name
		if tc.URL == "" {
			errs = append(errs, FieldError{Field: field + ".url", Message: "url cannot be empty"})
			continue
		}
		u, err := url.Parse(tc.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   field + ".url",
				Message: fmt.Sprintf("invalid URL %q", tc.URL),
			})
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, FieldError{
				Field:   field + ".url",
				Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
			})
		}
	}
	return errs
}

func validateDrift(c *DriftConfig) []FieldError {
	if c.Schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return []FieldError{{
			Field:   "drift.schedule",
			Message: fmt.Sprintf("invalid cron expression %q", c.Schedule),
		}}
	}
	return nil
}

func validateLogging(c *LoggingConfig) []FieldError {
	var errs []FieldError
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Level),
		})
	}
	switch strings.ToLower(c.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q", c.Format),
		})
	}
	return errs
}
