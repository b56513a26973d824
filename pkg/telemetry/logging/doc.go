// Package logging provides structured logging for the orchestrator built on
// log/slog, with configurable level and format and automatic redaction of
// target API credentials.
package logging
