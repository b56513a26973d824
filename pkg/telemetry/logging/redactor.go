package logging

import (
	"regexp"
	"strings"
)

// Redactor masks target credentials in log fields. The orchestrator holds an
// API key per target and logs request context liberally, so redaction runs on
// field names and values rather than trusting call sites to be careful.
type Redactor struct {
	sensitiveKeys map[string]struct{}
	patterns      []*regexp.Regexp
}

const redactedValue = "[REDACTED]"

// NewRedactor creates a redactor covering the credential shapes that appear
// in target API traffic: bearer tokens, key=value secrets, and fields whose
// name marks them as sensitive.
func NewRedactor() *Redactor {
	keys := []string{
		"apikey", "api_key", "token", "authorization",
		"password", "secret", "credential",
	}
	sensitive := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		sensitive[k] = struct{}{}
	}
	return &Redactor{
		sensitiveKeys: sensitive,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`),
			regexp.MustCompile(`(?i)(api[_-]?key|token|secret)=\S+`),
		},
	}
}

// RedactArgs redacts a slog-style alternating key/value argument list.
// Values under sensitive keys are replaced wholesale; other string values are
// pattern-scanned.
func (r *Redactor) RedactArgs(args ...any) []any {
	out := make([]any, len(args))
	copy(out, args)

	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		if r.isSensitiveKey(key) {
			out[i+1] = redactedValue
			continue
		}
		if val, ok := out[i+1].(string); ok {
			out[i+1] = r.redactString(val)
		}
	}
	return out
}

func (r *Redactor) isSensitiveKey(key string) bool {
	_, ok := r.sensitiveKeys[strings.ToLower(key)]
	return ok
}

func (r *Redactor) redactString(s string) string {
	for _, p := range r.patterns {
		s = p.ReplaceAllString(s, redactedValue)
	}
	return s
}
