package config

import "time"

// Config is the root configuration structure for the orchestrator. It covers
// where intent comes from, how to reach each target's management API, and the
// ambient subsystems: history, cache, drift checking and telemetry.
type Config struct {
	// Intent describes where intent policies are loaded from.
	Intent IntentConfig `yaml:"intent"`

	// Targets maps target names ("opnsense", "ziti", "flexiwan") to their
	// management API endpoints. A compiled target with no entry here can be
	// planned but not applied.
	Targets map[string]TargetConfig `yaml:"targets"`

	// History configures the apply report store.
	History HistoryConfig `yaml:"history"`

	// Cache configures the compiled-config cache.
	Cache CacheConfig `yaml:"cache"`

	// Drift configures scheduled drift checks.
	Drift DriftConfig `yaml:"drift"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// IntentConfig describes the intent source.
type IntentConfig struct {
	// Path is a local intent file or directory. Ignored when Git.Repository
	// is set.
	Path string `yaml:"path"`

	// Watch enables recompiling when the intent path changes.
	Watch bool `yaml:"watch"`

	// DebounceInterval is the quiet period before a watched change triggers
	// a reload.
	// Default: 250ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// Git configures a git-backed intent source.
	Git GitConfig `yaml:"git"`
}

// GitConfig configures pulling intent from a git repository.
type GitConfig struct {
	// Repository is the clone URL. Empty disables the git source.
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path is the intent file or directory inside the repository.
	// Default: "."
	Path string `yaml:"path"`

	// LocalPath is where the working copy lives.
	LocalPath string `yaml:"local_path"`

	// Depth enables shallow clones when > 0.
	Depth int `yaml:"depth"`

	// Timeout bounds clone and fetch operations.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// Username and Token authenticate over HTTPS. The token can also come
	// from UPO_INTENT_GIT_TOKEN.
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

// TargetConfig is one target's management API endpoint.
type TargetConfig struct {
	// URL is the management API root, e.g. "https://fw.branch.example:8443".
	URL string `yaml:"url"`

	// APIKey authenticates against the management API. Can also come from
	// UPO_TARGET_<NAME>_API_KEY.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each individual API call.
	// Default: 15s
	Timeout time.Duration `yaml:"timeout"`

	// Enabled excludes the target from apply runs when false without
	// removing its configuration.
	// Default: true
	Enabled *bool `yaml:"enabled"`
}

// HistoryConfig configures the apply report store.
type HistoryConfig struct {
	// Enabled turns report persistence on.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the SQLite database file.
	// Default: "data/history.db"
	Path string `yaml:"path"`

	// RetentionDays is how long reports are kept. Zero keeps forever.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`
}

// CacheConfig configures the compiled-config cache.
type CacheConfig struct {
	// Enabled turns the cache on. The cache is a pure optimization and is
	// off by default.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file.
	// Default: "data/cache.db"
	Path string `yaml:"path"`
}

// DriftConfig configures scheduled drift checks.
type DriftConfig struct {
	// Schedule is a standard cron expression. Empty disables scheduled
	// checks.
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text", "console").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	AddSource bool `yaml:"add_source"`

	// RedactSecrets masks target credentials in log fields.
	// Default: true
	RedactSecrets *bool `yaml:"redact_secrets"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns metric recording on.
	Enabled bool `yaml:"enabled"`

	// ListenAddress serves the /metrics endpoint when non-empty, e.g.
	// "127.0.0.1:9090". Only used by long-running modes (watch, drift).
	ListenAddress string `yaml:"listen_address"`

	// Namespace prefixes every metric name.
	// Default: "upo"
	Namespace string `yaml:"namespace"`
}
