package config

import "time"

// ApplyDefaults fills in default values for any unset fields. It is called
// by LoadConfig after parsing and before validation, so validation always
// sees a fully populated configuration.
func ApplyDefaults(cfg *Config) {
	if cfg.Intent.DebounceInterval <= 0 {
		cfg.Intent.DebounceInterval = 250 * time.Millisecond
	}
	if cfg.Intent.Git.Repository != "" {
		if cfg.Intent.Git.Branch == "" {
			cfg.Intent.Git.Branch = "main"
		}
		if cfg.Intent.Git.Path == "" {
			cfg.Intent.Git.Path = "."
		}
		if cfg.Intent.Git.Timeout <= 0 {
			cfg.Intent.Git.Timeout = 60 * time.Second
		}
	}

	for name, tc := range cfg.Targets {
		if tc.Timeout <= 0 {
			tc.Timeout = 15 * time.Second
		}
		if tc.Enabled == nil {
			tc.Enabled = boolPtr(true)
		}
		cfg.Targets[name] = tc
	}

	if cfg.History.Enabled == nil {
		cfg.History.Enabled = boolPtr(true)
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "data/history.db"
	}
	if cfg.History.RetentionDays == 0 {
		cfg.History.RetentionDays = 90
	}

	if cfg.Cache.Path == "" {
		cfg.Cache.Path = "data/cache.db"
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Logging.RedactSecrets == nil {
		cfg.Telemetry.Logging.RedactSecrets = boolPtr(true)
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "upo"
	}
}

// Default returns a configuration with every default applied and no targets.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func boolPtr(b bool) *bool { return &b }
