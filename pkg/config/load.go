package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Secrets belong in the environment, not in
// the file:
//
//	UPO_LOG_LEVEL              overrides telemetry.logging.level
//	UPO_INTENT_GIT_TOKEN       overrides intent.git.token
//	UPO_TARGET_<NAME>_API_KEY  overrides targets.<name>.api_key
//
// Environment variables always take precedence over file values.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("UPO_LOG_LEVEL"); v != "" {
		cfg.Telemetry.Logging.Level = v
	}
	if v := os.Getenv("UPO_LOG_FORMAT"); v != "" {
		cfg.Telemetry.Logging.Format = v
	}
	if v := os.Getenv("UPO_INTENT_GIT_TOKEN"); v != "" {
		cfg.Intent.Git.Token = v
	}

	for name, tc := range cfg.Targets {
		envName := "UPO_TARGET_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_API_KEY"
		if v := os.Getenv(envName); v != "" {
			tc.APIKey = v
			cfg.Targets[name] = tc
		}
	}
}
