package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensase/upo/pkg/adapters"
	"github.com/opensase/upo/pkg/adapters/flexiwan"
	"github.com/opensase/upo/pkg/adapters/opnsense"
	"github.com/opensase/upo/pkg/adapters/ziti"
	"github.com/opensase/upo/pkg/apply/target"
	"github.com/opensase/upo/pkg/cli"
	"github.com/opensase/upo/pkg/config"
	"github.com/opensase/upo/pkg/intent/ast"
	"github.com/opensase/upo/pkg/intent/source"
	"github.com/opensase/upo/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "upo",
	Short: "Unified policy orchestrator for SASE control planes",
	Long: `upo compiles one declarative intent policy into native configurations
for heterogeneous SASE targets and keeps them converged:

  - OPNsense firewall (nftables rulesets, VLANs, IPS)
  - OpenZiti zero-trust overlay (services, dial/bind policies)
  - flexiWAN SD-WAN (segments, routing and steering policies)

Intent is declared once; each target receives the strongest faithful
rendition its feature set allows, with every substitution reported.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "upo.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads the configuration file with environment overrides. When
// the default config file is absent, a built-in default is used so commands
// taking an explicit --file still work without any config.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		if cfgFile == "upo.yaml" {
			return config.Default(), nil
		}
		return nil, cli.NewConfigError("", fmt.Sprintf("config file %q not found", cfgFile))
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

// newLogger builds the logger from config, with --verbose forcing debug.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := cfg.Telemetry.Logging
	level := lc.Level
	if verbose {
		level = "debug"
	}
	redact := lc.RedactSecrets == nil || *lc.RedactSecrets
	return logging.New(logging.Config{
		Level:         level,
		Format:        lc.Format,
		AddSource:     lc.AddSource,
		RedactSecrets: redact,
	})
}

// builtinAdapters returns every registered target adapter.
func builtinAdapters() []adapters.Adapter {
	return []adapters.Adapter{
		opnsense.New(),
		ziti.New(),
		flexiwan.New(),
	}
}

// selectAdapters filters the registry by the --target flag. An empty filter
// selects everything.
func selectAdapters(names []string) ([]adapters.Adapter, error) {
	all := builtinAdapters()
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]adapters.Adapter, len(all))
	for _, a := range all {
		byName[a.Name()] = a
	}

	selected := make([]adapters.Adapter, 0, len(names))
	for _, name := range names {
		a, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown target %q (known: %v)", name, adapters.Names(all))
		}
		selected = append(selected, a)
	}
	return selected, nil
}

// orderings maps each adapter to its declared operation ordering.
func orderings(selected []adapters.Adapter) map[string][]adapters.OpKind {
	out := make(map[string][]adapters.OpKind, len(selected))
	for _, a := range selected {
		out[a.Name()] = a.Ordering()
	}
	return out
}

// loadIntent loads exactly one intent policy. An explicit file beats the
// configured source; the configured source may be a git repository or a
// local path. Multiple policies in a directory are a set for validate, but
// compile/plan/apply operate on one policy at a time.
func loadIntent(cmd *cobra.Command, cfg *config.Config, file string, logger *logging.Logger) (*ast.IntentPolicy, error) {
	policies, err := loadIntentSet(cmd, cfg, file, logger)
	if err != nil {
		return nil, err
	}
	if len(policies) != 1 {
		return nil, fmt.Errorf("expected exactly one intent policy, found %d; pass --file to pick one", len(policies))
	}
	return policies[0], nil
}

// loadIntentSet loads every policy from the chosen source.
func loadIntentSet(cmd *cobra.Command, cfg *config.Config, file string, logger *logging.Logger) ([]*ast.IntentPolicy, error) {
	loader := source.NewLoader()

	if file != "" {
		policy, err := loader.LoadFile(file)
		if err != nil {
			return nil, err
		}
		return []*ast.IntentPolicy{policy}, nil
	}

	if cfg.Intent.Git.Repository != "" {
		git, err := source.NewGitSource(source.GitConfig{
			Repository: cfg.Intent.Git.Repository,
			Branch:     cfg.Intent.Git.Branch,
			Path:       cfg.Intent.Git.Path,
			LocalPath:  cfg.Intent.Git.LocalPath,
			Depth:      cfg.Intent.Git.Depth,
			Timeout:    cfg.Intent.Git.Timeout,
			Username:   cfg.Intent.Git.Username,
			Token:      cfg.Intent.Git.Token,
		}, logger)
		if err != nil {
			return nil, err
		}
		commit, err := git.Sync(cmd.Context())
		if err != nil {
			return nil, fmt.Errorf("sync intent repository: %w", err)
		}
		logger.Debug("intent repository synced", "commit", commit)
		return git.Load()
	}

	if cfg.Intent.Path == "" {
		return nil, cli.NewConfigError("intent", "no intent source: pass --file or configure intent.path")
	}
	return loader.Load(cfg.Intent.Path)
}

// buildClients creates an HTTP client per enabled, configured target.
func buildClients(cfg *config.Config, selected []adapters.Adapter) (map[string]target.Client, error) {
	clients := make(map[string]target.Client)
	for _, a := range selected {
		tc, ok := cfg.Targets[a.Name()]
		if !ok {
			return nil, cli.NewConfigError("targets."+a.Name(), "no endpoint configured")
		}
		if tc.Enabled != nil && !*tc.Enabled {
			continue
		}
		client, err := target.NewHTTPClient(target.HTTPClientConfig{
			Name:    a.Name(),
			BaseURL: tc.URL,
			APIKey:  tc.APIKey,
			Timeout: tc.Timeout,
		})
		if err != nil {
			return nil, err
		}
		clients[a.Name()] = client
	}
	if len(clients) == 0 {
		return nil, cli.NewConfigError("targets", "no enabled targets")
	}
	return clients, nil
}
