package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensase/upo/pkg/adapters"
	"github.com/opensase/upo/pkg/cli"
	"github.com/opensase/upo/pkg/config"
	"github.com/opensase/upo/pkg/graph"
	"github.com/opensase/upo/pkg/graph/cache"
	"github.com/opensase/upo/pkg/telemetry/logging"
	"github.com/opensase/upo/pkg/telemetry/metrics"
)

var compileFlags struct {
	file    string
	targets []string
	format  string
	outDir  string
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile intent into per-target configurations",
	Long: `Compile the intent policy into each target's native configuration.

Compilation is pure: no target is contacted. The output includes, per
target, the generated configuration documents, any capability gaps (the
intent was honored with a stronger substitute) and capability errors (the
target cannot express the rule at all).

Examples:
  # Compile for all targets, print a summary
  upo compile --file intent.yaml

  # Full JSON output for one target
  upo compile --file intent.yaml --target ziti --format json

  # Write per-target files into a directory
  upo compile --file intent.yaml --out ./rendered`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringVarP(&compileFlags.file, "file", "f", "", "intent file (defaults to the configured source)")
	compileCmd.Flags().StringSliceVarP(&compileFlags.targets, "target", "t", nil, "restrict to specific targets (repeatable)")
	compileCmd.Flags().StringVar(&compileFlags.format, "format", "text", "output format: text, json, yaml")
	compileCmd.Flags().StringVar(&compileFlags.outDir, "out", "", "write per-target JSON files into this directory")
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	configs, _, err := compilePipeline(cmd, cfg, logger, compileFlags.file, compileFlags.targets)
	if err != nil {
		return err
	}

	if compileFlags.outDir != "" {
		return writeCompiled(cmd, configs, compileFlags.outDir)
	}

	switch compileFlags.format {
	case "text", "":
		printCompileSummary(cmd, configs)
		return nil
	default:
		formatter, err := cli.NewFormatter(compileFlags.format)
		if err != nil {
			return err
		}
		return formatter.FormatTo(cmd.OutOrStdout(), configs)
	}
}

// compilePipeline runs load -> resolve -> compile and returns the compiled
// configs plus the selected adapters. Compile failures on one target do not
// abort the others; they are reported and the target is left out.
func compilePipeline(cmd *cobra.Command, cfg *config.Config, logger *logging.Logger, file string, targetNames []string) (map[string]*adapters.CompiledConfig, []adapters.Adapter, error) {
	policy, err := loadIntent(cmd, cfg, file, logger)
	if err != nil {
		return nil, nil, err
	}

	g, err := graph.Resolve(policy)
	if err != nil {
		return nil, nil, cli.NewCommandError("compile", err)
	}
	logger.Debug("intent resolved",
		"policy", g.PolicyName(),
		"rules", g.Len(),
		"fingerprint", g.Fingerprint())

	selected, err := selectAdapters(targetNames)
	if err != nil {
		return nil, nil, err
	}

	collector := metrics.NewCollector(metrics.Config{
		Enabled:   cfg.Telemetry.Metrics.Enabled,
		Namespace: cfg.Telemetry.Metrics.Namespace,
	}, nil)

	var store *cache.Cache
	if cfg.Cache.Enabled {
		store, err = cache.New(cache.Config{Path: cfg.Cache.Path})
		if err != nil {
			logger.Warn("compiled-config cache unavailable", "error", err)
		} else {
			defer store.Close()
		}
	}

	configs := make(map[string]*adapters.CompiledConfig, len(selected))
	toCompile := make([]adapters.Adapter, 0, len(selected))
	for _, a := range selected {
		if store != nil {
			if cached, ok := store.Get(cmd.Context(), g.Fingerprint(), a.Name()); ok {
				logger.Debug("compile cache hit", "target", a.Name())
				configs[a.Name()] = cached
				continue
			}
		}
		toCompile = append(toCompile, a)
	}

	start := time.Now()
	compiled, failures := adapters.CompileAll(cmd.Context(), g, toCompile)
	for name, cc := range compiled {
		configs[name] = cc
		if store != nil {
			if err := store.Put(cmd.Context(), cc); err != nil {
				logger.Warn("compile cache write failed", "target", name, "error", err)
			}
		}
	}

	if cm := collector.Compiler(); cm != nil {
		cm.SetResolvedRules(g.Len())
		for name := range compiled {
			cm.RecordCompile(name, "success", time.Since(start))
			for _, gap := range compiled[name].Gaps {
				cm.RecordGap(name, string(gap.Requested))
			}
		}
		for name := range failures {
			cm.RecordCompile(name, "error", time.Since(start))
		}
	}

	for name, ferr := range failures {
		logger.Error("compilation failed", "target", name, "error", ferr)
	}
	if len(configs) == 0 && len(failures) > 0 {
		return nil, nil, cli.NewCommandError("compile", fmt.Errorf("every target failed to compile"))
	}

	return configs, selected, nil
}

func printCompileSummary(cmd *cobra.Command, configs map[string]*adapters.CompiledConfig) {
	out := cmd.OutOrStdout()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cc := configs[name]
		fmt.Fprintf(out, "%s (policy %s/%s, fingerprint %.12s)\n", name, cc.PolicyName, cc.PolicyVersion, cc.Fingerprint)
		fmt.Fprintf(out, "  items: %d\n", len(cc.Items()))
		for _, gap := range cc.Gaps {
			fmt.Fprintf(out, "  gap: %s -> %s (%s -> %s): %s\n",
				gap.Source, gap.Destination, gap.Requested, gap.Substituted, gap.Reason)
		}
		for _, cerr := range cc.Errors {
			fmt.Fprintf(out, "  error: %s\n", cerr.Error())
		}
	}
}

func writeCompiled(cmd *cobra.Command, configs map[string]*adapters.CompiledConfig, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	formatter := &cli.JSONFormatter{Indent: true}
	for name, cc := range configs {
		path := filepath.Join(dir, name+".json")
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := formatter.FormatTo(f, cc); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	}
	return nil
}
