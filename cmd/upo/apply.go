package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensase/upo/pkg/adapters"
	"github.com/opensase/upo/pkg/apply"
	"github.com/opensase/upo/pkg/apply/history"
	"github.com/opensase/upo/pkg/apply/target"
	"github.com/opensase/upo/pkg/cli"
	"github.com/opensase/upo/pkg/config"
	"github.com/opensase/upo/pkg/telemetry/logging"
)

var applyFlags struct {
	file    string
	targets []string
	dryRun  bool
	format  string
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Push compiled configurations to the targets",
	Long: `Compile the intent, diff it against every target's live state, and
apply the resulting operations.

Targets are applied concurrently and independently. Within one target
operations run in order and stop at the first failure; the remaining
operations count as skipped. Other targets are never rolled back or
blocked. The exit code is non-zero when any target failed.

Every run is recorded in the history store (unless disabled) under a
unique run ID.

Examples:
  # Apply everything
  upo apply --file intent.yaml

  # Report without mutating
  upo apply --dry-run

  # One target only
  upo apply --target flexiwan`,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVarP(&applyFlags.file, "file", "f", "", "intent file (defaults to the configured source)")
	applyCmd.Flags().StringSliceVarP(&applyFlags.targets, "target", "t", nil, "restrict to specific targets (repeatable)")
	applyCmd.Flags().BoolVar(&applyFlags.dryRun, "dry-run", false, "plan and report without mutating any target")
	applyCmd.Flags().StringVar(&applyFlags.format, "format", "text", "output format: text, json, yaml")
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	configs, selected, err := compilePipeline(cmd, cfg, logger, applyFlags.file, applyFlags.targets)
	if err != nil {
		return err
	}

	// A config carrying capability errors states intent the target cannot
	// express. Applying it would silently under-enforce, so it is refused.
	for name, cc := range configs {
		if cc.HasErrors() {
			return cli.NewCommandError("apply",
				fmt.Errorf("target %s has %d inexpressible rule(s); run 'upo compile' for details", name, len(cc.Errors)))
		}
	}

	clients, err := buildClients(cfg, selected)
	if err != nil {
		return err
	}

	orch, err := apply.NewOrchestrator(apply.OrchestratorConfig{
		Clients: clients,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	plans, err := orch.PlanAll(cmd.Context(), withClients(configs, clients), orderings(selected))
	if err != nil {
		return cli.NewCommandError("apply", err)
	}

	var policyName string
	for _, cc := range configs {
		policyName = cc.PolicyName
		break
	}

	report := orch.Run(cmd.Context(), plans, apply.RunOptions{
		PolicyName: policyName,
		DryRun:     applyFlags.dryRun,
	})

	if cfg.History.Enabled == nil || *cfg.History.Enabled {
		if err := saveReport(cmd, cfg.History.Path, report); err != nil {
			logger.Warn("apply report not persisted", "error", err)
		}
	}

	if err := printReport(cmd, report, applyFlags.format); err != nil {
		return err
	}

	if !report.Success() {
		return cli.NewCommandError("apply", fmt.Errorf("one or more targets failed; run ID %s", report.ID))
	}
	return nil
}

// applyCompiled plans and applies already-compiled configs. Used by watch
// mode, where compilation already happened and output goes to the log.
func applyCompiled(cmd *cobra.Command, cfg *config.Config, logger *logging.Logger, configs map[string]*adapters.CompiledConfig, selected []adapters.Adapter) error {
	for name, cc := range configs {
		if cc.HasErrors() {
			return fmt.Errorf("target %s has %d inexpressible rule(s)", name, len(cc.Errors))
		}
	}

	clients, err := buildClients(cfg, selected)
	if err != nil {
		return err
	}
	orch, err := apply.NewOrchestrator(apply.OrchestratorConfig{Clients: clients, Logger: logger})
	if err != nil {
		return err
	}
	plans, err := orch.PlanAll(cmd.Context(), withClients(configs, clients), orderings(selected))
	if err != nil {
		return err
	}

	var policyName string
	for _, cc := range configs {
		policyName = cc.PolicyName
		break
	}

	report := orch.Run(cmd.Context(), plans, apply.RunOptions{PolicyName: policyName})
	if cfg.History.Enabled == nil || *cfg.History.Enabled {
		if err := saveReport(cmd, cfg.History.Path, report); err != nil {
			logger.Warn("apply report not persisted", "error", err)
		}
	}
	if !report.Success() {
		return fmt.Errorf("one or more targets failed; run ID %s", report.ID)
	}
	return nil
}

// withClients drops compiled configs for targets that have no enabled
// client, such as targets disabled in the config.
func withClients(configs map[string]*adapters.CompiledConfig, clients map[string]target.Client) map[string]*adapters.CompiledConfig {
	out := make(map[string]*adapters.CompiledConfig, len(configs))
	for name, cc := range configs {
		if _, ok := clients[name]; ok {
			out[name] = cc
		}
	}
	return out
}

func saveReport(cmd *cobra.Command, path string, report *apply.Report) error {
	store, err := history.NewStore(&history.Config{Path: path, WALMode: true})
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(cmd.Context(), report)
}

func printReport(cmd *cobra.Command, report *apply.Report, format string) error {
	if format != "text" && format != "" {
		formatter, err := cli.NewFormatter(format)
		if err != nil {
			return err
		}
		return formatter.FormatTo(cmd.OutOrStdout(), report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s (policy %s)\n", report.ID, report.PolicyName)
	for _, res := range report.Results {
		fmt.Fprintf(out, "  %s: %s (applied %d, failed %d, skipped %d)\n",
			res.Target, res.Status, res.Applied, res.Failed, res.Skipped)
		if res.Error != "" {
			fmt.Fprintf(out, "    error: %s\n", res.Error)
		}
	}
	return nil
}
