package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensase/upo/pkg/apply"
	"github.com/opensase/upo/pkg/cli"
	"github.com/opensase/upo/pkg/config"
	"github.com/opensase/upo/pkg/telemetry/logging"
)

var planFlags struct {
	file    string
	targets []string
	format  string
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what apply would change",
	Long: `Compile the intent, read every target's live state, and print the
operations apply would perform. Nothing is mutated.

Examples:
  # Plan against all configured targets
  upo plan --file intent.yaml

  # Plan one target, machine-readable
  upo plan --target opnsense --format json`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVarP(&planFlags.file, "file", "f", "", "intent file (defaults to the configured source)")
	planCmd.Flags().StringSliceVarP(&planFlags.targets, "target", "t", nil, "restrict to specific targets (repeatable)")
	planCmd.Flags().StringVar(&planFlags.format, "format", "text", "output format: text, json, yaml")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	plans, err := buildPlans(cmd, cfg, logger, planFlags.file, planFlags.targets)
	if err != nil {
		return err
	}

	switch planFlags.format {
	case "text", "":
		printPlans(cmd, plans)
		return nil
	default:
		formatter, err := cli.NewFormatter(planFlags.format)
		if err != nil {
			return err
		}
		return formatter.FormatTo(cmd.OutOrStdout(), plans)
	}
}

// buildPlans runs the compile pipeline and diffs the output against the live
// targets.
func buildPlans(cmd *cobra.Command, cfg *config.Config, logger *logging.Logger, file string, targetNames []string) ([]*apply.Plan, error) {
	configs, selected, err := compilePipeline(cmd, cfg, logger, file, targetNames)
	if err != nil {
		return nil, err
	}

	clients, err := buildClients(cfg, selected)
	if err != nil {
		return nil, err
	}

	orch, err := apply.NewOrchestrator(apply.OrchestratorConfig{
		Clients: clients,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	// Only plan targets that both compiled and have an enabled client.
	plans, err := orch.PlanAll(cmd.Context(), withClients(configs, clients), orderings(selected))
	if err != nil {
		return nil, cli.NewCommandError("plan", err)
	}
	return plans, nil
}

func printPlans(cmd *cobra.Command, plans []*apply.Plan) {
	out := cmd.OutOrStdout()
	for _, plan := range plans {
		add, modify, remove := plan.Counts()
		fmt.Fprintf(out, "%s: %d to add, %d to change, %d to remove\n",
			plan.Target, add, modify, remove)
		for _, op := range plan.Operations {
			fmt.Fprintf(out, "  %-6s %s/%s\n", op.Kind, op.Resource, op.Name)
		}
	}
}
