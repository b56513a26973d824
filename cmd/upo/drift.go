package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensase/upo/pkg/apply"
	"github.com/opensase/upo/pkg/cli"
	"github.com/opensase/upo/pkg/drift"
)

var driftFlags struct {
	file     string
	schedule bool
	format   string
}

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Compare live targets against the compiled intent",
	Long: `Compile the intent, read every target's live state, and report any
difference. Drift is configuration a target accumulated outside the
orchestrator: a hand-edited firewall rule, a service created directly on
the controller.

The check only observes. Run 'upo apply' to converge.

With --schedule, the check repeats on the cron expression from
drift.schedule in the config until interrupted.

Examples:
  # One-shot check
  upo drift

  # Keep checking on the configured schedule
  upo drift --schedule`,
	RunE: runDrift,
}

func init() {
	rootCmd.AddCommand(driftCmd)
	driftCmd.Flags().StringVarP(&driftFlags.file, "file", "f", "", "intent file (defaults to the configured source)")
	driftCmd.Flags().BoolVar(&driftFlags.schedule, "schedule", false, "run on the configured cron schedule until interrupted")
	driftCmd.Flags().StringVar(&driftFlags.format, "format", "text", "output format: text, json, yaml")
}

func runDrift(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	configs, selected, err := compilePipeline(cmd, cfg, logger, driftFlags.file, nil)
	if err != nil {
		return err
	}
	clients, err := buildClients(cfg, selected)
	if err != nil {
		return err
	}
	orch, err := apply.NewOrchestrator(apply.OrchestratorConfig{Clients: clients, Logger: logger})
	if err != nil {
		return err
	}

	checker := drift.NewChecker(orch, configs, orderings(selected), drift.Config{
		Schedule: cfg.Drift.Schedule,
	}, logger)

	if driftFlags.schedule {
		if cfg.Drift.Schedule == "" {
			return cli.NewConfigError("drift.schedule", "scheduled drift checks need a cron expression")
		}
		ctx := cli.SetupSignalHandler()
		if err := checker.Start(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checking for drift on schedule %q\n", cfg.Drift.Schedule)
		<-ctx.Done()
		checker.Stop()
		return nil
	}

	report := checker.Check(cmd.Context())
	if report.Err != nil {
		return cli.NewCommandError("drift", report.Err)
	}
	return printDrift(cmd, report, driftFlags.format)
}

func printDrift(cmd *cobra.Command, report *drift.Report, format string) error {
	if format != "text" && format != "" {
		formatter, err := cli.NewFormatter(format)
		if err != nil {
			return err
		}
		return formatter.FormatTo(cmd.OutOrStdout(), report)
	}

	out := cmd.OutOrStdout()
	drifted := report.Drifted()
	if len(drifted) == 0 {
		fmt.Fprintln(out, "no drift: every target matches the compiled intent")
		return nil
	}

	for name, plan := range report.Targets {
		if plan == nil || plan.Empty() {
			continue
		}
		add, modify, remove := plan.Counts()
		fmt.Fprintf(out, "%s drifted: %d missing, %d changed, %d unexpected\n",
			name, add, modify, remove)
		for _, op := range plan.Operations {
			fmt.Fprintf(out, "  %-6s %s/%s\n", op.Kind, op.Resource, op.Name)
		}
	}
	return nil
}
