package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensase/upo/pkg/apply/history"
	"github.com/opensase/upo/pkg/cli"
)

var historyFlags struct {
	policy string
	limit  int
	id     string
	format string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past apply runs",
	Long: `List past apply runs from the history store, newest first, or show
one run in full by ID.

Examples:
  # Last runs across all policies
  upo history

  # Runs for one policy
  upo history --policy branch-baseline

  # Full report of one run
  upo history --id 7d444840-9dc0-11d1-b245-5ffdce74fad2 --format json`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyFlags.policy, "policy", "", "restrict to one policy")
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "maximum runs to list")
	historyCmd.Flags().StringVar(&historyFlags.id, "id", "", "show one run by ID")
	historyCmd.Flags().StringVar(&historyFlags.format, "format", "text", "output format: text, json, yaml")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Enabled != nil && !*cfg.History.Enabled {
		return cli.NewConfigError("history.enabled", "history store is disabled")
	}

	store, err := history.NewStore(&history.Config{Path: cfg.History.Path, WALMode: true})
	if err != nil {
		return err
	}
	defer store.Close()

	if historyFlags.id != "" {
		report, err := store.Get(cmd.Context(), historyFlags.id)
		if err != nil {
			return cli.NewCommandError("history", err)
		}
		return printReport(cmd, report, historyFlags.format)
	}

	reports, err := store.List(cmd.Context(), history.ListOptions{
		PolicyName: historyFlags.policy,
		Limit:      historyFlags.limit,
	})
	if err != nil {
		return cli.NewCommandError("history", err)
	}

	if historyFlags.format != "text" && historyFlags.format != "" {
		formatter, err := cli.NewFormatter(historyFlags.format)
		if err != nil {
			return err
		}
		return formatter.FormatTo(cmd.OutOrStdout(), reports)
	}

	out := cmd.OutOrStdout()
	for _, r := range reports {
		outcome := "ok"
		if !r.Success() {
			outcome = "FAILED"
		}
		if r.DryRun {
			outcome = "dry-run"
		}
		fmt.Fprintf(out, "%s  %-20s %-8s %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.PolicyName, outcome, r.ID)
	}
	return nil
}
