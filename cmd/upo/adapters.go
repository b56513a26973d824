package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opensase/upo/pkg/intent/ast"
)

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List target adapters and their capabilities",
	Long: `List every registered target adapter with the actions and inspection
levels it can express natively. Intent outside a target's capabilities is
either substituted upward (a capability gap) or refused (a capability
error); this table shows where each target stands.`,
	Run: runAdapters,
}

func init() {
	rootCmd.AddCommand(adaptersCmd)
}

func runAdapters(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	for _, a := range builtinAdapters() {
		caps := a.Capabilities()
		fmt.Fprintf(out, "%s - %s\n", a.Name(), a.Description())

		actions := make([]string, 0, len(caps.Actions))
		for action := range caps.Actions {
			actions = append(actions, string(action))
		}
		sort.Strings(actions)
		fmt.Fprintf(out, "  actions:     %s\n", strings.Join(actions, ", "))

		levels := make([]ast.InspectionLevel, 0, len(caps.Inspections))
		for level := range caps.Inspections {
			levels = append(levels, level)
		}
		sort.Slice(levels, func(i, j int) bool { return levels[i].Rank() < levels[j].Rank() })
		names := make([]string, len(levels))
		for i, l := range levels {
			names[i] = string(l)
		}
		fmt.Fprintf(out, "  inspections: %s\n", strings.Join(names, ", "))
	}
}
