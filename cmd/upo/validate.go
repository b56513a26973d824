package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensase/upo/pkg/cli"
	"github.com/opensase/upo/pkg/intent/parser"
	"github.com/opensase/upo/pkg/intent/validator"
)

var validateFlags struct {
	file string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an intent policy",
	Long: `Parse and validate an intent policy without compiling anything.

Validation runs in two passes: structural checks (required fields, value
ranges, duplicate names) are all collected and reported together; semantic
checks (undefined references, ambiguous rules) run only on structurally
sound documents. Every error carries the source location and, where
possible, a suggestion.

Examples:
  # Validate one file
  upo validate --file intent.yaml

  # Validate the configured intent source
  upo validate`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateFlags.file, "file", "f", "", "intent file (defaults to the configured source)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	if validateFlags.file != "" {
		return validateOne(cmd, validateFlags.file)
	}

	policies, err := loadIntentSet(cmd, cfg, "", logger)
	if err != nil {
		// Loading already validates; surface the first failure as-is.
		return cli.NewCommandError("validate", err)
	}
	for _, p := range policies {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%s, version %s)\n", p.SourceFile, p.Name, p.Version)
	}
	return nil
}

func validateOne(cmd *cobra.Command, path string) error {
	policy, err := parser.NewParser().ParseFile(path)
	if err != nil {
		return cli.NewCommandError("validate", err)
	}
	if err := validator.NewValidator().Validate(policy); err != nil {
		return cli.NewCommandError("validate", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%s, version %s)\n", path, policy.Name, policy.Version)
	return nil
}
