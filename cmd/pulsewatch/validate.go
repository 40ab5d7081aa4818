package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pulsewatch/config"
)

// validateCmd validates a config source without probing anything.
var validateCmd = &cobra.Command{
	Use:   "validate <config_path>",
	Short: "Validate a config file or directory",
	Long: `Validate a pulsewatch config source without starting the monitor.

This command parses every YAML file, expands environment variables,
expands grids and checks all fields and endpoint name uniqueness. It is
useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  pulsewatch validate endpoints.yaml
  pulsewatch validate /etc/pulsewatch/endpoints.d`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	endpoints, err := config.LoadEndpoints(args[0])
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	domains := config.Domains(endpoints)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Endpoints: %d\n", len(endpoints))
	fmt.Fprintf(out, "  Domains:   %d\n", len(domains))
	for _, d := range domains {
		fmt.Fprintf(out, "    - %s\n", d)
	}
	return nil
}
