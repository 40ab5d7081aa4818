// Package main is the entry point for the pulsewatch CLI.
//
// Usage:
//
//	pulsewatch serve endpoints.yaml       # Probe endpoints and serve metrics
//	pulsewatch validate endpoints.yaml    # Validate configuration
//	pulsewatch version                    # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "pulsewatch",
	Short: "HTTP endpoint availability monitor",
	Long: `pulsewatch probes HTTP endpoints on a fixed interval and reports
cumulative availability per domain.

An endpoint is UP when it answers with a 2xx status in under 500ms.
Availability is logged after every cycle and exported as Prometheus
metrics.

Quick start:
  1. Create a config file (endpoints.yaml)
  2. Run: pulsewatch serve endpoints.yaml
  3. Scrape http://localhost:8000/metrics

Example config:
  - name: fetch index page
    url: https://fetch.com/
  - name: fetch careers page
    url: https://fetch.com/careers
    headers:
      user-agent: fetch-synthetic-monitor`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this pulsewatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pulsewatch %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
