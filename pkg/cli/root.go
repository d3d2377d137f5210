// Package cli provides the stubd CLI commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build metadata, set from main via SetVersion.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion injects build-time version metadata.
func SetVersion(v, c, d string) {
	if v != "" {
		version = v
	}
	if c != "" {
		commit = c
	}
	if d != "" {
		buildDate = d
	}
}

var rootCmd = &cobra.Command{
	Use:           "stubd",
	Short:         "stubd - scenario-driven service simulator",
	Long:          "stubd simulates backend services by routing inbound messages to user-authored scenarios and returning their replies to the caller.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stubd %s (commit %s, built %s)\n", version, commit, buildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(executionsCmd)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
