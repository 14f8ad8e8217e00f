// Package cli implements the rtuned command-line interface using
// Cobra. Each subcommand maps to one daemon-lifecycle capability.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rtuned",
	Short: "rtuned — userspace resource-tuning daemon",
	Long: `rtuned arbitrates concurrent, time-bounded tuning requests from
multiple clients against a shared set of system resources, and applies
only the highest-priority winner per resource scope.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
