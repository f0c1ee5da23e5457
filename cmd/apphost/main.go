// Package main provides the apphost command, a demo host for the lifecycle
// package.
//
// Usage:
//
//	apphost run --name shop --diag-addr :8081
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "apphost",
	Short: "Demo host for application components",
	Long: `apphost boots a small set of demo components through the lifecycle host.

The db component connects after a simulated delay, the api component awaits
it, and the diagnostics component serves /healthz, /readyz and /metrics.
Settings come from flags or APPHOST_* environment variables.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show apphost version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "apphost", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Command failed: %v\n", err)
		os.Exit(1)
	}
}
