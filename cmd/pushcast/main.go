// Package main is the entry point for the pushcast CLI.
//
// Pushcast can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	pushcast serve                   # Start with defaults and environment
//	pushcast serve -c pushcast.yaml  # Start from a config file
//	pushcast validate -c pushcast.yaml
//	pushcast keys                    # Generate a VAPID key pair
//	pushcast version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "pushcast",
	Short: "A minimal Web Push broadcast service",
	Long: `Pushcast broadcasts Web Push notifications to every subscribed browser.

Browsers subscribe through the HTTP API, an operator sends a message from
the admin page or POST /api/push, and Pushcast delivers it to every
subscription, removing the ones the push service reports as expired.

Quick start:
  1. Run: pushcast keys -o .env
  2. Run: pushcast serve
  3. Open http://localhost:3000/admin in your browser

Example config:
  port: 3000
  vapid:
    subject: mailto:ops@example.com
    public_key: ${VAPID_PUBLIC_KEY}
    private_key: ${VAPID_PRIVATE_KEY}
  delivery:
    max_concurrency: 10
    timeout: 10s`,
	SilenceUsage: true,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this pushcast binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pushcast %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
