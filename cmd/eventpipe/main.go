// Package main is the entry point for the eventpipe CLI.
//
// eventpipe can be run either as a library (SDK) or as a standalone binary
// with YAML and environment configuration. This CLI provides the standalone
// binary approach.
//
// Usage:
//
//	eventpipe run                       # Run with defaults and EVENTPIPE_* overrides
//	eventpipe run -c eventpipe.yaml     # Run with a config file
//	eventpipe validate -c eventpipe.yaml # Validate configuration
//	eventpipe version                   # Show version info
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
	Use:   "eventpipe",
	Short: "A periodic event pipeline with observable stages",
	Long: `eventpipe emits an event on a fixed period and logs every stage of
its journey: subscription, generation and publication.

Each tick becomes an event either locally ("Event ----> <n>") or by
fetching {base_url}/get. Generation and publication run on separate
goroutines.

Quick start:
  1. Run: eventpipe run
  2. Watch the JSON log lines on stderr (stage=generated, stage=published)
  3. Optionally set listen_addr and open the dashboard in your browser

Example config:
  strategy: remote
  base_url: https://httpbin.org/
  period: 5s
  listen_addr: ":8080"`,
}

// Execute runs the root command.
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
	Long:  `Print the version, commit hash, and build date of this eventpipe binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("eventpipe %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
