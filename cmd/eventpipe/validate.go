package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/eventpipe/config"
)

// validateCmd validates configuration without starting the pipeline.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate eventpipe configuration without starting the pipeline.

This command parses the YAML (if given), applies EVENTPIPE_* overrides,
expands environment variables and validates all fields. It's useful for
CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  eventpipe validate -c eventpipe.yaml
  EVENTPIPE_PERIOD=500ms eventpipe validate`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	listen := cfg.ListenAddr
	if listen == "" {
		listen = "disabled"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Strategy:      %s\n", cfg.Strategy)
	fmt.Printf("  Period:        %s\n", cfg.Period.Duration())
	if cfg.Strategy == "remote" {
		fmt.Printf("  Endpoint:      %s (path %q)\n", cfg.BaseURL, cfg.Path)
	}
	fmt.Printf("  Status server: %s\n", listen)
	fmt.Printf("  Tracing:       %t\n", cfg.Tracing.Enabled)

	return nil
}
