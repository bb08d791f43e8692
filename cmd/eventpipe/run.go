package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/eventpipe"
	"github.com/jpalmerr/eventpipe/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}

// runCmd starts the event pipeline.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the event pipeline",
	Long: `Run the event pipeline until interrupted.

The command will:
  - Load configuration from the optional YAML file and EVENTPIPE_* variables
  - Activate the pipeline once and log every stage as JSON on stderr
  - Serve the dashboard, event API and /metrics if listen_addr is set

A failed remote fetch stops the pipeline but not the process; the error is
logged and reported by /api/state until shutdown.

The command runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  eventpipe run
  eventpipe run -c eventpipe.yaml --log-level debug
  EVENTPIPE_STRATEGY=local EVENTPIPE_PERIOD=1s eventpipe run`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to config file")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runRun(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"strategy", cfg.Strategy,
		"period", cfg.Period.Duration().String(),
		"tracing", cfg.Tracing.Enabled,
	)

	opts := append(config.BuildOptions(cfg), eventpipe.WithLogger(logger))
	ep, err := eventpipe.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create eventpipe: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start pipeline - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- ep.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("eventpipe error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("eventpipe error: %w", err)
			}
			logger.Info("shutdown complete", "state", ep.State().String())
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
