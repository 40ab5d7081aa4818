package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pulsewatch"
	"github.com/jpalmerr/pulsewatch/config"
	"github.com/jpalmerr/pulsewatch/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// serveOptions holds the serve command flags.
type serveOptions struct {
	interval       int
	logLevel       string
	logFormat      string
	logFile        string
	metricsPort    int
	watchInterval  time.Duration
	maxConcurrency int
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve <config_path>",
	Short: "Probe endpoints and serve metrics",
	Long: `Probe every configured endpoint once per interval and report
cumulative availability per domain.

config_path is a YAML file or a directory of YAML files. It is checked
for changes every --watch-interval; a valid edit replaces the endpoint
list between cycles, an invalid one is logged and ignored.

The process runs until interrupted (Ctrl+C) or it receives SIGTERM.

Example:
  pulsewatch serve endpoints.yaml
  pulsewatch serve /etc/pulsewatch/endpoints.d --interval 30 --log-level DEBUG`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.IntVar(&serveOpts.interval, "interval", 15, "seconds between probe cycles")
	f.StringVar(&serveOpts.logLevel, "log-level", "INFO", "log level: DEBUG, INFO, WARNING, ERROR or CRITICAL")
	f.StringVar(&serveOpts.logFormat, "log-format", "text", "log format: text or json")
	f.StringVar(&serveOpts.logFile, "log-file", logging.DefaultFile, "rotating log file, empty to disable")
	f.IntVar(&serveOpts.metricsPort, "metrics-port", 8000, "port for /metrics and the availability API")
	f.DurationVar(&serveOpts.watchInterval, "watch-interval", 5*time.Second, "how often the config source is checked for changes")
	f.IntVar(&serveOpts.maxConcurrency, "max-concurrency", 0, "maximum probes in flight per cycle, 0 for unbounded")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveOpts.interval <= 0 {
		return errors.New("--interval must be a positive number of seconds")
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  serveOpts.logLevel,
		Format: serveOpts.logFormat,
		File:   serveOpts.logFile,
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	configPath := args[0]
	logger.Info("starting monitor",
		"config", configPath,
		"interval", serveOpts.interval,
		"metrics_port", serveOpts.metricsPort,
	)

	m, err := pulsewatch.New(
		pulsewatch.WithConfigSource(configPath, config.LoadEndpoints),
		pulsewatch.WithPollingInterval(time.Duration(serveOpts.interval)*time.Second),
		pulsewatch.WithWatchInterval(serveOpts.watchInterval),
		pulsewatch.WithPort(serveOpts.metricsPort),
		pulsewatch.WithMaxConcurrency(serveOpts.maxConcurrency),
		pulsewatch.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- m.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("monitor error: %w", err)
		}
	case <-ctx.Done():
		// signal received, give in-flight work a bounded time to finish
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("monitor error: %w", err)
			}
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}

	for _, d := range m.Availability() {
		logger.Info("final availability",
			"domain", d.Domain,
			"availability_pct", d.Percent,
			"up", d.Up,
			"total", d.Total,
		)
	}
	logger.Info("shutdown complete")
	return nil
}
