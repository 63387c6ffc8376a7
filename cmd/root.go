// Package cmd defines and implements the CLI commands for the taxforms
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/borshchevsky/tax-forms-scraper/internal/config"
	"github.com/borshchevsky/tax-forms-scraper/internal/logging"
	"github.com/borshchevsky/tax-forms-scraper/internal/pipeline"
	"github.com/borshchevsky/tax-forms-scraper/internal/telemetry"
)

var cfgFile string

// env bundles the services a command needs for one invocation.
type env struct {
	cfg     config.Config
	logger  *zap.Logger
	pipe    *pipeline.Pipeline
	metrics *telemetry.Server
}

// newEnv loads config, builds the logger and pipeline, and starts the
// optional metrics endpoint.
func newEnv() (*env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	e := &env{
		cfg:    cfg,
		logger: logger,
		pipe: pipeline.New(pipeline.Config{
			CatalogBaseURL: cfg.Catalog.BaseURL,
			ResultsPerPage: cfg.Catalog.ResultsPerPage,
			UserAgent:      cfg.HTTP.UserAgent,
			RespectRobots:  cfg.HTTP.RespectRobots,
			Timeout:        cfg.Timeout(),
			MaxRetries:     cfg.HTTP.MaxRetries,
			BackoffInitial: cfg.BackoffInitial(),
			BackoffMax:     cfg.BackoffMax(),
			MaxInFlight:    cfg.Pipeline.MaxInFlight,
			RateRPS:        cfg.RateLimit.RPS,
			RateBurst:      cfg.RateLimit.Burst,
		}, logger),
	}

	if cfg.Metrics.Addr != "" {
		e.metrics = telemetry.NewServer(cfg.Metrics.Addr, logger)
		go func() {
			if err := e.metrics.Start(); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	return e, nil
}

func (e *env) close() {
	e.pipe.Close()
	if e.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := e.metrics.Shutdown(ctx); err != nil {
			e.logger.Warn("failed to shut down metrics server", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxforms",
		Short: "Look up and download historical tax forms from the IRS catalog.",
		Long: `taxforms resolves form identifiers against the IRS prior-year forms
and publications catalog. It reports the range of years each form was
published for, or downloads the PDF revisions inside a requested year
range.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDownloadCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
