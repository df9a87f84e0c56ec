package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xkayo32/pytake-sub002/internal/config"
	"github.com/xkayo32/pytake-sub002/internal/constants"
	"github.com/xkayo32/pytake-sub002/internal/logger"
	"github.com/xkayo32/pytake-sub002/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webhook-service",
		Short: "Multi-tenant outbound webhook delivery",
		Long:  "Delivers signed webhook events to tenant endpoints, retrying failures from a Redis-backed job queue",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigFile(earlyLog *logging.EarlyLog) (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	if env := os.Getenv("CONFIG_FILE"); env != "" {
		return env, nil
	}
	earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
	return "", fmt.Errorf("config file is required")
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook service",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			path, err := resolveConfigFile(earlyLog)
			if err != nil {
				return err
			}

			cfg, err := config.Load(path)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			ctx = logging.WithServiceName(ctx, constants.ServiceName)

			log.InfowCtx(ctx, "Starting webhook service", "tenants", len(cfg.Tenants))

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			err = app.Run(ctx)
			if shutdownErr := app.Shutdown(context.Background()); shutdownErr != nil {
				log.ErrorwCtx(ctx, "Shutdown error", "error", shutdownErr)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			path, err := resolveConfigFile(earlyLog)
			if err != nil {
				return err
			}

			cfg, err := config.Load(path)
			if err != nil {
				earlyLog.Error("Invalid config: %v", err)
				return err
			}

			earlyLog.Info("Config OK: %d tenant(s), broker=%q, worker enabled=%t",
				len(cfg.Tenants), cfg.Broker.Type, cfg.Worker.Enabled)
			return nil
		},
	}
}
