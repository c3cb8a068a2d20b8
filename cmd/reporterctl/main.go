package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/app"
	"github.com/BarkinBalci/conversion-reporting-service/internal/config"
	"github.com/BarkinBalci/conversion-reporting-service/internal/logger"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "reporterctl",
		Short:         "Maintenance commands for the conversion reporting service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(optimizeCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(enqueueCmd())

	return rootCmd
}

// environment loads configuration and a logger for one command run
func environment() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.Service.Environment, cfg.Service.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// withApp opens every collaborator, runs fn and closes them again
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, log, err := environment()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("Failed to close service", zap.Error(err))
		}
	}()

	return fn(a)
}
