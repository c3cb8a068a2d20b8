package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/app"
	"github.com/BarkinBalci/conversion-reporting-service/internal/config"
	"github.com/BarkinBalci/conversion-reporting-service/internal/consumer"
	"github.com/BarkinBalci/conversion-reporting-service/internal/handler"
	"github.com/BarkinBalci/conversion-reporting-service/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment, cfg.Service.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	log.Info("Starting conversion reporting consumer",
		zap.String("environment", cfg.Service.Environment),
		zap.String("storeBackend", cfg.Reporter.StoreBackend),
		zap.String("trafficSource", cfg.Reporter.TrafficSource))

	ctx := context.Background()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize service", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("Failed to close service", zap.Error(err))
		}
	}()

	// Start health check and metrics endpoint
	server := &http.Server{
		Addr:              ":" + cfg.Consumer.HealthCheckPort,
		Handler:           handler.NewHandler(a.Store, a.Orchestrator, a.Metrics.Registry(), cfg.S3.Bucket, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health check server starting", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health check server error", zap.Error(err))
		}
	}()

	consumerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	if cfg.Consumer.Disabled {
		log.Warn("Consumer disabled, serving HTTP only")
		close(done)
	} else {
		c := consumer.NewConsumer(cfg, a.Queue, a.Orchestrator, log)
		log.Info("Consumer starting")
		go func() {
			defer close(done)
			if err := c.Start(consumerCtx); err != nil {
				log.Error("Consumer error", zap.Error(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down consumer gracefully")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down health check server", zap.Error(err))
	}
}
