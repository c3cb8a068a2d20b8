// Package app opens the collaborators shared by the consumer and the maintenance CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/capi"
	"github.com/BarkinBalci/conversion-reporting-service/internal/config"
	"github.com/BarkinBalci/conversion-reporting-service/internal/metrics"
	"github.com/BarkinBalci/conversion-reporting-service/internal/queue/sqs"
	"github.com/BarkinBalci/conversion-reporting-service/internal/reporter"
	"github.com/BarkinBalci/conversion-reporting-service/internal/repository"
	"github.com/BarkinBalci/conversion-reporting-service/internal/repository/clickhouse"
	"github.com/BarkinBalci/conversion-reporting-service/internal/repository/postgres"
	s3storage "github.com/BarkinBalci/conversion-reporting-service/internal/storage/s3"
	"github.com/BarkinBalci/conversion-reporting-service/internal/subscription/dynamodb"
)

// App holds opened clients. Close releases them.
type App struct {
	Config       *config.Config
	Store        repository.ConversionRepository
	Optimizer    repository.TableOptimizer
	Pixels       *postgres.PixelRepository
	Objects      *s3storage.Client
	Queue        *sqs.Client
	Metrics      *metrics.Manager
	Orchestrator *reporter.Orchestrator

	pool *pgxpool.Pool
	log  *zap.Logger
}

// New opens every collaborator and initializes the conversions schema
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.NewManager(), log: log}

	pool, err := postgres.NewPool(ctx, &cfg.Postgres, log)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	a.Pixels = postgres.NewPixelRepository(pool, log)

	if err := a.openStore(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	if err := a.Store.InitSchema(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if a.Objects, err = s3storage.NewClient(ctx, cfg.S3, log); err != nil {
		_ = a.Close()
		return nil, err
	}

	if a.Queue, err = sqs.NewClient(ctx, cfg.SQS, log); err != nil {
		_ = a.Close()
		return nil, err
	}

	subscriptions, err := dynamodb.NewSubscriptionSource(ctx, cfg.DynamoDB, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	capiClient := capi.NewClient(capi.ClientConfig{
		BaseURL:    cfg.CAPI.BaseURL,
		APIVersion: cfg.CAPI.APIVersion,
		Timeout:    time.Duration(cfg.CAPI.TimeoutSec) * time.Second,
	}, log)
	dispatcher := capi.NewDispatcher(a.Pixels, capiClient, cfg.Reporter.DispatchConcurrency, log)

	a.Orchestrator = reporter.NewOrchestrator(reporter.Config{
		DefaultBucket:     cfg.S3.Bucket,
		TrafficSource:     cfg.Reporter.TrafficSource,
		MaxEventsPerBatch: cfg.Reporter.MaxEventsPerBatch,
	}, reporter.Dependencies{
		Reader:        a.Objects,
		Subscriptions: subscriptions,
		Store:         a.Store,
		Pixels:        a.Pixels,
		Dispatcher:    dispatcher,
		Metrics:       a.Metrics,
	}, log)

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Reporter.StoreBackend {
	case config.StoreBackendClickHouse:
		client, err := clickhouse.NewClient(ctx, &a.Config.ClickHouse, a.log)
		if err != nil {
			return err
		}
		repo, err := clickhouse.NewRepository(client, a.Config.Reporter.ConversionsTable, a.log)
		if err != nil {
			_ = client.Close()
			return err
		}
		a.Store = repo
		a.Optimizer = repo
	case config.StoreBackendPostgres:
		repo, err := postgres.NewConversionRepository(a.pool, a.Config.Reporter.ConversionsTable, a.log)
		if err != nil {
			return err
		}
		a.Store = repo
	default:
		return fmt.Errorf("unsupported store backend: %s", a.Config.Reporter.StoreBackend)
	}
	return nil
}

// Close releases the store and the Postgres pool
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
