// Package app wires stores, domain services and background jobs from config.
// Both the API and the standalone worker build on it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/cczslater/sellbuydeal-sub000/internal/config"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/credit"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/gateway"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/loyalty"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/promotion"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/transfer"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/database"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/metrics"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/payment"
	"github.com/cczslater/sellbuydeal-sub000/internal/store"
	"github.com/cczslater/sellbuydeal-sub000/internal/store/memory"
	"github.com/cczslater/sellbuydeal-sub000/internal/store/postgres"
	"github.com/cczslater/sellbuydeal-sub000/internal/worker"
)

// App holds the wired services of one process.
type App struct {
	Config   *config.Config
	Store    store.Store
	DB       *sqlx.DB
	Redis    *database.Redis
	Registry *prometheus.Registry

	Credits    credit.Service
	Loyalty    *loyalty.Service
	Promotions *promotion.Engine
	Gateway    *gateway.Service
}

// New opens the configured store and Redis, then builds the services.
// Redis is optional: without it the worker falls back to a local lock and
// payments skip idempotency keys.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.UsesMemoryStore() {
		log.Warn().Msg("Using in-memory store, balances are lost on restart")
		a.Store = memory.New()
	} else {
		db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{MaxOpenConns: cfg.DBMaxConns})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.DB = db
		if cfg.RunMigration {
			if err := database.Migrate(ctx, db.DB, "up"); err != nil {
				database.ClosePostgres(db)
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		a.Store = postgres.New(db)
	}

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, continuing without it")
		} else {
			a.Redis = rdb
		}
	}

	providers, err := payment.NewFactoryFromConfig(cfg.BackupPaymentMethods, cfg.BackupPaymentMode)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("backup payment providers: %w", err)
	}

	a.Credits = credit.NewService(a.Store)
	a.Loyalty = loyalty.NewService(a.Store, a.Credits, loyalty.Config{
		NewListingPoints:         cfg.LoyaltyPointsNewListing,
		HighQualityListingPoints: cfg.LoyaltyPointsHighQualityListing,
		SuccessfulSalePoints:     cfg.LoyaltyPointsSuccessfulSale,
	})
	a.Promotions = promotion.NewEngine(a.Store, a.Credits, a.Loyalty)
	a.Gateway = gateway.NewService(a.Store, a.Credits, a.Loyalty, providers,
		gateway.WithMetrics(metrics.NewGatewayMetrics(a.Registry)),
		gateway.WithPendingTimeout(cfg.GatewayPendingTimeout),
	)
	return a, nil
}

// Jobs returns the periodic jobs every worker process runs.
func (a *App) Jobs() []worker.Job {
	return []worker.Job{
		transfer.NewMaturationJob(a.Store, a.Gateway),
		gateway.NewRecoveryJob(a.Gateway),
		promotion.NewExpiryJob(a.Promotions),
	}
}

// Worker builds the job runner. With Redis the tick lock is shared across
// processes.
func (a *App) Worker() (*worker.Service, error) {
	var lock worker.Lock = worker.NewLocalLock()
	if a.Redis != nil {
		rl, err := worker.NewRedisLock(a.Redis, a.Redis.Key("lock", "worker"), a.Config.WorkerLockTTL)
		if err != nil {
			return nil, err
		}
		lock = rl
	}
	return worker.NewService(worker.Params{
		Registry: worker.NewRegistry(a.Jobs()...),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(a.Registry),
		Interval: a.Config.TransferWorkerInterval,
	})
}

// Ping checks the backing services.
func (a *App) Ping(ctx context.Context) error {
	var errs []error
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases connections.
func (a *App) Close() {
	if a.Redis != nil {
		database.CloseRedis(a.Redis)
	}
	if a.DB != nil {
		database.ClosePostgres(a.DB)
	}
}
