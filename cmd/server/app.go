package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/labelhive-api/internal/api"
	"github.com/phrazzld/labelhive-api/internal/config"
	"github.com/phrazzld/labelhive-api/internal/domain/batching"
	"github.com/phrazzld/labelhive-api/internal/platform/metrics"
	"github.com/phrazzld/labelhive-api/internal/platform/postgres"
	"github.com/phrazzld/labelhive-api/internal/service"
	"github.com/phrazzld/labelhive-api/internal/service/auth"
	"github.com/phrazzld/labelhive-api/internal/store"
	"github.com/phrazzld/labelhive-api/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// application holds the shared dependencies of the server and owns their
// shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	registry *prometheus.Registry
	metrics  *metrics.Manager

	jwtService auth.JWTService
	handlers   *api.Handlers
	sweeper    *task.ExpirySweeper
}

// newApplication wires the PostgreSQL stores into the services.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	stores := postgres.NewStores(db, cfg.Auth.BCryptCost, logger)
	app, err := buildApplication(cfg, logger, stores, postgres.NewTransactor(db, stores))
	if err != nil {
		return nil, err
	}
	app.db = db
	return app, nil
}

// buildApplication creates the services, handlers and sweeper over the
// given stores.
func buildApplication(
	cfg *config.Config,
	logger *slog.Logger,
	stores store.Stores,
	transactor store.Transactor,
) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.NewManager(metrics.WithRegistry(app.registry))

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	rating := service.NewRatingService(stores.Users, logger)
	batches, err := service.NewBatchService(
		stores,
		transactor,
		rating,
		batching.Params{BatchSize: cfg.Batch.Size, ClaimTTL: cfg.Batch.ClaimTTL()},
		logger,
		service.WithBatchMetrics(app.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch service: %w", err)
	}
	labels, err := service.NewLabelService(stores, transactor, app.metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create label service: %w", err)
	}
	users := service.NewUserService(stores.Users, auth.NewBcryptVerifier(), logger)
	jobs := service.NewJobService(stores.Jobs, logger)

	app.handlers = &api.Handlers{
		Auth:   api.NewAuthHandler(users, app.jwtService, cfg.Auth, logger),
		Jobs:   api.NewJobHandler(jobs, batches, labels, logger),
		Batch:  api.NewBatchHandler(batches, logger),
		Labels: api.NewLabelHandler(labels, logger),
		Users:  api.NewUserHandler(rating, logger),
	}

	sweeperCfg := task.DefaultExpirySweeperConfig()
	sweeperCfg.Interval = cfg.Batch.SweepInterval()
	app.sweeper = task.NewExpirySweeper(batches, sweeperCfg, logger)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the expiry sweeper and serves HTTP until ctx is canceled.
func (app *application) Run(ctx context.Context) error {
	if err := app.sweeper.Start(); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to start expiry sweeper: %w", err)
	}
	defer app.cleanup()

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops background work and closes the database.
func (app *application) cleanup() {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.db != nil {
		closeDB(app.db, app.logger)
	}
	app.logger.Info("Application shutdown completed")
}
