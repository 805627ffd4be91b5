package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/fact-history/config"
	"github.com/upb/fact-history/middleware"
	"github.com/upb/fact-history/repositories"
	"github.com/upb/fact-history/repositories/postgres"
	"github.com/upb/fact-history/repositories/sqlite"
	"github.com/upb/fact-history/services/history"
	"github.com/upb/fact-history/services/retention"
	"go.uber.org/zap"
)

const defaultStopTimeout = 30 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Storage; exactly one engine is set
	RepoFactory *postgres.RepositoryFactory
	SQLite      *sqlite.Store
	Events      repositories.FactEventRepository

	// Services
	History   *history.Service
	Retention *retention.Service // nil unless retention is enabled

	// Auth
	AuthMiddleware *middleware.AuthMiddleware

	closed bool
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initServices(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("retention_enabled", deps.Retention != nil))
	return deps, nil
}

// initStorage opens the configured engine and makes sure the schema exists
func (d *Dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.Database.SQLitePath, d.Logger)
		if err != nil {
			return err
		}
		d.SQLite = store
		d.Events = store.NewFactEventRepository()

	case config.DriverPostgres:
		factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create repository factory: %w", err)
		}
		if err := factory.InitSchema(ctx); err != nil {
			_ = factory.Close()
			return err
		}
		d.RepoFactory = factory
		d.Events = factory.NewFactEventRepository()

	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	d.Logger.Info("fact history storage ready",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) {
	d.History = history.NewService(d.Events, d.Logger, history.Config{
		EraseBatchSize:    cfg.History.EraseBatchSize,
		DefaultPurgeLimit: cfg.History.DefaultPurgeLimit,
	})

	if cfg.Retention.Enabled {
		d.Retention = retention.NewService(d.History, d.Logger, retention.Config{
			Interval:         cfg.Retention.Interval,
			MaxAge:           cfg.Retention.MaxAge,
			BatchSize:        cfg.Retention.BatchSize,
			BatchesPerSecond: cfg.Retention.BatchesPerSecond,
		})
	}
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("auth secret not configured, maintenance endpoints will reject all requests")
	}
	validator := middleware.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
}

// Close gracefully shuts down all dependencies. It is safe to call more than once.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Retention != nil && d.Retention.GetStats().Started {
		timeout := d.Config.Retention.StopTimeout
		if timeout <= 0 {
			timeout = defaultStopTimeout
		}
		if err := d.Retention.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop retention job: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	if d.SQLite != nil {
		if err := d.SQLite.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sqlite store: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
