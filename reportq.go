// Package reportq provides an ad-hoc report query engine: callers declare an entity,
// columns, filters and a row window, and the engine builds, runs and caches the query.
package reportq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ammar0144/reportq/pkg/config"
	"github.com/ammar0144/reportq/pkg/db"
	"github.com/ammar0144/reportq/pkg/definitions"
	"github.com/ammar0144/reportq/pkg/redis"
	"github.com/ammar0144/reportq/pkg/report"
)

// Config represents the application configuration
type Config = config.Config

// Engine is the report engine
type Engine = report.Engine

// Request describes one report run
type Request = report.Request

// Result is the normalized output of a report run
type Result = report.Result

// App owns the engine and the connections behind it
type App struct {
	Engine  *report.Engine
	Querier db.Querier
	Redis   *redis.Manager
}

// New connects to the remote store (and redis when enabled) and builds the engine
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	registry, err := report.DefaultRegistry()
	if err != nil {
		return nil, err
	}

	querier, err := db.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	redisManager, err := redis.NewManager(&cfg.Redis)
	if err != nil {
		querier.Close()
		return nil, err
	}
	if err := redisManager.Ping(ctx); err != nil {
		// The shared tier is optional; run with the in-process cache only
		logger.Warn("redis unavailable, shared report cache disabled", slog.Any("error", err))
		redisManager.Close()
		redisManager = nil
	}

	cache := report.NewResultCache(cfg.Cache,
		report.WithSharedCache(redisManager),
		report.WithCacheLogger(logger))

	engine := report.NewEngine(registry, report.NewExecutor(querier, logger),
		report.WithCache(cache),
		report.WithDefinitions(definitions.NewStore(cfg.Definitions.Path)),
		report.WithLogger(logger))

	return &App{
		Engine:  engine,
		Querier: querier,
		Redis:   redisManager,
	}, nil
}

// Close releases the remote store and redis connections
func (a *App) Close() error {
	var errs []error
	if a.Querier != nil {
		errs = append(errs, a.Querier.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}
