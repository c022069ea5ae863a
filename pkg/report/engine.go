package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ammar0144/reportq/pkg/definitions"
)

// DefinitionStore persists named report definitions
type DefinitionStore interface {
	Save(def definitions.Definition) (definitions.Definition, error)
	List() ([]definitions.Definition, error)
	Get(id string) (definitions.Definition, error)
	Delete(id string) error
}

// Engine exposes the report operations: entity discovery, report runs,
// saved definitions and cache invalidation.
type Engine struct {
	registry    *Registry
	runner      Runner
	cache       *ResultCache
	definitions DefinitionStore
	logger      *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithCache replaces the default result cache
func WithCache(c *ResultCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithDefinitions enables the saved definition operations
func WithDefinitions(s DefinitionStore) Option {
	return func(e *Engine) { e.definitions = s }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine over the registry and runner
func NewEngine(registry *Registry, runner Runner, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		runner:   runner,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = NewResultCache(DefaultCacheConfig(), WithCacheLogger(e.logger))
	}
	return e
}

// ListEntities returns the entity catalog in declaration order
func (e *Engine) ListEntities() []EntityConfig {
	return e.registry.ListEntities()
}

// GetEntityConfig returns the configuration of key or ErrDisallowedEntity
func (e *Engine) GetEntityConfig(key EntityKey) (EntityConfig, error) {
	return e.registry.Lookup(key)
}

// Cache returns the engine's result cache
func (e *Engine) Cache() *ResultCache {
	return e.cache
}

// RunReport validates the entity, normalizes the request and returns a cached or
// freshly executed result. Concurrent identical requests share one execution.
func (e *Engine) RunReport(ctx context.Context, req Request) (*Result, error) {
	cfg, err := e.registry.Lookup(req.Entity)
	if err != nil {
		return nil, err
	}

	normalized := req.Normalize(cfg)
	result, err := e.cache.Do(ctx, normalized, func(ctx context.Context) (*Result, error) {
		return e.runner.Execute(ctx, normalized, cfg)
	})
	if err != nil {
		e.logger.Error("report failed",
			slog.String("entity", string(cfg.Key)),
			slog.Any("error", err))
		return nil, err
	}
	return result, nil
}

// SaveDefinition stores a definition; entities are not validated at save time
func (e *Engine) SaveDefinition(def definitions.Definition) (definitions.Definition, error) {
	if e.definitions == nil {
		return definitions.Definition{}, ErrDefinitionsUnavailable
	}
	saved, err := e.definitions.Save(def)
	if err != nil {
		return definitions.Definition{}, fmt.Errorf("failed to save definition: %w", err)
	}
	return saved, nil
}

// ListDefinitions returns every saved definition
func (e *Engine) ListDefinitions() ([]definitions.Definition, error) {
	if e.definitions == nil {
		return nil, ErrDefinitionsUnavailable
	}
	return e.definitions.List()
}

// GetDefinition loads one saved definition
func (e *Engine) GetDefinition(id string) (definitions.Definition, error) {
	if e.definitions == nil {
		return definitions.Definition{}, ErrDefinitionsUnavailable
	}
	return e.definitions.Get(id)
}

// DeleteDefinition removes a saved definition
func (e *Engine) DeleteDefinition(id string) error {
	if e.definitions == nil {
		return ErrDefinitionsUnavailable
	}
	return e.definitions.Delete(id)
}

// RunDefinition loads a saved definition and runs it.
// A definition whose entity has since been removed fails with ErrDisallowedEntity.
func (e *Engine) RunDefinition(ctx context.Context, id string) (*Result, error) {
	def, err := e.GetDefinition(id)
	if err != nil {
		return nil, err
	}
	return e.RunReport(ctx, RequestFromDefinition(def))
}

// ClearCache drops every cached result
func (e *Engine) ClearCache(ctx context.Context) error {
	return e.cache.Clear(ctx)
}

// RequestFromDefinition converts a saved definition into a request
func RequestFromDefinition(def definitions.Definition) Request {
	limit := def.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return RequestFromInput(def.Entity, def.Columns, def.Filters, limit)
}

// RequestFromInput builds an ascending request from caller input, decoding raw filters
func RequestFromInput(entity string, columns []string, rawFilters map[string]interface{}, limit int) Request {
	return Request{
		Entity:    EntityKey(entity),
		Columns:   append([]string(nil), columns...),
		Filters:   DecodeFilters(rawFilters),
		Limit:     limit,
		Ascending: true,
	}
}

// DefinitionFromRequest captures a request as a definition to be saved
func DefinitionFromRequest(name string, req Request) definitions.Definition {
	return definitions.Definition{
		Name:    name,
		Entity:  string(req.Entity),
		Columns: append([]string(nil), req.Columns...),
		Filters: req.Filters.Raw(),
		Limit:   req.Limit,
	}
}
