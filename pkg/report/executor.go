package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ammar0144/reportq/pkg/db"
)

// Runner executes a normalized request against the remote store
type Runner interface {
	Execute(ctx context.Context, req Request, cfg EntityConfig) (*Result, error)
}

// QueryPlan is the query built for one report run
type QueryPlan struct {
	Builder *db.Builder
	Columns []string

	// virtual maps each requested virtual column to the alias its lookup value is selected under
	virtual map[string]string
}

// Executor builds and issues report queries. It is the only component that performs I/O.
type Executor struct {
	querier db.Querier
	logger  *slog.Logger
}

// NewExecutor creates an executor over the remote querier
func NewExecutor(querier db.Querier, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{querier: querier, logger: logger}
}

// BuildPlan builds the projection, lookups, predicates, ordering and window for req.
//
// Only lookups referenced by a requested virtual column are joined. Ordering is applied
// only when OrderBy is one of the requested physical columns.
func BuildPlan(req Request, cfg EntityConfig) *QueryPlan {
	limit := ClampLimit(req.Limit)
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	plan := &QueryPlan{
		Builder: db.NewBuilder(cfg.Table),
		virtual: make(map[string]string),
	}

	var projection []string
	physical := make(map[string]bool)
	joined := make(map[string]string) // lookup key -> selected alias
	var lookupKeys []string

	for _, name := range req.Columns {
		col, ok := cfg.Column(name)
		if !ok {
			continue
		}
		plan.Columns = append(plan.Columns, name)

		if !col.Virtual {
			physical[name] = true
			projection = append(projection, fmt.Sprintf("%s AS %s", cfg.qualify(name), name))
			continue
		}

		alias, done := joined[col.Lookup]
		if !done {
			alias = col.Lookup + "__" + cfg.Lookups[col.Lookup].Field
			joined[col.Lookup] = alias
			lookupKeys = append(lookupKeys, col.Lookup)
		}
		plan.virtual[name] = alias
	}

	sort.Strings(lookupKeys)
	for _, key := range lookupKeys {
		lookup := cfg.Lookups[key]
		tableAlias := "lk_" + key
		plan.Builder.LeftJoin(lookup.Table, tableAlias,
			fmt.Sprintf("%s.%s = %s", tableAlias, lookup.RefKey, cfg.qualify(lookup.ForeignKey)))
		projection = append(projection, fmt.Sprintf("%s.%s AS %s", tableAlias, lookup.Field, joined[key]))
	}

	plan.Builder.Select(projection...)
	plan.Builder.WhereConditions(Translate(req.Filters, cfg)...)

	if req.OrderBy != "" && physical[req.OrderBy] {
		plan.Builder.OrderBy(cfg.qualify(req.OrderBy), !req.Ascending)
	}

	plan.Builder.Limit(limit).Offset(offset)
	return plan
}

// Execute runs the report. In summary mode only the row count is fetched.
// Remote errors are wrapped with ErrRemoteExecution and returned unchanged otherwise.
func (e *Executor) Execute(ctx context.Context, req Request, cfg EntityConfig) (*Result, error) {
	start := time.Now()
	limit := ClampLimit(req.Limit)
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	if req.SummaryOnly {
		builder := db.NewBuilder(cfg.Table).WhereConditions(Translate(req.Filters, cfg)...)
		query, args, err := builder.BuildCount()
		if err != nil {
			return nil, err
		}
		total, err := e.querier.Count(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("%w: count %s: %w", ErrRemoteExecution, cfg.Key, err)
		}

		e.logger.Debug("report summary executed",
			slog.String("entity", string(cfg.Key)),
			slog.Int64("total", total),
			slog.Duration("took", time.Since(start)))

		return &Result{
			Rows:        []db.Row{},
			Columns:     append([]string(nil), req.Columns...),
			TotalCount:  &total,
			Limit:       limit,
			Offset:      offset,
			HasMore:     false,
			SummaryOnly: true,
		}, nil
	}

	plan := BuildPlan(req, cfg)

	countQuery, countArgs, err := plan.Builder.BuildCount()
	if err != nil {
		return nil, err
	}
	total, err := e.querier.Count(ctx, countQuery, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: count %s: %w", ErrRemoteExecution, cfg.Key, err)
	}

	query, args, err := plan.Builder.BuildSelect()
	if err != nil {
		return nil, err
	}
	raw, err := e.querier.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: select %s: %w", ErrRemoteExecution, cfg.Key, err)
	}

	rows := plan.reshape(raw)

	e.logger.Debug("report executed",
		slog.String("entity", string(cfg.Key)),
		slog.Int("rows", len(rows)),
		slog.Int64("total", total),
		slog.Duration("took", time.Since(start)))

	return &Result{
		Rows:       rows,
		Columns:    plan.Columns,
		TotalCount: &total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    offset+len(rows) < int(total),
	}, nil
}

// reshape flattens lookup values into their virtual columns and drops the raw aliases
func (p *QueryPlan) reshape(raw []db.Row) []db.Row {
	rows := make([]db.Row, 0, len(raw))
	for _, r := range raw {
		row := make(db.Row, len(p.Columns))
		for _, name := range p.Columns {
			if alias, ok := p.virtual[name]; ok {
				row[name] = r[alias]
				continue
			}
			row[name] = r[name]
		}
		rows = append(rows, row)
	}
	return rows
}
