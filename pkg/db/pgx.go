package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxQuerier runs report queries against PostgreSQL through a pgx pool
type PgxQuerier struct {
	config *Config
	pool   *pgxpool.Pool
}

// NewPgxQuerier creates a pgx connection pool and verifies it with a ping
func NewPgxQuerier(ctx context.Context, config *Config) (*PgxQuerier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(config.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(config.MaxOpenConns)
	poolConfig.MinConns = int32(config.MaxIdleConns)
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PgxQuerier{config: config, pool: pool}, nil
}

// Query implements Querier
func (q *PgxQuerier) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	ctx, cancel := q.config.withQueryTimeout(ctx)
	defer cancel()

	query, err := dollar(query)
	if err != nil {
		return nil, err
	}

	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := make([]Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = normalizePgValue(values[i])
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

// Count implements Querier
func (q *PgxQuerier) Count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	ctx, cancel := q.config.withQueryTimeout(ctx)
	defer cancel()

	query, err := dollar(query)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := q.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return count, nil
}

// Ping implements Querier
func (q *PgxQuerier) Ping(ctx context.Context) error {
	return q.pool.Ping(ctx)
}

// Close implements Querier
func (q *PgxQuerier) Close() error {
	if q.pool != nil {
		q.pool.Close()
	}
	return nil
}

// dollar rewrites the builder's ? placeholders to PostgreSQL's $n form
func dollar(query string) (string, error) {
	return squirrel.Dollar.ReplacePlaceholders(query)
}

// normalizePgValue converts pgx's decoded values into plain JSON and msgpack
// friendly types so a row reads the same whichever cache tier returns it.
// Numerics become float64 (their text form when not finite), UUIDs become strings
// and the remaining pgtype values fall back to their driver representation.
func normalizePgValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, time.Time, []byte:
		return NormalizeValue(val)
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN || val.InfinityModifier != pgtype.Finite {
			return valuerText(val)
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return valuerText(val)
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	case driver.Valuer:
		dv, err := val.Value()
		if err != nil {
			return fmt.Sprint(val)
		}
		return NormalizeValue(dv)
	case fmt.Stringer:
		return val.String()
	default:
		return val
	}
}

func valuerText(v driver.Valuer) interface{} {
	dv, err := v.Value()
	if err != nil {
		return nil
	}
	return NormalizeValue(dv)
}
