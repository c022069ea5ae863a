package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteQuerier runs report queries against a local SQLite database.
// Used for single-node deployments and as the test backend.
type SQLiteQuerier struct {
	config *Config
	db     *sql.DB
}

// NewSQLiteQuerier opens the SQLite database at config.Path
func NewSQLiteQuerier(config *Config) (*SQLiteQuerier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := sql.Open(DriverSQLite, config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	return &SQLiteQuerier{config: config, db: db}, nil
}

// NewSQLiteQuerierFromDB wraps an already opened database
func NewSQLiteQuerierFromDB(db *sql.DB, config *Config) *SQLiteQuerier {
	if config == nil {
		config = &Config{Driver: DriverSQLite}
	}
	return &SQLiteQuerier{config: config, db: db}
}

// DB returns the underlying sql.DB
func (q *SQLiteQuerier) DB() *sql.DB {
	return q.db
}

// Query implements Querier
func (q *SQLiteQuerier) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	ctx, cancel := q.config.withQueryTimeout(ctx)
	defer cancel()

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Count implements Querier
func (q *SQLiteQuerier) Count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	ctx, cancel := q.config.withQueryTimeout(ctx)
	defer cancel()

	var count int64
	if err := q.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return count, nil
}

// Ping implements Querier
func (q *SQLiteQuerier) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close implements Querier
func (q *SQLiteQuerier) Close() error {
	if q.db == nil {
		return nil
	}
	return q.db.Close()
}
