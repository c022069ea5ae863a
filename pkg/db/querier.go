package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Open connects to the remote store selected by config.Driver
func Open(ctx context.Context, config *Config) (Querier, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch config.normalizedDriver() {
	case DriverMySQL:
		return NewManager(config)
	case DriverPostgres:
		return NewPgxQuerier(ctx, config)
	case DriverSQLite:
		return NewSQLiteQuerier(config)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}
}

// scanRows reads every row into a map keyed by column name.
// Driver byte slices are converted to strings so rows encode cleanly.
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = NormalizeValue(values[i])
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

// NormalizeValue converts driver byte slices to strings and times to UTC.
// Rows decoded from the shared cache tier go through it as well.
func NormalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC()
	default:
		return val
	}
}
