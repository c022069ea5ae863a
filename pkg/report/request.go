package report

import (
	"encoding/json"
	"fmt"

	"github.com/ammar0144/reportq/pkg/db"
)

const (
	// MaxLimit caps the number of rows a single report may return
	MaxLimit = 5000

	// DefaultLimit is used by the CLI and HTTP surfaces when no limit is given
	DefaultLimit = 100
)

// Request is the unit of work for a report run
type Request struct {
	Entity      EntityKey `json:"entity"`
	Columns     []string  `json:"columns,omitempty"`
	Filters     Filters   `json:"filters,omitempty"`
	Limit       int       `json:"limit"`
	Offset      int       `json:"offset,omitempty"`
	OrderBy     string    `json:"order_by,omitempty"`
	Ascending   bool      `json:"ascending"`
	SummaryOnly bool      `json:"summary_only,omitempty"`
}

// Result is the normalized output of a report run.
// Results may be shared between callers and must be treated as read-only.
type Result struct {
	Rows        []db.Row `json:"rows" msgpack:"rows"`
	Columns     []string `json:"columns" msgpack:"columns"`
	TotalCount  *int64   `json:"total_count" msgpack:"total_count"`
	Limit       int      `json:"limit" msgpack:"limit"`
	Offset      int      `json:"offset" msgpack:"offset"`
	HasMore     bool     `json:"has_more" msgpack:"has_more"`
	SummaryOnly bool     `json:"summary_only,omitempty" msgpack:"summary_only"`
}

// normalizeRows restores driver-normal values after a shared tier decode:
// times come back in UTC and a decoded empty row set stays empty rather than nil
func (r *Result) normalizeRows() {
	if r.Rows == nil {
		r.Rows = []db.Row{}
	}
	for _, row := range r.Rows {
		for column, v := range row {
			row[column] = db.NormalizeValue(v)
		}
	}
}

// ClampLimit bounds limit to [1, MaxLimit]
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Normalize resolves the request against the entity configuration:
// unknown and duplicate columns are removed, an empty selection falls back to the
// entity defaults, the limit is clamped and a negative offset becomes zero.
func (r Request) Normalize(cfg EntityConfig) Request {
	out := r
	out.Entity = cfg.Key

	seen := make(map[string]bool, len(r.Columns))
	columns := make([]string, 0, len(r.Columns))
	for _, name := range r.Columns {
		if seen[name] {
			continue
		}
		if _, ok := cfg.Column(name); !ok {
			continue
		}
		seen[name] = true
		columns = append(columns, name)
	}
	if len(columns) == 0 {
		columns = append(columns, cfg.DefaultColumns...)
	}
	out.Columns = columns

	if r.Filters == nil {
		out.Filters = Filters{}
	}

	out.Limit = ClampLimit(r.Limit)
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}

// cacheKey serializes every field that affects the result.
// Filters are encoded sorted by column, so map insertion order never matters.
func (r Request) cacheKey() (string, error) {
	key := struct {
		Entity      EntityKey       `json:"e"`
		Columns     []string        `json:"c"`
		Filters     [][]interface{} `json:"f"`
		Limit       int             `json:"l"`
		Offset      int             `json:"o"`
		OrderBy     string          `json:"ob"`
		Ascending   bool            `json:"asc"`
		SummaryOnly bool            `json:"s"`
	}{
		Entity:      r.Entity,
		Columns:     r.Columns,
		Filters:     r.Filters.canonical(),
		Limit:       r.Limit,
		Offset:      r.Offset,
		OrderBy:     r.OrderBy,
		Ascending:   r.Ascending,
		SummaryOnly: r.SummaryOnly,
	}

	data, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("failed to build cache key: %w", err)
	}
	return string(data), nil
}
