package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ammar0144/reportq"
	"github.com/ammar0144/reportq/pkg/report"
)

// QueryFlags are the report-shaping flags shared by run and definitions save.
type QueryFlags struct {
	Columns     []string
	Equals      []string // column=value
	Where       []string // column:op=value, lists comma separated
	FiltersJSON string
	Limit       int
	Offset      int
	OrderBy     string
	Desc        bool
	Summary     bool
}

func (q *QueryFlags) register(cmd *cobra.Command, window bool) {
	cmd.Flags().StringSliceVar(&q.Columns, "columns", nil, "columns to show (default: entity defaults)")
	cmd.Flags().StringArrayVar(&q.Equals, "filter", nil, "equality filter column=value (repeatable)")
	cmd.Flags().StringArrayVar(&q.Where, "where", nil, "operator filter column:op=value, e.g. total:gte=500 or status:in=a,b (repeatable)")
	cmd.Flags().StringVar(&q.FiltersJSON, "filters", "", "filters as a JSON object")
	cmd.Flags().IntVar(&q.Limit, "limit", report.DefaultLimit, "maximum rows to return")
	if !window {
		return
	}
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "rows to skip")
	cmd.Flags().StringVar(&q.OrderBy, "order-by", "", "column to order by")
	cmd.Flags().BoolVar(&q.Desc, "desc", false, "order descending")
	cmd.Flags().BoolVar(&q.Summary, "summary", false, "return only the row count")
}

// Request builds a report request for entity. cfg types the flag values and is
// the zero value when the entity is unknown.
func (q *QueryFlags) Request(entity string, cfg report.EntityConfig) (report.Request, error) {
	raw, err := q.RawFilters(cfg)
	if err != nil {
		return report.Request{}, err
	}
	req := report.RequestFromInput(entity, q.Columns, raw, q.Limit)
	req.Offset = q.Offset
	req.OrderBy = q.OrderBy
	req.Ascending = !q.Desc
	req.SummaryOnly = q.Summary
	return req, nil
}

// RawFilters merges --filters, --filter and --where into the caller filter shape.
// Later flags override earlier ones for the same column.
func (q *QueryFlags) RawFilters(cfg report.EntityConfig) (map[string]interface{}, error) {
	raw := make(map[string]interface{})

	if q.FiltersJSON != "" {
		decoder := json.NewDecoder(strings.NewReader(q.FiltersJSON))
		decoder.UseNumber()
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid --filters: %w", err)
		}
	}

	for _, expr := range q.Equals {
		column, value, ok := strings.Cut(expr, "=")
		if !ok || column == "" {
			return nil, fmt.Errorf("invalid --filter %q: expected column=value", expr)
		}
		raw[column] = columnValue(cfg, column, value)
	}

	for _, expr := range q.Where {
		lhs, value, ok := strings.Cut(expr, "=")
		column, op, hasOp := strings.Cut(lhs, ":")
		if !ok || !hasOp || column == "" || op == "" {
			return nil, fmt.Errorf("invalid --where %q: expected column:op=value", expr)
		}
		v := columnValue(cfg, column, value)
		if report.Op(op) == report.OpIn || report.Op(op) == report.OpBetween {
			parts := strings.Split(value, ",")
			list := make([]interface{}, len(parts))
			for i, p := range parts {
				list[i] = columnValue(cfg, column, strings.TrimSpace(p))
			}
			v = list
		}
		raw[column] = map[string]interface{}{"op": op, "value": v}
	}

	return raw, nil
}

// entityConfig returns the catalog entry for entity, or the zero value so that
// the engine reports the unknown entity
func entityConfig(app *reportq.App, entity string) report.EntityConfig {
	cfg, err := app.Engine.GetEntityConfig(report.EntityKey(entity))
	if err != nil {
		return report.EntityConfig{}
	}
	return cfg
}

// columnValue keeps text and enum values as typed, so "001" stays a string
func columnValue(cfg report.EntityConfig, column, s string) interface{} {
	if col, ok := cfg.Column(column); ok && (col.Type == report.ColumnText || col.Type == report.ColumnEnum) {
		return s
	}
	return parseScalar(s)
}

// parseScalar types a flag value: integers, floats and booleans are recognized,
// everything else stays a string.
func parseScalar(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	return s
}
