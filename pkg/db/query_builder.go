package db

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Masterminds/squirrel"
)

// Read-only SQL Query Builder
// This package builds the SELECT and COUNT statements issued by the report engine.
//
// SECURITY WARNING:
// This builder does NOT escape or validate table names, column names, or other SQL identifiers.
// Identifiers MUST come from the entity registry, never from caller input.
// Caller input is ONLY passed through Condition.Value, which is always parameterized.
//
// Example - SAFE:
//   db.NewBuilder("orders").Select("orders.id AS id").Where("orders.status", Equal, status)
//
// Example - UNSAFE (DO NOT DO THIS):
//   db.NewBuilder(userInput).Select(userProvidedColumn)  // SQL INJECTION RISK!

// Operator represents SQL comparison operators
type Operator string

const (
	Equal              Operator = "="
	NotEqual           Operator = "!="
	GreaterThan        Operator = ">"
	GreaterThanOrEqual Operator = ">="
	LessThan           Operator = "<"
	LessThanOrEqual    Operator = "<="
	Contains           Operator = "CONTAINS" // case-insensitive substring match
	In                 Operator = "IN"
	Between            Operator = "BETWEEN"
)

// likeEscape is the escape character used for Contains patterns.
// A backslash is avoided because MySQL treats it as a string escape.
const likeEscape = "!"

// statements renders ? placeholders; PgxQuerier converts them to $n
var statements = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// matchNothing stands in for conditions that can never hold
var matchNothing = squirrel.Expr("1 = 0")

// Condition represents a WHERE clause condition
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// JoinClause represents a LEFT JOIN against a lookup table
type JoinClause struct {
	Table     string
	Alias     string
	Condition string
}

// OrderClause represents a single ORDER BY term
type OrderClause struct {
	Field string
	Desc  bool
}

// Builder helps build report queries
type Builder struct {
	table      string
	selectCols []string
	joins      []JoinClause
	where      []Condition
	orderBy    []OrderClause
	limit      int
	offset     int
}

// NewBuilder creates a new query builder
// SECURITY: The table parameter must be a validated, trusted identifier.
func NewBuilder(table string) *Builder {
	return &Builder{
		table:      table,
		selectCols: []string{"*"},
	}
}

// Table returns the base table of the query
func (b *Builder) Table() string {
	return b.table
}

// Select sets the columns to select
// SECURITY: Column expressions are NOT escaped. Only pass registry identifiers.
func (b *Builder) Select(cols ...string) *Builder {
	if len(cols) == 0 {
		b.selectCols = []string{"*"}
		return b
	}
	b.selectCols = cols
	return b
}

// Where adds a WHERE condition. All conditions are combined with AND.
// SECURITY: Field name is NOT escaped - must be a validated identifier.
func (b *Builder) Where(field string, operator Operator, value interface{}) *Builder {
	b.where = append(b.where, Condition{
		Field:    field,
		Operator: operator,
		Value:    value,
	})
	return b
}

// WhereConditions adds several conditions at once
func (b *Builder) WhereConditions(conds ...Condition) *Builder {
	b.where = append(b.where, conds...)
	return b
}

// LeftJoin adds a LEFT JOIN of table under alias
func (b *Builder) LeftJoin(table, alias, condition string) *Builder {
	b.joins = append(b.joins, JoinClause{
		Table:     table,
		Alias:     alias,
		Condition: condition,
	})
	return b
}

// OrderBy adds an ORDER BY clause
func (b *Builder) OrderBy(field string, desc bool) *Builder {
	b.orderBy = append(b.orderBy, OrderClause{Field: field, Desc: desc})
	return b
}

// Limit sets the LIMIT clause
// Negative values are normalized to 0
func (b *Builder) Limit(limit int) *Builder {
	if limit < 0 {
		limit = 0
	}
	b.limit = limit
	return b
}

// Offset sets the OFFSET clause
// Negative values are normalized to 0
func (b *Builder) Offset(offset int) *Builder {
	if offset < 0 {
		offset = 0
	}
	b.offset = offset
	return b
}

// Joins returns the join clauses added so far
func (b *Builder) Joins() []JoinClause {
	return b.joins
}

// BuildSelect builds a SELECT query with ? placeholders
func (b *Builder) BuildSelect() (string, []interface{}, error) {
	query := statements.Select(b.selectCols...).From(b.table)

	for _, join := range b.joins {
		target := join.Table
		if join.Alias != "" && join.Alias != join.Table {
			target += " AS " + join.Alias
		}
		query = query.LeftJoin(target + " ON " + join.Condition)
	}

	for _, cond := range b.where {
		query = query.Where(b.predicate(cond))
	}

	for _, o := range b.orderBy {
		if o.Desc {
			query = query.OrderBy(o.Field + " DESC")
		} else {
			query = query.OrderBy(o.Field + " ASC")
		}
	}

	// OFFSET without LIMIT is not portable, so it is only emitted alongside one
	if b.limit > 0 {
		query = query.Limit(uint64(b.limit))
		if b.offset > 0 {
			query = query.Offset(uint64(b.offset))
		}
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build select for %s: %w", b.table, err)
	}
	return sql, args, nil
}

// BuildCount builds a row-count query with the same WHERE conditions.
// Projection, joins, ordering and windowing are ignored.
func (b *Builder) BuildCount() (string, []interface{}, error) {
	query := statements.Select("COUNT(*)").From(b.table)
	for _, cond := range b.where {
		query = query.Where(b.predicate(cond))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build count for %s: %w", b.table, err)
	}
	return sql, args, nil
}

// predicate renders a single condition
func (b *Builder) predicate(cond Condition) squirrel.Sqlizer {
	switch cond.Operator {
	case Equal:
		return squirrel.Eq{cond.Field: cond.Value}
	case NotEqual:
		return squirrel.NotEq{cond.Field: cond.Value}
	case GreaterThan:
		return squirrel.Gt{cond.Field: cond.Value}
	case GreaterThanOrEqual:
		return squirrel.GtOrEq{cond.Field: cond.Value}
	case LessThan:
		return squirrel.Lt{cond.Field: cond.Value}
	case LessThanOrEqual:
		return squirrel.LtOrEq{cond.Field: cond.Value}
	case In:
		return b.inPredicate(cond)
	case Between:
		return b.betweenPredicate(cond)
	case Contains:
		pattern := "%" + EscapeLike(fmt.Sprintf("%v", cond.Value)) + "%"
		return squirrel.Expr(fmt.Sprintf("LOWER(%s) LIKE LOWER(?) ESCAPE '%s'", cond.Field, likeEscape), pattern)
	default:
		return matchNothing
	}
}

// inPredicate expands list values; an empty or nil list matches nothing
func (b *Builder) inPredicate(cond Condition) squirrel.Sqlizer {
	if cond.Value == nil {
		return matchNothing
	}

	v := reflect.ValueOf(cond.Value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return squirrel.Eq{cond.Field: cond.Value}
	}
	if v.Len() == 0 {
		return matchNothing
	}

	values := make([]interface{}, v.Len())
	for i := range values {
		values[i] = v.Index(i).Interface()
	}
	return squirrel.Eq{cond.Field: values}
}

// betweenPredicate builds a closed range; anything but a pair matches nothing
func (b *Builder) betweenPredicate(cond Condition) squirrel.Sqlizer {
	if cond.Value == nil {
		return matchNothing
	}

	v := reflect.ValueOf(cond.Value)
	if (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) || v.Len() != 2 {
		return matchNothing
	}
	return squirrel.Expr(cond.Field+" BETWEEN ? AND ?", v.Index(0).Interface(), v.Index(1).Interface())
}

// EscapeLike escapes LIKE wildcards so the value matches literally
func EscapeLike(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return r.Replace(s)
}
