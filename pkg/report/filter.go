package report

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/ammar0144/reportq/pkg/db"
)

// Op is an advanced filter operator
type Op string

const (
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpNeq      Op = "neq"
	OpContains Op = "contains"
	OpIn       Op = "in"
	OpBetween  Op = "between"
)

// Known reports whether op is part of the fixed operator set.
// Unknown operators are translated as equality.
func (op Op) Known() bool {
	switch op {
	case OpGt, OpGte, OpLt, OpLte, OpNeq, OpContains, OpIn, OpBetween:
		return true
	}
	return false
}

var comparisonOperators = map[Op]db.Operator{
	OpGt:  db.GreaterThan,
	OpGte: db.GreaterThanOrEqual,
	OpLt:  db.LessThan,
	OpLte: db.LessThanOrEqual,
	OpNeq: db.NotEqual,
}

// FilterKind tags the variant held by a Filter
type FilterKind uint8

const (
	KindEquals FilterKind = iota + 1
	KindRange
	KindOperator
)

// Filter is a tagged union: Equals(value) | Range(from, to) | Operator(op, value).
// Build one with Equals, Range or Operator, or decode raw input with DecodeFilters.
type Filter struct {
	Kind  FilterKind
	Op    Op
	Value interface{}
	From  interface{}
	To    interface{}
}

// Equals builds an equality filter
func Equals(value interface{}) Filter {
	return Filter{Kind: KindEquals, Value: normalizeScalar(value)}
}

// Range builds an inclusive range filter; either bound may be nil
func Range(from, to interface{}) Filter {
	return Filter{Kind: KindRange, From: normalizeScalar(from), To: normalizeScalar(to)}
}

// Operator builds a tagged operator filter
func Operator(op Op, value interface{}) Filter {
	return Filter{Kind: KindOperator, Op: op, Value: normalizeValue(value)}
}

// Filters maps column names to filters. All filters are combined with AND.
type Filters map[string]Filter

// DecodeFilters converts caller input into Filters.
// Entries that carry no constraint or have an unrecognized shape are dropped.
func DecodeFilters(raw map[string]interface{}) Filters {
	out := make(Filters, len(raw))
	for column, value := range raw {
		if f, ok := DecodeFilter(value); ok {
			out[column] = f
		}
	}
	return out
}

// DecodeFilter decodes a single raw filter value:
// empty values are dropped, {op, value|val} is an operator, {from, to} is a range,
// any other object or list is dropped and a scalar means equality.
func DecodeFilter(value interface{}) (Filter, bool) {
	if isEmpty(value) {
		return Filter{}, false
	}

	switch v := value.(type) {
	case Filter:
		return v, v.Kind != 0
	case map[string]interface{}:
		if op, ok := v["op"]; ok {
			opStr, isStr := op.(string)
			if !isStr || opStr == "" {
				return Filter{}, false
			}
			val, has := v["value"]
			if !has {
				val = v["val"]
			}
			return Operator(Op(opStr), val), true
		}

		from, to := v["from"], v["to"]
		if isEmpty(from) && isEmpty(to) {
			return Filter{}, false
		}
		if isEmpty(from) {
			from = nil
		}
		if isEmpty(to) {
			to = nil
		}
		return Range(from, to), true
	}

	if isCollection(value) {
		return Filter{}, false
	}
	return Equals(value), true
}

// MarshalJSON encodes a filter back into its raw caller shape
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.raw())
}

// UnmarshalJSON decodes a raw caller shape; unusable shapes decode to the zero Filter
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, _ := DecodeFilter(raw)
	*f = decoded
	return nil
}

// UnmarshalJSON decodes a raw filter object, dropping entries that carry no constraint
func (fs *Filters) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*fs = DecodeFilters(raw)
	return nil
}

// Raw converts the filters back into the caller input shape
func (fs Filters) Raw() map[string]interface{} {
	out := make(map[string]interface{}, len(fs))
	for column, f := range fs {
		out[column] = f.raw()
	}
	return out
}

func (f Filter) raw() interface{} {
	switch f.Kind {
	case KindEquals:
		return f.Value
	case KindRange:
		m := map[string]interface{}{}
		if f.From != nil {
			m["from"] = f.From
		}
		if f.To != nil {
			m["to"] = f.To
		}
		return m
	case KindOperator:
		return map[string]interface{}{"op": string(f.Op), "value": f.Value}
	}
	return nil
}

// canonical returns a deterministic, tag-first encoding used in cache keys
func (fs Filters) canonical() [][]interface{} {
	columns := make([]string, 0, len(fs))
	for column := range fs {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	out := make([][]interface{}, 0, len(columns))
	for _, column := range columns {
		f := fs[column]
		switch f.Kind {
		case KindEquals:
			out = append(out, []interface{}{column, "eq", f.Value})
		case KindRange:
			out = append(out, []interface{}{column, "range", f.From, f.To})
		case KindOperator:
			out = append(out, []interface{}{column, "op", string(f.Op), f.Value})
		}
	}
	return out
}

// Translate turns filters into WHERE conditions against the entity's table.
//
// Equality applies only to filterable columns. Range and operator filters apply to
// any physical column of the entity. Filters on unknown or virtual columns are
// dropped, as are malformed operator values. Conditions are ordered by column name.
func Translate(filters Filters, cfg EntityConfig) []db.Condition {
	columns := make([]string, 0, len(filters))
	for column := range filters {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	var conds []db.Condition
	for _, name := range columns {
		col, ok := cfg.Column(name)
		if !ok || col.Virtual {
			continue
		}
		field := cfg.qualify(name)
		f := filters[name]

		switch f.Kind {
		case KindEquals:
			if col.Filterable && !isEmpty(f.Value) {
				conds = append(conds, db.Condition{Field: field, Operator: db.Equal, Value: f.Value})
			}
		case KindRange:
			if !isEmpty(f.From) {
				conds = append(conds, db.Condition{Field: field, Operator: db.GreaterThanOrEqual, Value: f.From})
			}
			if !isEmpty(f.To) {
				conds = append(conds, db.Condition{Field: field, Operator: db.LessThanOrEqual, Value: f.To})
			}
		case KindOperator:
			if cond, ok := translateOperator(field, f); ok {
				conds = append(conds, cond)
			}
		}
	}
	return conds
}

func translateOperator(field string, f Filter) (db.Condition, bool) {
	switch f.Op {
	case OpIn:
		values, ok := toSlice(f.Value)
		if !ok {
			return db.Condition{}, false
		}
		return db.Condition{Field: field, Operator: db.In, Value: values}, true
	case OpBetween:
		values, ok := toSlice(f.Value)
		if !ok || len(values) != 2 || isEmpty(values[0]) || isEmpty(values[1]) {
			return db.Condition{}, false
		}
		return db.Condition{Field: field, Operator: db.Between, Value: values}, true
	}

	if isEmpty(f.Value) || isCollection(f.Value) {
		return db.Condition{}, false
	}

	if f.Op == OpContains {
		return db.Condition{Field: field, Operator: db.Contains, Value: fmt.Sprint(f.Value)}, true
	}
	if op, ok := comparisonOperators[f.Op]; ok {
		return db.Condition{Field: field, Operator: op, Value: f.Value}, true
	}
	return db.Condition{Field: field, Operator: db.Equal, Value: f.Value}, true
}

// isEmpty reports whether a raw value carries no constraint
func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]interface{}:
		return len(val) == 0
	}
	return false
}

func isCollection(v interface{}) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		_, isBytes := v.([]byte)
		return !isBytes
	}
	return false
}

func toSlice(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.([]interface{}); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = normalizeScalar(rv.Index(i).Interface())
	}
	return out, true
}

// normalizeValue normalizes a scalar or each element of a list
func normalizeValue(v interface{}) interface{} {
	if s, ok := v.([]interface{}); ok {
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = normalizeScalar(item)
		}
		return out
	}
	return normalizeScalar(v)
}

// normalizeScalar collapses JSON numbers so 500, 500.0 and "500" as json.Number
// produce the same query argument and cache key.
func normalizeScalar(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return val
	case float32:
		return normalizeScalar(float64(val))
	case int:
		return int64(val)
	case int32:
		return int64(val)
	}
	return v
}
