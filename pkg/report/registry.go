package report

import (
	"fmt"
)

// EntityKey identifies a reportable entity
type EntityKey string

// ColumnType describes how a column's values should be presented and compared
type ColumnType string

const (
	ColumnText   ColumnType = "text"
	ColumnNumber ColumnType = "number"
	ColumnMoney  ColumnType = "money"
	ColumnDate   ColumnType = "date"
	ColumnBool   ColumnType = "boolean"
	ColumnEnum   ColumnType = "enum"
)

// Column describes one exposable column of an entity
type Column struct {
	Name       string     `json:"name" yaml:"name"`
	Label      string     `json:"label" yaml:"label"`
	Type       ColumnType `json:"type" yaml:"type"`
	Filterable bool       `json:"filterable" yaml:"filterable"`

	// AdvancedOperators lists the operators a builder UI may offer for this column
	AdvancedOperators []Op `json:"advanced_operators,omitempty" yaml:"advanced_operators,omitempty"`

	// Virtual columns are not stored on the entity; Lookup names the relation
	// in EntityConfig.Lookups that supplies the value.
	Virtual bool   `json:"virtual,omitempty" yaml:"virtual,omitempty"`
	Lookup  string `json:"lookup,omitempty" yaml:"lookup,omitempty"`
}

// Lookup describes a single-level join to a related table
type Lookup struct {
	Table      string `json:"table" yaml:"table"`
	ForeignKey string `json:"foreign_key" yaml:"foreign_key"` // column on the entity's table
	RefKey     string `json:"ref_key" yaml:"ref_key"`         // column on the related table, default "id"
	Field      string `json:"field" yaml:"field"`             // related column copied into virtual columns
}

// EntityConfig is the immutable description of one reportable entity
type EntityConfig struct {
	Key            EntityKey         `json:"key" yaml:"key"`
	Label          string            `json:"label" yaml:"label"`
	Table          string            `json:"table" yaml:"table"`
	Columns        []Column          `json:"columns" yaml:"columns"`
	DefaultColumns []string          `json:"default_columns" yaml:"default_columns"`
	Lookups        map[string]Lookup `json:"lookups,omitempty" yaml:"lookups,omitempty"`
}

// Column returns the named column
func (c EntityConfig) Column(name string) (Column, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// FilterableColumns returns the names of the equality-filterable columns
func (c EntityConfig) FilterableColumns() []string {
	var names []string
	for _, col := range c.Columns {
		if col.Filterable {
			names = append(names, col.Name)
		}
	}
	return names
}

// qualify prefixes a physical column with the entity's table
func (c EntityConfig) qualify(column string) string {
	return c.Table + "." + column
}

// validate checks the invariants every entity must satisfy
func (c EntityConfig) validate() error {
	if c.Key == "" {
		return fmt.Errorf("%w: entity key is required", ErrInvalidRegistry)
	}
	if c.Table == "" {
		return fmt.Errorf("%w: entity %s has no table", ErrInvalidRegistry, c.Key)
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("%w: entity %s has no columns", ErrInvalidRegistry, c.Key)
	}

	seen := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		if col.Name == "" {
			return fmt.Errorf("%w: entity %s has an unnamed column", ErrInvalidRegistry, c.Key)
		}
		if seen[col.Name] {
			return fmt.Errorf("%w: entity %s declares column %s twice", ErrInvalidRegistry, c.Key, col.Name)
		}
		seen[col.Name] = true

		if !col.Virtual {
			continue
		}
		if col.Filterable {
			return fmt.Errorf("%w: virtual column %s.%s cannot be filterable", ErrInvalidRegistry, c.Key, col.Name)
		}
		lookup, ok := c.Lookups[col.Lookup]
		if !ok {
			return fmt.Errorf("%w: virtual column %s.%s references unknown lookup %q", ErrInvalidRegistry, c.Key, col.Name, col.Lookup)
		}
		if lookup.Table == "" || lookup.ForeignKey == "" || lookup.Field == "" {
			return fmt.Errorf("%w: lookup %s.%s is incomplete", ErrInvalidRegistry, c.Key, col.Lookup)
		}
	}

	if len(c.DefaultColumns) == 0 {
		return fmt.Errorf("%w: entity %s has no default columns", ErrInvalidRegistry, c.Key)
	}
	for _, name := range c.DefaultColumns {
		if !seen[name] {
			return fmt.Errorf("%w: default column %s.%s is not declared", ErrInvalidRegistry, c.Key, name)
		}
	}

	return nil
}

// Registry is the static catalog of reportable entities.
// It is built once and never mutated.
type Registry struct {
	order    []EntityKey
	entities map[EntityKey]EntityConfig
}

// NewRegistry validates the entity declarations and builds a registry
func NewRegistry(entities ...EntityConfig) (*Registry, error) {
	r := &Registry{
		order:    make([]EntityKey, 0, len(entities)),
		entities: make(map[EntityKey]EntityConfig, len(entities)),
	}

	for _, e := range entities {
		if err := e.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.entities[e.Key]; dup {
			return nil, fmt.Errorf("%w: entity %s declared twice", ErrInvalidRegistry, e.Key)
		}

		// Fill lookup defaults on a private copy
		lookups := make(map[string]Lookup, len(e.Lookups))
		for k, l := range e.Lookups {
			if l.RefKey == "" {
				l.RefKey = "id"
			}
			lookups[k] = l
		}
		e.Lookups = lookups

		r.order = append(r.order, e.Key)
		r.entities[e.Key] = e
	}

	return r, nil
}

// ListEntities returns every entity in declaration order
func (r *Registry) ListEntities() []EntityConfig {
	out := make([]EntityConfig, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.entities[key])
	}
	return out
}

// EntityConfig returns the configuration for key
func (r *Registry) EntityConfig(key EntityKey) (EntityConfig, bool) {
	cfg, ok := r.entities[key]
	return cfg, ok
}

// Lookup returns the configuration for key or ErrDisallowedEntity
func (r *Registry) Lookup(key EntityKey) (EntityConfig, error) {
	cfg, ok := r.entities[key]
	if !ok {
		return EntityConfig{}, fmt.Errorf("%w: %q", ErrDisallowedEntity, key)
	}
	return cfg, nil
}
