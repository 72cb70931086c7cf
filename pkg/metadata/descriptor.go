package metadata

import "reflect"

// ColumnOption adjusts a column declaration.
type ColumnOption func(*ColumnProperty)

// Name overrides the derived column name.
func Name(name string) ColumnOption {
	return func(c *ColumnProperty) { c.Name = name }
}

// Nullable marks the column as accepting NULL.
func Nullable() ColumnOption {
	return func(c *ColumnProperty) { c.Nullable = true }
}

// Unique adds a uniqueness constraint.
func Unique() ColumnOption {
	return func(c *ColumnProperty) { c.Unique = true }
}

// Default sets the value used when the attribute is left empty on insert.
func Default(v any) ColumnOption {
	return func(c *ColumnProperty) { c.DefaultValue = v }
}

// Length sets the maximum length of a character column. n <= 0 unsets it.
func Length(n int) ColumnOption {
	return func(c *ColumnProperty) { c.Length = positive(n) }
}

// Precision sets the total digits of a numeric column. n <= 0 unsets it.
func Precision(n int) ColumnOption {
	return func(c *ColumnProperty) { c.Precision = positive(n) }
}

// Scale sets the fractional digits of a numeric column. n <= 0 unsets it.
func Scale(n int) ColumnOption {
	return func(c *ColumnProperty) { c.Scale = positive(n) }
}

func positive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// Descriptor declares an entity mapping in code instead of struct tags.
// Attributes that are not mentioned are persisted with default settings.
type Descriptor struct {
	typ       reflect.Type
	table     string
	columns   map[string][]ColumnOption
	ids       []string
	transient map[string]struct{}
	order     []string
}

// Define starts a descriptor for T. An empty table uses the naming strategy.
func Define[T any](table string) *Descriptor {
	return &Descriptor{
		typ:       reflect.TypeOf((*T)(nil)).Elem(),
		table:     table,
		columns:   make(map[string][]ColumnOption),
		transient: make(map[string]struct{}),
	}
}

// Type is the entity type being described.
func (d *Descriptor) Type() reflect.Type {
	return d.typ
}

// ID marks attribute as the identifier.
func (d *Descriptor) ID(attribute string, opts ...ColumnOption) *Descriptor {
	d.ids = append(d.ids, attribute)
	return d.Column(attribute, opts...)
}

// Column declares options for attribute.
func (d *Descriptor) Column(attribute string, opts ...ColumnOption) *Descriptor {
	if _, seen := d.columns[attribute]; !seen {
		d.order = append(d.order, attribute)
	}
	d.columns[attribute] = append(d.columns[attribute], opts...)
	return d
}

// Transient excludes attributes from persistence.
func (d *Descriptor) Transient(attributes ...string) *Descriptor {
	for _, a := range attributes {
		d.transient[a] = struct{}{}
	}
	return d
}
