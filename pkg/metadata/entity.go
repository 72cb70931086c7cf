// Package metadata describes how entity structs map onto tables and
// columns, and converts entities to and from column-keyed records.
//
// Entities are described either with struct tags on a type implementing
// Entity:
//
//	type User struct {
//		ID    int64  `repo:"id"`
//		Email string `repo:"name=email_address,unique,length=320"`
//		Temp  string `repo:"-"`
//	}
//
//	func (User) TableName() string { return "users" }
//
// or with a Descriptor registered on the Extractor:
//
//	extractor.Register(metadata.Define[Product]("products").
//		ID("ID").
//		Column("Price", metadata.Precision(12), metadata.Scale(2)))
package metadata

import (
	"reflect"
	"strings"
)

// Entity marks a struct as persistable. An empty TableName falls back
// to the naming strategy.
type Entity interface {
	TableName() string
}

var entityType = reflect.TypeOf((*Entity)(nil)).Elem()

// ColumnProperty describes one persisted attribute. Length, Precision and
// Scale are nil when unset.
type ColumnProperty struct {
	Name         string
	Attribute    string
	Type         reflect.Type
	Nullable     bool
	Unique       bool
	DefaultValue any
	Length       *int
	Precision    *int
	Scale        *int
	Identifier   bool

	index []int
}

// EntityMetadata is the table mapping of one entity type. It is built
// once by an Extractor and never modified afterwards.
type EntityMetadata struct {
	EntityType reflect.Type
	TableName  string
	Columns    []ColumnProperty

	idIndex int
	byName  map[string]int
	byAttr  map[string]int
}

func newEntityMetadata(t reflect.Type, table string, columns []ColumnProperty) *EntityMetadata {
	m := &EntityMetadata{
		EntityType: t,
		TableName:  table,
		Columns:    columns,
		idIndex:    -1,
		byName:     make(map[string]int, len(columns)),
		byAttr:     make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		m.byName[c.Name] = i
		m.byAttr[strings.ToLower(c.Attribute)] = i
		if c.Identifier {
			m.idIndex = i
		}
	}
	return m
}

// Column resolves a field reference from a parsed method name. The
// attribute name is matched case-insensitively first, then the exact
// column name.
func (m *EntityMetadata) Column(field string) (ColumnProperty, bool) {
	if i, ok := m.byAttr[strings.ToLower(field)]; ok {
		return m.Columns[i], true
	}
	if i, ok := m.byName[field]; ok {
		return m.Columns[i], true
	}
	return ColumnProperty{}, false
}

// ID returns the identifier column, if the entity declares one.
func (m *EntityMetadata) ID() (ColumnProperty, bool) {
	if m.idIndex < 0 {
		return ColumnProperty{}, false
	}
	return m.Columns[m.idIndex], true
}

// ColumnNames lists column names in declaration order.
func (m *EntityMetadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// IDValue reads the identifier of entity, which may be a struct or a
// pointer to one. A zero identifier counts as unresolvable.
func (m *EntityMetadata) IDValue(entity any) (any, error) {
	col, ok := m.ID()
	if !ok {
		return nil, &IdentifierError{Type: m.EntityType, Reason: "no identifier attribute declared"}
	}
	v, err := m.structValue(entity)
	if err != nil {
		return nil, &IdentifierError{Type: m.EntityType, Reason: err.Error()}
	}
	fv := v.FieldByIndex(col.index)
	if fv.IsZero() {
		return nil, &IdentifierError{Type: m.EntityType, Reason: "identifier " + col.Attribute + " is not set"}
	}
	if fv.Kind() == reflect.Pointer {
		fv = fv.Elem()
	}
	return fv.Interface(), nil
}

// New allocates a zero entity and returns a pointer to it.
func (m *EntityMetadata) New() reflect.Value {
	return reflect.New(m.EntityType)
}

func (m *EntityMetadata) structValue(entity any) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	if !v.IsValid() {
		return reflect.Value{}, errNilEntity
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, errNilEntity
		}
		v = v.Elem()
	}
	if v.Type() != m.EntityType {
		return reflect.Value{}, &MetadataError{Type: v.Type(), Reason: "expected entity of type " + m.EntityType.String()}
	}
	return v, nil
}
