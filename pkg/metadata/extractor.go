package metadata

import (
	"fmt"
	"reflect"
	"sync"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// Extractor builds EntityMetadata and caches it per type for its own
// lifetime.
type Extractor struct {
	naming NamingStrategy

	mu          sync.RWMutex
	cache       map[reflect.Type]*EntityMetadata
	descriptors map[reflect.Type]*Descriptor
}

// NewExtractor creates an extractor. A nil strategy means DefaultNaming.
func NewExtractor(naming NamingStrategy) *Extractor {
	if naming == nil {
		naming = DefaultNaming{}
	}
	return &Extractor{
		naming:      naming,
		cache:       make(map[reflect.Type]*EntityMetadata),
		descriptors: make(map[reflect.Type]*Descriptor),
	}
}

// Register installs a code-declared descriptor. It replaces struct tags
// for its type and must happen before the type is first extracted.
func (e *Extractor) Register(d *Descriptor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.descriptors[d.typ] = d
	delete(e.cache, d.typ)
}

// ExtractFor is Extract for a static type.
func ExtractFor[T any](e *Extractor) (*EntityMetadata, error) {
	return e.Extract(reflect.TypeOf((*T)(nil)).Elem())
}

// Extract returns the mapping of t, building it on first use.
func (e *Extractor) Extract(t reflect.Type) (*EntityMetadata, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, &MetadataError{Type: t, Reason: "entity must be a struct"}
	}

	e.mu.RLock()
	meta, ok := e.cache[t]
	desc := e.descriptors[t]
	e.mu.RUnlock()
	if ok {
		return meta, nil
	}

	meta, err := e.build(t, desc)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.cache[t]; ok {
		return cached, nil
	}
	e.cache[t] = meta
	return meta, nil
}

func (e *Extractor) build(t reflect.Type, desc *Descriptor) (*EntityMetadata, error) {
	marker, isEntity := entityMarker(t)
	if desc == nil && !isEntity {
		return nil, &MetadataError{Type: t, Reason: "type is not an entity: implement metadata.Entity or register a Descriptor"}
	}

	table := ""
	if desc != nil {
		table = desc.table
	}
	if table == "" && isEntity {
		table = marker.TableName()
	}
	if table == "" {
		table = e.naming.TableName(t.Name())
	}

	var columns []ColumnProperty
	seen := make(map[string]struct{})
	err := walkFields(t, nil, func(f reflect.StructField, index []int) error {
		if transient(desc, f) {
			return nil
		}
		seen[f.Name] = struct{}{}
		switch f.Type.Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Interface:
			return &MetadataError{Type: t, Reason: fmt.Sprintf("attribute %s has unsupported type %s", f.Name, f.Type)}
		}

		col := ColumnProperty{
			Name:      e.naming.ColumnName(f.Name),
			Attribute: f.Name,
			Type:      f.Type,
			Nullable:  nullableType(f.Type),
			index:     index,
		}
		if err := applyTag(f.Tag.Get(TagKey), &col); err != nil {
			return &MetadataError{Type: t, Reason: "attribute " + f.Name, Err: err}
		}
		if desc != nil {
			for _, opt := range desc.columns[f.Name] {
				opt(&col)
			}
			for _, id := range desc.ids {
				if id == f.Name {
					col.Identifier = true
				}
			}
		}
		col.DefaultValue = coerceDefault(col.DefaultValue, f.Type)
		columns = append(columns, col)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if desc != nil {
		for _, attr := range desc.order {
			if _, ok := seen[attr]; !ok {
				return nil, &MetadataError{Type: t, Reason: "descriptor names unknown attribute " + attr}
			}
		}
	}

	if err := resolveIdentifier(t, columns); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(columns))
	for _, c := range columns {
		if prev, dup := names[c.Name]; dup {
			return nil, &MetadataError{Type: t, Reason: fmt.Sprintf("attributes %s and %s both map to column %q", prev, c.Attribute, c.Name)}
		}
		names[c.Name] = c.Attribute
	}

	return newEntityMetadata(t, table, columns), nil
}

// resolveIdentifier enforces at most one identifier. Without a declared
// one, an attribute named ID is used.
func resolveIdentifier(t reflect.Type, columns []ColumnProperty) error {
	count := 0
	for _, c := range columns {
		if c.Identifier {
			count++
		}
	}
	if count > 1 {
		return &MetadataError{Type: t, Reason: "more than one identifier attribute"}
	}
	if count == 0 {
		for i := range columns {
			if columns[i].Attribute == "ID" {
				columns[i].Identifier = true
				break
			}
		}
	}
	return nil
}

func entityMarker(t reflect.Type) (Entity, bool) {
	if t.Implements(entityType) {
		return reflect.Zero(t).Interface().(Entity), true
	}
	if reflect.PointerTo(t).Implements(entityType) {
		return reflect.New(t).Interface().(Entity), true
	}
	return nil, false
}

func transient(desc *Descriptor, f reflect.StructField) bool {
	if f.Tag.Get(TagKey) == "-" {
		return true
	}
	if desc == nil {
		return false
	}
	_, ok := desc.transient[f.Name]
	return ok
}

// walkFields visits exported fields, flattening embedded structs.
func walkFields(t reflect.Type, prefix []int, fn func(reflect.StructField, []int) error) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), prefix...), i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Type != timeType && f.Tag.Get(TagKey) == "" {
			if err := walkFields(f.Type, index, fn); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		if err := fn(f, index); err != nil {
			return err
		}
	}
	return nil
}

func nullableType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

// coerceDefault converts a textual default from a struct tag into the
// attribute's type when possible.
func coerceDefault(v any, t reflect.Type) any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s, ok := v.(string)
	if !ok || t.Kind() == reflect.String {
		return v
	}
	converted, err := Coerce(s, t)
	if err != nil {
		return v
	}
	return converted.Interface()
}
