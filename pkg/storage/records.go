package storage

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/leafsii/repokit/pkg/metadata"
)

// Record is an entity flattened to column values.
type Record = map[string]interface{}

// IdentifierColumn returns the identifier column or ErrNoIdentifier.
func IdentifierColumn(meta *metadata.EntityMetadata) (metadata.ColumnProperty, error) {
	col, ok := meta.ID()
	if !ok {
		return col, fmt.Errorf("%w: %s", ErrNoIdentifier, meta.TableName)
	}
	return col, nil
}

// IDKey renders an identifier as a map key. The value is first converted
// to the identifier's type so that 7 and int64(7) share a key.
func IDKey(id interface{}, col metadata.ColumnProperty) string {
	return fmt.Sprint(coerceArg(id, col.Type))
}

// AssignIdentifier fills a zero identifier in record. String identifiers
// get a UUID, integer ones the value returned by next.
func AssignIdentifier(record Record, col metadata.ColumnProperty, next func() (int64, error)) (bool, error) {
	if !isZero(record[col.Name]) {
		return false, nil
	}
	t := col.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		record[col.Name] = uuid.New().String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := next()
		if err != nil {
			return false, err
		}
		record[col.Name] = coerceArg(n, t)
	default:
		if t == reflect.TypeOf(uuid.UUID{}) {
			record[col.Name] = uuid.New()
			return true, nil
		}
		return false, fmt.Errorf("%w: cannot generate identifier of type %s", ErrInvalidArgument, col.Type)
	}
	return true, nil
}

// ApplyDefaults replaces zero attributes with their declared defaults.
func ApplyDefaults(record Record, meta *metadata.EntityMetadata) {
	for _, c := range meta.Columns {
		if c.DefaultValue == nil || c.Identifier {
			continue
		}
		if isZero(record[c.Name]) {
			record[c.Name] = coerceArg(c.DefaultValue, c.Type)
		}
	}
}

// CheckUnique reports a unique-column clash between record and any of
// others. skip names the key of record itself.
func CheckUnique(record Record, meta *metadata.EntityMetadata, others map[string]Record, skip string) error {
	for _, c := range meta.Columns {
		if !c.Unique || c.Identifier {
			continue
		}
		value := record[c.Name]
		if isNil(value) {
			continue
		}
		for key, other := range others {
			if key == skip {
				continue
			}
			if Equal(other[c.Name], value) {
				return fmt.Errorf("%w: column %s value %v", ErrUniqueConstraint, c.Name, value)
			}
		}
	}
	return nil
}

// CopyRecord returns a shallow copy of r.
func CopyRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func isZero(v interface{}) bool {
	if isNil(v) {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

// AsInt64 returns the value of an integer of any width.
func AsInt64(v interface{}) (int64, bool) {
	rv := reflect.ValueOf(deref(v))
	switch {
	case isSigned(rv):
		return rv.Int(), true
	case isUnsigned(rv):
		return int64(rv.Uint()), true
	}
	return 0, false
}
