package sqlstore

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/leafsii/repokit/pkg/metadata"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
)

// CreateTableSQL renders the CREATE TABLE statement for an entity.
func (d Dialect) CreateTableSQL(meta *metadata.EntityMetadata) string {
	defs := make([]string, 0, len(meta.Columns))
	for _, c := range meta.Columns {
		defs = append(defs, d.columnDef(c))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", d.Quote(meta.TableName), strings.Join(defs, ",\n  "))
}

func (d Dialect) columnDef(c metadata.ColumnProperty) string {
	name := d.Quote(c.Name)
	if c.Identifier && isIntegerType(c.Type) {
		if d == SQLite {
			return name + " INTEGER PRIMARY KEY"
		}
		return name + " BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	}

	parts := []string{name, d.ColumnType(c)}
	if c.Identifier {
		parts = append(parts, "PRIMARY KEY")
	} else {
		if !c.Nullable {
			parts = append(parts, "NOT NULL")
		}
		if c.Unique {
			parts = append(parts, "UNIQUE")
		}
		if lit, ok := defaultLiteral(c.DefaultValue); ok {
			parts = append(parts, "DEFAULT "+lit)
		}
	}
	return strings.Join(parts, " ")
}

// ColumnType maps an attribute type to a column type.
func (d Dialect) ColumnType(c metadata.ColumnProperty) string {
	t := c.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case timeType:
		if d == SQLite {
			return "TIMESTAMP"
		}
		return "TIMESTAMPTZ"
	case decimalType:
		if c.Precision != nil {
			scale := 0
			if c.Scale != nil {
				scale = *c.Scale
			}
			return fmt.Sprintf("NUMERIC(%d,%d)", *c.Precision, scale)
		}
		return "NUMERIC"
	case uuidType:
		if d == SQLite {
			return "TEXT"
		}
		return "UUID"
	}

	switch t.Kind() {
	case reflect.String:
		if c.Length != nil {
			return fmt.Sprintf("VARCHAR(%d)", *c.Length)
		}
		return "TEXT"
	case reflect.Bool:
		return "BOOLEAN"
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return "SMALLINT"
	case reflect.Int32, reflect.Uint16:
		return "INTEGER"
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		if d == SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case reflect.Float32:
		return "REAL"
	case reflect.Float64:
		if d == SQLite {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			if d == SQLite {
				return "BLOB"
			}
			return "BYTEA"
		}
	}
	// Composite values are stored as JSON.
	if d == SQLite {
		return "TEXT"
	}
	return "JSONB"
}

func defaultLiteral(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", true
	case bool:
		if x {
			return "TRUE", true
		}
		return "FALSE", true
	case decimal.Decimal:
		return x.String(), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	case reflect.String:
		return defaultLiteral(rv.String())
	}
	return "", false
}

func isIntegerType(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
