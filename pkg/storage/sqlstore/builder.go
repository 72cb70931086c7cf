package sqlstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/query"
	"github.com/leafsii/repokit/pkg/storage"
)

// statement is a rendered SQL string with its bind arguments.
type statement struct {
	sql  string
	args []interface{}
}

// builder renders statements for one entity.
type builder struct {
	d       Dialect
	meta    *metadata.EntityMetadata
	counter int
	args    []interface{}
}

func newBuilder(d Dialect, meta *metadata.EntityMetadata) *builder {
	return &builder{d: d, meta: meta, counter: 1}
}

func (b *builder) bind(v interface{}) string {
	b.args = append(b.args, sqlValue(v))
	p := b.d.Placeholder(b.counter)
	b.counter++
	return p
}

func (b *builder) table() string {
	return b.d.Quote(b.meta.TableName)
}

func (b *builder) columnList() string {
	cols := make([]string, len(b.meta.Columns))
	for i, c := range b.meta.Columns {
		cols[i] = b.d.Quote(c.Name)
	}
	return strings.Join(cols, ", ")
}

func (b *builder) orderBy() string {
	if id, ok := b.meta.ID(); ok {
		return " ORDER BY " + b.d.Quote(id.Name)
	}
	return ""
}

func (b *builder) done(sql string) statement {
	return statement{sql: sql, args: b.args}
}

func (b *builder) selectWhere(where *storage.Filters) (statement, error) {
	cond, err := b.where(where)
	if err != nil {
		return statement{}, err
	}
	return b.done(fmt.Sprintf("SELECT %s FROM %s%s%s", b.columnList(), b.table(), cond, b.orderBy())), nil
}

func (b *builder) selectByID(col metadata.ColumnProperty, id interface{}) statement {
	return b.done(fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", b.columnList(), b.table(), b.d.Quote(col.Name), b.bind(id)))
}

func (b *builder) deleteByID(col metadata.ColumnProperty, id interface{}) statement {
	return b.done(fmt.Sprintf("DELETE FROM %s WHERE %s = %s", b.table(), b.d.Quote(col.Name), b.bind(id)))
}

func (b *builder) deleteWhere(where *storage.Filters) (statement, error) {
	cond, err := b.where(where)
	if err != nil {
		return statement{}, err
	}
	return b.done(fmt.Sprintf("DELETE FROM %s%s RETURNING %s", b.table(), cond, b.columnList())), nil
}

func (b *builder) updateWhere(changes map[string]interface{}, where *storage.Filters) (statement, error) {
	sets := make([]string, 0, len(changes))
	// Column order keeps the rendered SQL deterministic.
	for _, c := range b.meta.Columns {
		v, ok := changes[c.Name]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", b.d.Quote(c.Name), b.bind(v)))
	}
	cond, err := b.where(where)
	if err != nil {
		return statement{}, err
	}
	return b.done(fmt.Sprintf("UPDATE %s SET %s%s RETURNING %s", b.table(), strings.Join(sets, ", "), cond, b.columnList())), nil
}

// upsert inserts record, replacing the row with the same identifier.
// When omitID is set the identifier is left to the database.
func (b *builder) upsert(record storage.Record, idCol metadata.ColumnProperty, omitID bool) statement {
	var cols, values, updates []string
	for _, c := range b.meta.Columns {
		if c.Identifier && omitID {
			continue
		}
		cols = append(cols, b.d.Quote(c.Name))
		values = append(values, b.bind(record[c.Name]))
		if !c.Identifier {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", b.d.Quote(c.Name), b.d.Quote(c.Name)))
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s)", b.table(), strings.Join(cols, ", "), strings.Join(values, ", "))
	if !omitID {
		if len(updates) == 0 {
			fmt.Fprintf(&sb, " ON CONFLICT (%s) DO NOTHING", b.d.Quote(idCol.Name))
		} else {
			fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET %s", b.d.Quote(idCol.Name), strings.Join(updates, ", "))
		}
	}
	fmt.Fprintf(&sb, " RETURNING %s", b.columnList())
	return b.done(sb.String())
}

func (b *builder) where(f *storage.Filters) (string, error) {
	sql, err := b.filtersToSQL(f)
	if err != nil || sql == "" {
		return "", err
	}
	return " WHERE " + sql, nil
}

// filtersToSQL renders Filters: conditions and AND groups joined with AND,
// OR groups as a parenthesised alternative.
func (b *builder) filtersToSQL(f *storage.Filters) (string, error) {
	if f == nil {
		return "", nil
	}
	var parts []string
	for _, cond := range f.Conditions {
		sql, err := b.conditionToSQL(cond)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	for _, group := range f.AND {
		sql, err := b.filtersToSQL(group)
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, "("+sql+")")
		}
	}
	if len(f.OR) > 0 {
		var alts []string
		for _, group := range f.OR {
			sql, err := b.filtersToSQL(group)
			if err != nil {
				return "", err
			}
			if sql == "" {
				sql = "TRUE"
			}
			alts = append(alts, "("+sql+")")
		}
		parts = append(parts, "("+strings.Join(alts, " OR ")+")")
	}
	return strings.Join(parts, " AND "), nil
}

func (b *builder) conditionToSQL(cond storage.Filter) (string, error) {
	col := b.d.Quote(cond.Column)
	switch cond.Operator {
	case query.OpEq:
		return fmt.Sprintf("%s = %s", col, b.bind(cond.Value)), nil
	case query.OpNe:
		return fmt.Sprintf("%s <> %s", col, b.bind(cond.Value)), nil
	case query.OpGt:
		return fmt.Sprintf("%s > %s", col, b.bind(cond.Value)), nil
	case query.OpGte:
		return fmt.Sprintf("%s >= %s", col, b.bind(cond.Value)), nil
	case query.OpLt:
		return fmt.Sprintf("%s < %s", col, b.bind(cond.Value)), nil
	case query.OpLte:
		return fmt.Sprintf("%s <= %s", col, b.bind(cond.Value)), nil
	case query.OpLike:
		return fmt.Sprintf("%s LIKE %s", col, b.bind(cond.Value)), nil
	case query.OpNotLike:
		return fmt.Sprintf("%s NOT LIKE %s", col, b.bind(cond.Value)), nil
	case query.OpIsNull:
		return col + " IS NULL", nil
	case query.OpIsNotNull:
		return col + " IS NOT NULL", nil
	case query.OpIn, query.OpNotIn:
		values, ok := cond.Value.([]interface{})
		if !ok {
			return "", fmt.Errorf("%w: %s requires a list", storage.ErrInvalidArgument, cond.Operator)
		}
		if len(values) == 0 {
			// IN () matches nothing, NOT IN () everything.
			if cond.Operator == query.OpIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = b.bind(v)
		}
		op := "IN"
		if cond.Operator == query.OpNotIn {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(placeholders, ", ")), nil
	case query.OpBetween:
		r, ok := cond.Value.(storage.Range)
		if !ok {
			return "", fmt.Errorf("%w: BETWEEN requires a range", storage.ErrInvalidArgument)
		}
		from := b.bind(r.From)
		to := b.bind(r.To)
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, from, to), nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported operator %s", cond.Operator)
	}
}

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

// sqlValue prepares a record value for the driver. Composite values are
// stored as JSON text.
func sqlValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().Implements(valuerType) {
		return v
	}
	if _, ok := v.(time.Time); ok {
		return v
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Array:
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b)
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b)
	}
	return v
}
