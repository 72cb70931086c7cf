package storage

import (
	"fmt"
	"reflect"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/query"
)

// Filter is one column predicate.
type Filter struct {
	Field    string
	Column   string
	Operator query.Operator
	Value    interface{}
}

// Filters combines predicates: every entry of Conditions and AND must
// hold, and at least one entry of OR when OR is non-empty.
type Filters struct {
	Conditions []Filter
	AND        []*Filters
	OR         []*Filters
}

// Range is the argument of a BETWEEN condition, inclusive on both ends.
type Range struct {
	From interface{}
	To   interface{}
}

// Plan is a parsed method bound to its call arguments.
type Plan struct {
	Action query.Action
	Where  *Filters
	// Changes maps column names to new values for UPDATE.
	Changes map[string]interface{}
}

// Compile binds args to method. Value-taking conditions consume arguments
// in order; null checks consume none. UPDATE methods take a trailing
// map[string]interface{} of attribute changes. AND binds tighter than OR.
func Compile(method *query.ParsedMethod, args []interface{}, meta *metadata.EntityMetadata) (*Plan, error) {
	want := method.Arity()
	if method.Action == query.ActionUpdate {
		want++
	}
	if len(args) != want {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrInvalidArgument, method.Name, want, len(args))
	}

	plan := &Plan{Action: method.Action, Where: &Filters{}}
	var groups []*Filters
	current := &Filters{}
	cursor := 0
	for i, cond := range method.Conditions {
		col, ok := meta.Column(cond.Field)
		if !ok {
			return nil, fmt.Errorf("%w: %q on %s", ErrUnknownField, cond.Field, meta.TableName)
		}
		f := Filter{Field: cond.Field, Column: col.Name, Operator: cond.Operator}
		if cond.Operator.TakesValue() {
			v, err := bindValue(cond.Operator, args[cursor], col)
			if err != nil {
				return nil, fmt.Errorf("%s argument %d: %w", method.Name, cursor, err)
			}
			f.Value = v
			cursor++
		}
		if i > 0 && cond.Logical == query.Or {
			groups = append(groups, current)
			current = &Filters{}
		}
		current.Conditions = append(current.Conditions, f)
	}

	if len(groups) == 0 {
		plan.Where = current
	} else {
		plan.Where.OR = append(groups, current)
	}

	if method.Action == query.ActionUpdate {
		changes, err := bindChanges(args[len(args)-1], meta)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method.Name, err)
		}
		plan.Changes = changes
	}
	return plan, nil
}

func bindValue(op query.Operator, arg interface{}, col metadata.ColumnProperty) (interface{}, error) {
	switch op {
	case query.OpBetween:
		if r, ok := arg.(Range); ok {
			return Range{From: coerceArg(r.From, col.Type), To: coerceArg(r.To, col.Type)}, nil
		}
		items, ok := listOf(arg)
		if !ok || len(items) != 2 {
			return nil, fmt.Errorf("%w: BETWEEN on %s needs a two-element slice or storage.Range, got %T", ErrInvalidArgument, col.Name, arg)
		}
		return Range{From: coerceArg(items[0], col.Type), To: coerceArg(items[1], col.Type)}, nil
	case query.OpIn, query.OpNotIn:
		items, ok := listOf(arg)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s needs a slice, got %T", ErrInvalidArgument, op, col.Name, arg)
		}
		for i := range items {
			items[i] = coerceArg(items[i], col.Type)
		}
		return items, nil
	case query.OpLike, query.OpNotLike:
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s needs a string pattern, got %T", ErrInvalidArgument, op, col.Name, arg)
		}
		return s, nil
	}
	return coerceArg(arg, col.Type), nil
}

func bindChanges(arg interface{}, meta *metadata.EntityMetadata) (map[string]interface{}, error) {
	raw, ok := arg.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: update changes must be map[string]interface{}, got %T", ErrInvalidArgument, arg)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: update without changes", ErrInvalidArgument)
	}
	changes := make(map[string]interface{}, len(raw))
	for field, v := range raw {
		col, ok := meta.Column(field)
		if !ok {
			return nil, fmt.Errorf("%w: %q on %s", ErrUnknownField, field, meta.TableName)
		}
		if col.Identifier {
			return nil, fmt.Errorf("%w: identifier %s cannot be updated", ErrInvalidArgument, col.Name)
		}
		changes[col.Name] = coerceArg(v, col.Type)
	}
	return changes, nil
}

// coerceArg converts a call argument to the column's value type, leaving
// it untouched when no conversion applies.
func coerceArg(v interface{}, t reflect.Type) interface{} {
	if v == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out, err := metadata.Coerce(v, t)
	if err != nil {
		return v
	}
	return out.Interface()
}

func listOf(arg interface{}) ([]interface{}, bool) {
	v := reflect.ValueOf(arg)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return nil, false
	}
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]interface{}, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out, true
}
