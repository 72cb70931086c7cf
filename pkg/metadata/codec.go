package metadata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// ToRecord flattens entity into a record keyed by column name. Nil
// pointers are stored as nil, set pointers as their target value.
func (m *EntityMetadata) ToRecord(entity any) (map[string]any, error) {
	v, err := m.structValue(entity)
	if err != nil {
		return nil, err
	}
	record := make(map[string]any, len(m.Columns))
	for _, c := range m.Columns {
		fv := v.FieldByIndex(c.index)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				record[c.Name] = nil
				continue
			}
			fv = fv.Elem()
		}
		record[c.Name] = fv.Interface()
	}
	return record, nil
}

// FromRecord allocates a new entity and populates it from record. The
// result is a pointer to the entity type. Columns absent from record keep
// their zero value.
func (m *EntityMetadata) FromRecord(record map[string]any) (any, error) {
	ptr := m.New()
	elem := ptr.Elem()
	for _, c := range m.Columns {
		raw, ok := record[c.Name]
		if !ok {
			continue
		}
		val, err := Coerce(raw, c.Type)
		if err != nil {
			return nil, fmt.Errorf("metadata: column %s.%s: %w", m.TableName, c.Name, err)
		}
		elem.FieldByIndex(c.index).Set(val)
	}
	return ptr.Interface(), nil
}

// Coerce converts value into target the way database drivers hand values
// back: numeric widening, text to time, sql.Scanner targets, JSON text
// into composite types, and pointer allocation.
func Coerce(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target) {
		out := reflect.New(target).Elem()
		out.Set(v)
		return out, nil
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Zero(target), nil
		}
		return Coerce(v.Elem().Interface(), target)
	}
	if target.Kind() == reflect.Pointer {
		inner, err := Coerce(value, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(target.Elem())
		p.Elem().Set(inner)
		return p, nil
	}
	if reflect.PointerTo(target).Implements(scannerType) {
		p := reflect.New(target)
		if err := p.Interface().(sql.Scanner).Scan(driverValue(v)); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}
	if target == timeType {
		return coerceTime(value)
	}

	switch target.Kind() {
	case reflect.String:
		switch {
		case v.Kind() == reflect.String:
			return v.Convert(target), nil
		case isBytes(v):
			return reflect.ValueOf(string(v.Bytes())).Convert(target), nil
		}
	case reflect.Bool:
		switch {
		case isInt(v.Kind()):
			return reflect.ValueOf(v.Int() != 0).Convert(target), nil
		case v.Kind() == reflect.String:
			b, err := strconv.ParseBool(v.String())
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(b).Convert(target), nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return coerceNumber(v, target)
	case reflect.Slice, reflect.Map, reflect.Struct, reflect.Array:
		if target.Kind() == reflect.Slice && target.Elem().Kind() == reflect.Uint8 && v.Kind() == reflect.String {
			return reflect.ValueOf([]byte(v.String())).Convert(target), nil
		}
		return coerceJSON(v, target)
	}
	if v.Type().ConvertibleTo(target) && v.Kind() == target.Kind() {
		return v.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", value, target)
}

func coerceTime(value any) (reflect.Value, error) {
	var s string
	switch tv := value.(type) {
	case string:
		s = tv
	case []byte:
		s = string(tv)
	default:
		return reflect.Value{}, fmt.Errorf("cannot convert %T to time.Time", value)
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return reflect.ValueOf(t), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot parse %q as time", s)
}

func coerceNumber(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	if v.Kind() == reflect.String || isBytes(v) {
		s := v.String()
		if isBytes(v) {
			s = string(v.Bytes())
		}
		switch {
		case isInt(target.Kind()):
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return reflect.Value{}, err
			}
			v = reflect.ValueOf(n)
		case isUint(target.Kind()):
			n, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return reflect.Value{}, err
			}
			v = reflect.ValueOf(n)
		default:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return reflect.Value{}, err
			}
			v = reflect.ValueOf(f)
		}
	}

	switch {
	case isInt(target.Kind()):
		var n int64
		switch {
		case isInt(v.Kind()):
			n = v.Int()
		case isUint(v.Kind()):
			n = int64(v.Uint())
		case isFloat(v.Kind()):
			f := v.Float()
			if f != float64(int64(f)) {
				return reflect.Value{}, fmt.Errorf("%v is not an integer", f)
			}
			n = int64(f)
		default:
			return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", v.Type(), target)
		}
		if out.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, target)
		}
		out.SetInt(n)
	case isUint(target.Kind()):
		var n uint64
		switch {
		case isInt(v.Kind()) && v.Int() >= 0:
			n = uint64(v.Int())
		case isUint(v.Kind()):
			n = v.Uint()
		case isFloat(v.Kind()) && v.Float() >= 0:
			n = uint64(v.Float())
		default:
			return reflect.Value{}, fmt.Errorf("cannot convert %v to %s", v.Interface(), target)
		}
		if out.OverflowUint(n) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, target)
		}
		out.SetUint(n)
	default:
		switch {
		case isInt(v.Kind()):
			out.SetFloat(float64(v.Int()))
		case isUint(v.Kind()):
			out.SetFloat(float64(v.Uint()))
		case isFloat(v.Kind()):
			out.SetFloat(v.Float())
		default:
			return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", v.Type(), target)
		}
	}
	return out, nil
}

func coerceJSON(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	var raw []byte
	switch {
	case v.Kind() == reflect.String:
		raw = []byte(v.String())
	case isBytes(v):
		raw = v.Bytes()
	default:
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return reflect.Value{}, err
		}
		raw = b
	}
	p := reflect.New(target)
	if err := json.Unmarshal(raw, p.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot decode %s: %w", target, err)
	}
	return p.Elem(), nil
}

// driverValue narrows v to the types database/sql hands to Scan.
func driverValue(v reflect.Value) any {
	switch {
	case isInt(v.Kind()):
		return v.Int()
	case isUint(v.Kind()):
		return int64(v.Uint())
	case isFloat(v.Kind()):
		return v.Float()
	case v.Kind() == reflect.String:
		return v.String()
	}
	return v.Interface()
}

func isBytes(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
