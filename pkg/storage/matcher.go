package storage

import (
	"math/big"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leafsii/repokit/pkg/query"
)

// Matcher evaluates Filters against column-keyed records for backends
// that cannot push predicates down to the store.
type Matcher struct {
	patterns sync.Map // LIKE pattern -> *regexp.Regexp
}

// Matches reports whether record satisfies filters. Nil filters match
// everything.
func (m *Matcher) Matches(record map[string]interface{}, filters *Filters) bool {
	if filters == nil {
		return true
	}

	for _, andFilter := range filters.AND {
		if !m.Matches(record, andFilter) {
			return false
		}
	}

	if len(filters.OR) > 0 {
		hasMatch := false
		for _, orFilter := range filters.OR {
			if m.Matches(record, orFilter) {
				hasMatch = true
				break
			}
		}
		if !hasMatch {
			return false
		}
	}

	for _, condition := range filters.Conditions {
		if !m.matchesCondition(record, condition) {
			return false
		}
	}

	return true
}

func (m *Matcher) matchesCondition(record map[string]interface{}, condition Filter) bool {
	fieldValue := record[condition.Column]
	isNull := isNil(fieldValue)

	switch condition.Operator {
	case query.OpIsNull:
		return isNull
	case query.OpIsNotNull:
		return !isNull
	}

	// SQL semantics: comparisons against NULL never match.
	if isNull {
		return false
	}

	switch condition.Operator {
	case query.OpEq:
		return Equal(fieldValue, condition.Value)
	case query.OpNe:
		return !Equal(fieldValue, condition.Value)
	case query.OpGt:
		c, ok := Compare(fieldValue, condition.Value)
		return ok && c > 0
	case query.OpGte:
		c, ok := Compare(fieldValue, condition.Value)
		return ok && c >= 0
	case query.OpLt:
		c, ok := Compare(fieldValue, condition.Value)
		return ok && c < 0
	case query.OpLte:
		c, ok := Compare(fieldValue, condition.Value)
		return ok && c <= 0
	case query.OpBetween:
		r, ok := condition.Value.(Range)
		if !ok {
			return false
		}
		lo, ok1 := Compare(fieldValue, r.From)
		hi, ok2 := Compare(fieldValue, r.To)
		return ok1 && ok2 && lo >= 0 && hi <= 0
	case query.OpIn:
		return m.contains(condition.Value, fieldValue)
	case query.OpNotIn:
		return !m.contains(condition.Value, fieldValue)
	case query.OpLike, query.OpNotLike:
		strValue, ok := fieldValue.(string)
		if !ok {
			return condition.Operator == query.OpNotLike
		}
		pattern, _ := condition.Value.(string)
		matched := m.like(pattern).MatchString(strValue)
		if condition.Operator == query.OpNotLike {
			return !matched
		}
		return matched
	}
	return false
}

func (m *Matcher) contains(list interface{}, v interface{}) bool {
	items, _ := list.([]interface{})
	for _, item := range items {
		if Equal(v, item) {
			return true
		}
	}
	return false
}

// like compiles an SQL LIKE pattern: % matches any run, _ one character.
func (m *Matcher) like(pattern string) *regexp.Regexp {
	if re, ok := m.patterns.Load(pattern); ok {
		return re.(*regexp.Regexp)
	}
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re := regexp.MustCompile(b.String())
	m.patterns.Store(pattern, re)
	return re
}

// Equal compares two stored values after numeric, decimal and time
// normalisation.
func Equal(a, b interface{}) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two values. ok is false when they are not comparable.
func Compare(a, b interface{}) (int, bool) {
	a, b = deref(a), deref(b)
	if a == nil || b == nil {
		return 0, false
	}

	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case decimal.Decimal:
		bv, ok := toDecimal(b)
		if !ok {
			return 0, false
		}
		return av.Cmp(bv), true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}

	if bv, ok := b.(decimal.Decimal); ok {
		av, ok := toDecimal(a)
		if !ok {
			return 0, false
		}
		return av.Cmp(bv), true
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isSigned(va) && isSigned(vb):
		return cmpOrdered(va.Int(), vb.Int()), true
	case isUnsigned(va) && isUnsigned(vb):
		return cmpOrdered(va.Uint(), vb.Uint()), true
	case isNumber(va) && isNumber(vb):
		return cmpOrdered(toFloat(va), toFloat(vb)), true
	case va.Kind() == reflect.String && vb.Kind() == reflect.String:
		return strings.Compare(va.String(), vb.String()), true
	}
	return 0, false
}

func cmpOrdered[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case isSigned(rv):
		return decimal.NewFromInt(rv.Int()), true
	case isUnsigned(rv):
		return decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0), true
	case isNumber(rv):
		return decimal.NewFromFloat(rv.Float()), true
	}
	return decimal.Decimal{}, false
}

func deref(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func isNil(v interface{}) bool {
	return deref(v) == nil
}

func isSigned(v reflect.Value) bool {
	return v.Kind() >= reflect.Int && v.Kind() <= reflect.Int64
}

func isUnsigned(v reflect.Value) bool {
	return v.Kind() >= reflect.Uint && v.Kind() <= reflect.Uintptr
}

func isNumber(v reflect.Value) bool {
	return isSigned(v) || isUnsigned(v) || v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isSigned(v):
		return float64(v.Int())
	case isUnsigned(v):
		return float64(v.Uint())
	}
	return v.Float()
}
