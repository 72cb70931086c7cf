package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/query"
)

type account struct {
	ID        int64
	Email     string `repo:"unique"`
	Age       int
	City      string
	Role      string
	Balance   decimal.Decimal
	DeletedAt *time.Time
}

func (account) TableName() string { return "accounts" }

func accountMeta(t *testing.T) *metadata.EntityMetadata {
	t.Helper()
	meta, err := metadata.ExtractFor[account](metadata.NewExtractor(metadata.SnakeCaseNaming{}))
	require.NoError(t, err)
	return meta
}

func TestCompileGroupsByOr(t *testing.T) {
	meta := accountMeta(t)
	plan, err := Compile(query.MustParse("findByRoleAndAgeOrCity"), []interface{}{"admin", 30, "Oslo"}, meta)
	require.NoError(t, err)

	assert.Equal(t, query.ActionFind, plan.Action)
	assert.Empty(t, plan.Where.Conditions)
	require.Len(t, plan.Where.OR, 2)
	assert.Equal(t, []Filter{
		{Field: "role", Column: "role", Operator: query.OpEq, Value: "admin"},
		{Field: "age", Column: "age", Operator: query.OpEq, Value: 30},
	}, plan.Where.OR[0].Conditions)
	assert.Equal(t, []Filter{
		{Field: "city", Column: "city", Operator: query.OpEq, Value: "Oslo"},
	}, plan.Where.OR[1].Conditions)
}

func TestCompileAndOnly(t *testing.T) {
	meta := accountMeta(t)
	plan, err := Compile(query.MustParse("findByEmailAndAgeGreaterThan"), []interface{}{"a@example.com", int64(18)}, meta)
	require.NoError(t, err)
	require.Len(t, plan.Where.Conditions, 2)
	assert.Empty(t, plan.Where.OR)
	assert.Equal(t, 18, plan.Where.Conditions[1].Value)
}

func TestCompileNullChecksTakeNoArgument(t *testing.T) {
	meta := accountMeta(t)
	plan, err := Compile(query.MustParse("findByDeletedAtIsNullAndEmail"), []interface{}{"a@example.com"}, meta)
	require.NoError(t, err)
	require.Len(t, plan.Where.Conditions, 2)
	assert.Nil(t, plan.Where.Conditions[0].Value)
	assert.Equal(t, "deleted_at", plan.Where.Conditions[0].Column)
	assert.Equal(t, "a@example.com", plan.Where.Conditions[1].Value)
}

func TestCompileArguments(t *testing.T) {
	meta := accountMeta(t)

	t.Run("between slice", func(t *testing.T) {
		plan, err := Compile(query.MustParse("findByAgeBetween"), []interface{}{[]int64{20, 30}}, meta)
		require.NoError(t, err)
		assert.Equal(t, Range{From: 20, To: 30}, plan.Where.Conditions[0].Value)
	})

	t.Run("between range", func(t *testing.T) {
		plan, err := Compile(query.MustParse("findByAgeBetween"), []interface{}{Range{From: 1, To: 2}}, meta)
		require.NoError(t, err)
		assert.Equal(t, Range{From: 1, To: 2}, plan.Where.Conditions[0].Value)
	})

	t.Run("between wrong shape", func(t *testing.T) {
		_, err := Compile(query.MustParse("findByAgeBetween"), []interface{}{[]int{1}}, meta)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("in", func(t *testing.T) {
		plan, err := Compile(query.MustParse("findByRoleIn"), []interface{}{[]string{"a", "b"}}, meta)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"a", "b"}, plan.Where.Conditions[0].Value)
	})

	t.Run("in needs slice", func(t *testing.T) {
		_, err := Compile(query.MustParse("findByRoleNotIn"), []interface{}{"a"}, meta)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("like needs string", func(t *testing.T) {
		_, err := Compile(query.MustParse("findByEmailLike"), []interface{}{42}, meta)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("arity", func(t *testing.T) {
		_, err := Compile(query.MustParse("findByEmailAndAge"), []interface{}{"x"}, meta)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Compile(query.MustParse("findByNickname"), []interface{}{"x"}, meta)
		assert.ErrorIs(t, err, ErrUnknownField)
	})
}

func TestCompileUpdate(t *testing.T) {
	meta := accountMeta(t)

	plan, err := Compile(query.MustParse("updateByEmail"), []interface{}{"a@example.com", map[string]interface{}{"city": "Bergen", "Age": int64(41)}}, meta)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"city": "Bergen", "age": 41}, plan.Changes)

	_, err = Compile(query.MustParse("updateByEmail"), []interface{}{"a@example.com", map[string]interface{}{"id": 3}}, meta)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Compile(query.MustParse("updateByEmail"), []interface{}{"a@example.com", map[string]interface{}{}}, meta)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Compile(query.MustParse("updateByEmail"), []interface{}{"a@example.com", map[string]interface{}{"nope": 1}}, meta)
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = Compile(query.MustParse("updateByEmail"), []interface{}{"a@example.com"}, meta)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMatcherOperators(t *testing.T) {
	deleted := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	record := map[string]interface{}{
		"email":      "ada@example.com",
		"age":        int64(36),
		"city":       "London",
		"balance":    decimal.RequireFromString("10.50"),
		"deleted_at": deleted,
		"nickname":   nil,
	}
	m := &Matcher{}

	tests := []struct {
		name string
		f    Filter
		want bool
	}{
		{"eq cross width", Filter{Column: "age", Operator: query.OpEq, Value: 36}, true},
		{"ne", Filter{Column: "city", Operator: query.OpNe, Value: "Paris"}, true},
		{"gt", Filter{Column: "age", Operator: query.OpGt, Value: 35}, true},
		{"gte equal", Filter{Column: "age", Operator: query.OpGte, Value: 36}, true},
		{"lt", Filter{Column: "age", Operator: query.OpLt, Value: 36}, false},
		{"lte float", Filter{Column: "age", Operator: query.OpLte, Value: 36.5}, true},
		{"decimal vs int", Filter{Column: "balance", Operator: query.OpGt, Value: 10}, true},
		{"decimal eq", Filter{Column: "balance", Operator: query.OpEq, Value: decimal.RequireFromString("10.5")}, true},
		{"between", Filter{Column: "age", Operator: query.OpBetween, Value: Range{From: 30, To: 40}}, true},
		{"between outside", Filter{Column: "age", Operator: query.OpBetween, Value: Range{From: 37, To: 40}}, false},
		{"time between", Filter{Column: "deleted_at", Operator: query.OpBetween, Value: Range{From: deleted.Add(-time.Hour), To: deleted}}, true},
		{"in", Filter{Column: "city", Operator: query.OpIn, Value: []interface{}{"Paris", "London"}}, true},
		{"not in", Filter{Column: "city", Operator: query.OpNotIn, Value: []interface{}{"Paris", "London"}}, false},
		{"like suffix", Filter{Column: "email", Operator: query.OpLike, Value: "%@example.com"}, true},
		{"like single char", Filter{Column: "email", Operator: query.OpLike, Value: "a_a@%"}, true},
		{"like anchored", Filter{Column: "email", Operator: query.OpLike, Value: "example"}, false},
		{"like regexp meta", Filter{Column: "email", Operator: query.OpLike, Value: "ada.example%"}, false},
		{"not like", Filter{Column: "email", Operator: query.OpNotLike, Value: "%@test.com"}, true},
		{"is null", Filter{Column: "nickname", Operator: query.OpIsNull}, true},
		{"is null missing column", Filter{Column: "missing", Operator: query.OpIsNull}, true},
		{"is not null", Filter{Column: "deleted_at", Operator: query.OpIsNotNull}, true},
		{"null never equals", Filter{Column: "nickname", Operator: query.OpEq, Value: nil}, false},
		{"type mismatch", Filter{Column: "city", Operator: query.OpGt, Value: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Matches(record, &Filters{Conditions: []Filter{tt.f}})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcherLogic(t *testing.T) {
	m := &Matcher{}
	record := map[string]interface{}{"role": "user", "age": 20, "city": "Oslo"}

	// role = admin AND age = 20 OR city = Oslo
	f := &Filters{OR: []*Filters{
		{Conditions: []Filter{
			{Column: "role", Operator: query.OpEq, Value: "admin"},
			{Column: "age", Operator: query.OpEq, Value: 20},
		}},
		{Conditions: []Filter{{Column: "city", Operator: query.OpEq, Value: "Oslo"}}},
	}}
	assert.True(t, m.Matches(record, f))

	record["city"] = "Bergen"
	assert.False(t, m.Matches(record, f))

	assert.True(t, m.Matches(record, nil))
	assert.True(t, m.Matches(record, &Filters{}))
	assert.False(t, m.Matches(record, &Filters{AND: []*Filters{f}}))
}

func TestCompare(t *testing.T) {
	c, ok := Compare(uint8(3), int64(4))
	require.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare("b", "a")
	require.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = Compare(true, false)
	require.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = Compare([]int{1}, []int{1})
	assert.False(t, ok)
	assert.True(t, Equal([]int{1}, []int{1}))

	n := 5
	assert.True(t, Equal(&n, 5))
	assert.True(t, Equal(nil, (*int)(nil)))
	assert.False(t, Equal(nil, 0))
}

func TestStorageErrorUnwrap(t *testing.T) {
	err := &StorageError{Op: "save", Table: "accounts", Err: ErrUniqueConstraint}
	assert.True(t, errors.Is(err, ErrUniqueConstraint))
	assert.Equal(t, "save accounts: storage: unique constraint violation", err.Error())
}
