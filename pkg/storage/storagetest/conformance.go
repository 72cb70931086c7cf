// Package storagetest provides conformance tests for storage.Accessor
// implementations.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/query"
	"github.com/leafsii/repokit/pkg/storage"
)

// Person is the entity exercised by the suite.
type Person struct {
	ID    int64  `repo:"id"`
	Email string `repo:"unique,length=320"`
	Name  string `repo:"length=100"`
	Age   int
	City  *string `repo:"nullable,length=80"`
	Level string  `repo:"default=member"`
}

func (Person) TableName() string { return "people" }

// Tag is an entity with a generated string identifier.
type Tag struct {
	Key   string `repo:"id,length=36"`
	Label string
}

func (Tag) TableName() string { return "tags" }

// Factory creates an empty accessor for one test.
type Factory func(t *testing.T) storage.Accessor

// PersonMetadata returns the mapping used by the suite.
func PersonMetadata(t *testing.T) *metadata.EntityMetadata {
	t.Helper()
	meta, err := metadata.ExtractFor[Person](metadata.NewExtractor(metadata.SnakeCaseNaming{}))
	require.NoError(t, err)
	return meta
}

// TagMetadata returns the mapping of Tag.
func TagMetadata(t *testing.T) *metadata.EntityMetadata {
	t.Helper()
	meta, err := metadata.ExtractFor[Tag](metadata.NewExtractor(metadata.SnakeCaseNaming{}))
	require.NoError(t, err)
	return meta
}

// RunConformanceTests runs the suite against fresh accessors from factory.
func RunConformanceTests(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		test func(t *testing.T, a storage.Accessor)
	}{
		{"FindAllEmpty", testFindAllEmpty},
		{"SaveAssignsIdentifier", testSaveAssignsIdentifier},
		{"SaveStringIdentifier", testSaveStringIdentifier},
		{"SaveReplacesExisting", testSaveReplacesExisting},
		{"SaveAppliesDefaults", testSaveAppliesDefaults},
		{"UniqueConstraint", testUniqueConstraint},
		{"FindByIDAbsent", testFindByIDAbsent},
		{"DeleteByID", testDeleteByID},
		{"QueryOperators", testQueryOperators},
		{"QueryConnectors", testQueryConnectors},
		{"QueryDelete", testQueryDelete},
		{"QueryUpdate", testQueryUpdate},
		{"QueryUpdateUnique", testQueryUpdateUnique},
		{"CancelledContext", testCancelledContext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.test(t, factory(t))
		})
	}
}

func city(s string) *string { return &s }

func seed(t *testing.T, a storage.Accessor, meta *metadata.EntityMetadata) []*Person {
	t.Helper()
	people := []Person{
		{Email: "ada@example.com", Name: "Ada", Age: 36, City: city("London")},
		{Email: "alan@example.com", Name: "Alan", Age: 41, City: city("Wilmslow")},
		{Email: "grace@navy.mil", Name: "Grace", Age: 85, City: nil},
		{Email: "linus@example.com", Name: "Linus", Age: 28, City: city("Helsinki")},
	}
	out := make([]*Person, 0, len(people))
	for _, p := range people {
		saved, err := a.Save(context.Background(), p, meta)
		require.NoError(t, err)
		out = append(out, saved.(*Person))
	}
	return out
}

func exec(t *testing.T, a storage.Accessor, meta *metadata.EntityMetadata, method string, args ...interface{}) []*Person {
	t.Helper()
	rows, err := a.ExecuteQuery(context.Background(), query.MustParse(method), args, meta)
	require.NoError(t, err, method)
	out := make([]*Person, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.(*Person))
	}
	return out
}

func names(people []*Person) []string {
	out := make([]string, 0, len(people))
	for _, p := range people {
		out = append(out, p.Name)
	}
	return out
}

func testFindAllEmpty(t *testing.T, a storage.Accessor) {
	rows, err := a.FindAll(context.Background(), PersonMetadata(t))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func testSaveAssignsIdentifier(t *testing.T, a storage.Accessor) {
	meta := PersonMetadata(t)
	people := seed(t, a, meta)

	seen := map[int64]bool{}
	for _, p := range people {
		assert.NotZero(t, p.ID)
		assert.False(t, seen[p.ID], "duplicate id %d", p.ID)
		seen[p.ID] = true
	}

	found, err := a.FindByID(context.Background(), people[1].ID, meta)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, people[1], found.(*Person))

	all, err := a.FindAll(context.Background(), meta)
	require.NoError(t, err)
	assert.Len(t, all, len(people))
}

func testSaveStringIdentifier(t *testing.T, a storage.Accessor) {
	meta := TagMetadata(t)
	saved, err := a.Save(context.Background(), &Tag{Label: "go"}, meta)
	require.NoError(t, err)
	tag := saved.(*Tag)
	assert.Len(t, tag.Key, 36)

	found, err := a.FindByID(context.Background(), tag.Key, meta)
	require.NoError(t, err)
	assert.Equal(t, tag, found)
}

func testSaveReplacesExisting(t *testing.T, a storage.Accessor) {
	meta := PersonMetadata(t)
	people := seed(t, a, meta)

	p := *people[0]
	p.Age = 37
	p.City = nil
	saved, err := a.Save(context.Background(), &p, meta)
	require.NoError(t, err)
	assert.Equal(t, p.ID, saved.(*Person).ID)

	found, err := a.FindByID(context.Background(), p.ID, meta)
	require.NoError(t, err)
	assert.Equal(t, 37, found.(*Person).Age)
	assert.Nil(t, found.(*Person).City)

	all, err := a.FindAll(context.Background(), meta)
	require.NoError(t, err)
	assert.Len(t, all, len(people))
}

func testSaveAppliesDefaults(t *testing.T, a storage.Accessor) {
	meta := PersonMetadata(t)
	saved, err := a.Save(context.Background(), Person{Email: "d@example.com", Name: "D"}, meta)
	require.NoError(t, err)
	assert.Equal(t, "member", saved.(*Person).Level)

	saved, err = a.Save(context.Background(), Person{Email: "e@example.com", Name: "E", Level: "admin"}, meta)
	require.NoError(t, err)
	assert.Equal(t, "admin", saved.(*Person).Level)
}

func testUniqueConstraint(t *testing.T, a storage.Accessor) {
	meta := PersonMetadata(t)
	seed(t, a, meta)

	_, err := a.Save(context.Background(), Person{Email: "ada@example.com", Name: "Impostor"}, meta)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrUniqueConstraint), "got %v", err)
}

func testFindByIDAbsent(t *testing.T, a storage.Accessor) {
	found, err := a.FindByID(context.Background(), int64(999), PersonMetadata(t))
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testDeleteByID(t *testing.T, a storage.Accessor) {
	meta := PersonMetadata(t)
	people := seed(t, a, meta)

	ok, err := a.DeleteByID(context.Background(), people[0].ID, meta)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.DeleteByID(context.Background(), people[0].ID, meta)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := a.FindByID(context.Background(), people[0].ID, meta)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testQueryOperators(t *testing.T, a storage.Accessor) {
	meta := PersonMetadata(t)
	seed(t, a, meta)

	assert.Equal(t, []string{"Ada"}, names(exec(t, a, meta, "findByEmail", "ada@example.com")))
	assert.ElementsMatch(t, []string{"Alan", "Grace"}, names(exec(t, a, meta, "findByAgeGreaterThan", 40)))
	assert.ElementsMatch(t, []string{"Alan", "Grace"}, names(exec(t, a, meta, "findByAgeGreaterThanEqual", 41)))
	assert.ElementsMatch(t, []string{"Linus"}, names(exec(t, a, meta, "findByAgeLessThan", 30)))
	assert.ElementsMatch(t, []string{"Ada", "Linus"}, names(exec(t, a, meta, "findByAgeLessThanEqual", 36)))
	assert.ElementsMatch(t, []string{"Ada", "Alan"}, names(exec(t, a, meta, "findByAgeBetween", []int{30, 41})))
	assert.ElementsMatch(t, []string{"Alan", "Grace", "Linus"}, names(exec(t, a, meta, "findByNameNot", "Ada")))
	assert.ElementsMatch(t, []string{"Ada", "Alan", "Linus"}, names(exec(t, a, meta, "findByEmailLike", "%@example.com")))
	assert.ElementsMatch(t, []string{"Grace"}, names(exec(t, a, meta, "findByEmailNotLike", "%@example.com")))
	assert.ElementsMatch(t, []string{"Ada", "Linus"}, names(exec(t, a, meta, "findByCityIn", []string{"London", "Helsinki"})))
	assert.ElementsMatch(t, []string{"Alan"}, names(exec(t, a, meta, "findByCityNotIn", []string{"London", "Helsinki"})))
	assert.ElementsMatch(t, []string{"Grace"}, names(exec(t, a, meta, "findByCityIsNull")))
	assert.Len(t, exec(t, a, meta, "findByCityIsNotNull"), 3)
	assert.Len(t, exec(t, a, meta, "countByAgeGreaterThan", 30), 3)
	assert.Empty(t, exec(t, a, meta, "existsByEmail", "nobody@example.com"))
	assert.Len(t, exec(t, a, meta, "findAll"), 4)
}

func testQueryConnectors(t *testing.T, a storage.Accessor) {
	meta := PersonMetadata(t)
	seed(t, a, meta)

	assert.ElementsMatch(t, []string{"Ada", "Alan"}, names(exec(t, a, meta, "findByEmailLikeAndAgeGreaterThan", "%@example.com", 30)))
	assert.ElementsMatch(t, []string{"Ada", "Grace"}, names(exec(t, a, meta, "findByNameOrAgeGreaterThan", "Ada", 80)))
	// (name = Linus AND age > 40) OR city IS NULL
	assert.ElementsMatch(t, []string{"Grace"}, names(exec(t, a, meta, "findByNameAndAgeGreaterThanOrCityIsNull", "Linus", 40)))
}

func testQueryDelete(t *testing.T, a storage.Accessor) {
	meta := PersonMetadata(t)
	seed(t, a, meta)

	deleted := exec(t, a, meta, "deleteByAgeLessThan", 40)
	assert.ElementsMatch(t, []string{"Ada", "Linus"}, names(deleted))

	all, err := a.FindAll(context.Background(), meta)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testQueryUpdate(t *testing.T, a storage.Accessor) {
	meta := PersonMetadata(t)
	seed(t, a, meta)

	updated := exec(t, a, meta, "updateByEmailLike", "%@example.com", map[string]interface{}{"level": "staff"})
	require.Len(t, updated, 3)
	for _, p := range updated {
		assert.Equal(t, "staff", p.Level)
	}
	assert.Len(t, exec(t, a, meta, "findByLevel", "staff"), 3)
	assert.Len(t, exec(t, a, meta, "findByLevel", "member"), 1)
}

func testQueryUpdateUnique(t *testing.T, a storage.Accessor) {
	meta := PersonMetadata(t)
	seed(t, a, meta)

	// Two matching rows cannot both take the same unique value.
	_, err := a.ExecuteQuery(context.Background(), query.MustParse("updateByAgeGreaterThan"),
		[]interface{}{40, map[string]interface{}{"email": "dup@example.com"}}, meta)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrUniqueConstraint), "got %v", err)
	assert.Empty(t, exec(t, a, meta, "findByEmail", "dup@example.com"))
	assert.Len(t, exec(t, a, meta, "findByEmail", "alan@example.com"), 1)

	// A single matching row may.
	updated := exec(t, a, meta, "updateByName", "Grace", map[string]interface{}{"email": "dup@example.com"})
	require.Len(t, updated, 1)
	assert.Equal(t, "dup@example.com", updated[0].Email)
}

func testCancelledContext(t *testing.T, a storage.Accessor) {
	meta := PersonMetadata(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.FindAll(ctx, meta)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = a.Save(ctx, Person{Email: "x@example.com"}, meta)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = a.ExecuteQuery(ctx, query.MustParse("findByName"), []interface{}{"x"}, meta)
	assert.ErrorIs(t, err, context.Canceled)
}
