package repository

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/query"
)

func build(t *testing.T, v interface{}) (*Metadata, error) {
	t.Helper()
	return BuildMetadata(reflect.TypeOf(v), metadata.NewExtractor(metadata.DefaultNaming{}))
}

func TestBuildMetadata(t *testing.T) {
	meta, err := build(t, userRepository{})
	require.NoError(t, err)

	assert.Equal(t, "userRepository", meta.Name())
	assert.Equal(t, reflect.TypeOf(user{}), meta.EntityType)
	assert.Equal(t, reflect.TypeOf(int64(0)), meta.IDType)
	assert.Equal(t, "users", meta.Entity.TableName)
	assert.Equal(t, BaseMethodNames(), meta.BaseMethodNames)
	assert.Len(t, meta.Methods, 10)

	routable := map[string]bool{}
	for _, m := range meta.Methods {
		routable[m.Name] = m.Routable
	}
	assert.True(t, routable["findByEmail"])
	assert.True(t, routable["updateByEmail"])
	assert.True(t, routable["findByID"])
	assert.False(t, routable["countAll"])

	parsed := meta.ParsedMethods["findByAgeBetweenAndNameLike"]
	require.NotNil(t, parsed)
	assert.Equal(t, "FIND WHERE age BETWEEN $0 AND name LIKE $1", parsed.String())
	assert.Equal(t, query.ActionCount, meta.ParsedMethods["countAll"].Action)
	require.Contains(t, meta.ParsedMethods, "findByID")
	assert.Equal(t, query.ActionFind, meta.ParsedMethods["findByID"].Action)
}

type baseFields struct {
	Crud[user, int64]

	FindAll    func(ctx context.Context) ([]*user, error)
	Save       func(ctx context.Context, u *user) (*user, error)
	DeleteById func(ctx context.Context, id int64) (bool, error)
}

func TestBuildMetadataParsesBaseMethods(t *testing.T) {
	meta, err := build(t, baseFields{})
	require.NoError(t, err)

	require.Contains(t, meta.ParsedMethods, "findAll")
	assert.Equal(t, "FIND", meta.ParsedMethods["findAll"].String())
	require.Contains(t, meta.ParsedMethods, "deleteById")
	assert.Equal(t, query.ActionDelete, meta.ParsedMethods["deleteById"].Action)
	assert.NotContains(t, meta.ParsedMethods, "save")
	for _, m := range meta.Methods {
		assert.True(t, m.Routable, m.Name)
	}
}

func TestBuildMetadataAcceptsPointerType(t *testing.T) {
	meta, err := BuildMetadata(reflect.TypeOf(&userRepository{}), metadata.NewExtractor(nil))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(userRepository{}), meta.RepositoryType)
}

type nestedBase struct {
	Crud[user, int64]
}

type nestedRepository struct {
	nestedBase

	FindByName func(ctx context.Context, name string) ([]*user, error)
}

func TestBuildMetadataFindsNestedCrud(t *testing.T) {
	meta, err := build(t, nestedRepository{})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, meta.crudIndex)
	assert.Equal(t, reflect.TypeOf(user{}), meta.EntityType)
}

type noCrud struct {
	FindByName func(ctx context.Context, name string) ([]*user, error)
}

type interfaceEntity struct {
	Crud[interface{ TableName() string }, int64]
}

type interfaceID struct {
	Crud[user, any]
}

type noContext struct {
	Crud[user, int64]
	FindByName func(name string) ([]*user, error)
}

type noError struct {
	Crud[user, int64]
	FindByName func(ctx context.Context, name string) []*user
}

type variadic struct {
	Crud[user, int64]
	FindByName func(ctx context.Context, names ...string) ([]*user, error)
}

type badResult struct {
	Crud[user, int64]
	FindByName func(ctx context.Context, name string) (string, error)
}

type wrongArity struct {
	Crud[user, int64]
	FindByNameAndAge func(ctx context.Context, name string) ([]*user, error)
}

type unknownField struct {
	Crud[user, int64]
	FindByNickname func(ctx context.Context, nick string) ([]*user, error)
}

type updateWithoutChanges struct {
	Crud[user, int64]
	UpdateByName func(ctx context.Context, name string) (int, error)
}

type badPrefix struct {
	Crud[user, int64]
	ListUsers func(ctx context.Context) ([]*user, error)
}

func TestBuildMetadataErrors(t *testing.T) {
	tests := []struct {
		name string
		repo interface{}
	}{
		{"missing crud", noCrud{}},
		{"interface entity", interfaceEntity{}},
		{"interface id", interfaceID{}},
		{"no context", noContext{}},
		{"no error", noError{}},
		{"variadic", variadic{}},
		{"bad result", badResult{}},
		{"wrong arity", wrongArity{}},
		{"unknown field", unknownField{}},
		{"update without changes", updateWithoutChanges{}},
		{"not a struct", 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(t, tt.repo)
			require.Error(t, err)
			var me *metadata.MetadataError
			assert.ErrorAs(t, err, &me)
		})
	}
}

func TestBuildMetadataParseErrorAtBuildTime(t *testing.T) {
	_, err := build(t, badPrefix{})
	require.Error(t, err)
	var pe *query.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "listUsers", pe.Method)
}

func TestIsBase(t *testing.T) {
	meta, err := build(t, userRepository{})
	require.NoError(t, err)
	for _, name := range []string{"findAll", "findById", "findByID", "save", "delete", "deleteById", "deleteByID"} {
		assert.True(t, meta.IsBase(name), name)
	}
	assert.False(t, meta.IsBase("findByEmail"))
}

func TestParameterTypes(t *testing.T) {
	meta, err := build(t, userRepository{})
	require.NoError(t, err)

	tests := []struct {
		method string
		want   []reflect.Type
	}{
		{"findAll", []reflect.Type{}},
		{"findByID", []reflect.Type{reflect.TypeOf(int64(0))}},
		{"deleteById", []reflect.Type{reflect.TypeOf(int64(0))}},
		{"save", []reflect.Type{reflect.TypeOf(user{})}},
		{"FindByAgeBetweenAndNameLike", []reflect.Type{reflect.TypeOf([]int(nil)), reflect.TypeOf("")}},
		{"updateByEmail", []reflect.Type{reflect.TypeOf(""), changesType}},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got, ok := meta.ParameterTypes(tt.method)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := meta.ParameterTypes("String")
	assert.False(t, ok)
	_, ok = meta.ParameterTypes("purgeEverything")
	assert.False(t, ok)
}
