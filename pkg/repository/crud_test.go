package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/repokit/pkg/metadata"
)

func TestCrudRoundTrip(t *testing.T) {
	repo := newUsers(t)
	ctx := context.Background()

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	saved, err := repo.Save(ctx, &user{Email: "ada@example.com", Name: "Ada", Age: 36})
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	found, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, found)

	missing, err := repo.Crud.FindByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	ok, err := repo.Delete(ctx, saved)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DeleteByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCrudDeleteWithoutIdentifier(t *testing.T) {
	repo := newUsers(t)

	_, err := repo.Delete(context.Background(), &user{Email: "x@example.com"})
	var ie *metadata.IdentifierError
	assert.ErrorAs(t, err, &ie)
}

func TestDerivedMethods(t *testing.T) {
	repo := newUsers(t)
	people := seedUsers(t, repo)
	ctx := context.Background()

	ada, err := repo.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, ada)
	assert.Equal(t, people[0].ID, ada.ID)

	nobody, err := repo.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, nobody)

	older, err := repo.FindByAgeGreaterThan(ctx, 40)
	require.NoError(t, err)
	assert.Len(t, older, 2)

	values, err := repo.FindByNameOrCityIsNull(ctx, "Ada")
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.ElementsMatch(t, []string{"Ada", "Grace"}, []string{values[0].Name, values[1].Name})

	active, err := repo.CountByActive(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	exists, err := repo.ExistsByEmail(ctx, "alan@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.ExistsByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	between, err := repo.FindByAgeBetweenAndNameLike(ctx, []int{30, 50}, "A%")
	require.NoError(t, err)
	assert.Len(t, between, 2)

	byID, err := repo.FindByID(ctx, people[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", byID.Name)
}

func TestDerivedMutations(t *testing.T) {
	repo := newUsers(t)
	seedUsers(t, repo)
	ctx := context.Background()

	updated, err := repo.UpdateByEmail(ctx, "alan@example.com", map[string]interface{}{"active": true, "age": 42})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.True(t, updated[0].Active)
	assert.Equal(t, 42, updated[0].Age)

	deleted, err := repo.DeleteByAgeLessThan(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUnroutableMethodFailsAtCallTime(t *testing.T) {
	repo := newUsers(t)

	n, err := repo.CountAll(context.Background())
	assert.Zero(t, n)
	var ue *UnsupportedOperationError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "countAll", ue.Method)
}

func TestIdentityMethods(t *testing.T) {
	rc := newTestContext(t, Config{}, nil)
	repo := MustGet[userRepository](rc)
	other := MustGet[nestedRepository](rc)

	assert.Equal(t, "userRepository[user]", repo.String())
	assert.True(t, repo.Equal(repo))
	assert.False(t, repo.Equal(other))
	assert.False(t, repo.Equal(nil))
	assert.Equal(t, "users", repo.RepositoryMetadata().Entity.TableName)
}

func TestUnboundCrud(t *testing.T) {
	var repo userRepository

	_, err := repo.FindAll(context.Background())
	assert.ErrorIs(t, err, ErrNotBound)
	assert.Equal(t, "unbound repository of repository.user", repo.String())
	assert.Nil(t, repo.RepositoryMetadata())
	assert.False(t, repo.Equal(&repo))

	_, ok := DispatcherOf(&repo)
	assert.False(t, ok)
}

func TestNestedCrudIsBound(t *testing.T) {
	rc := newTestContext(t, Config{}, nil)
	repo := MustGet[nestedRepository](rc)
	ctx := context.Background()

	saved, err := repo.Save(ctx, &user{Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	found, err := repo.FindByName(ctx, "Ada")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, saved.ID, found[0].ID)

	d, ok := DispatcherOf(repo)
	require.True(t, ok)
	assert.True(t, d.Equal(repo))
	assert.Equal(t, "nestedRepository[user]", repo.String())
}
