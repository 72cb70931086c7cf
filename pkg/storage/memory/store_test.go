package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/repokit/pkg/storage"
	"github.com/leafsii/repokit/pkg/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.RunConformanceTests(t, func(t *testing.T) storage.Accessor {
		return New()
	})
}

func TestFindAllKeepsInsertionOrder(t *testing.T) {
	s := New()
	meta := storagetest.PersonMetadata(t)
	ctx := context.Background()

	for _, name := range []string{"c", "a", "b"} {
		_, err := s.Save(ctx, storagetest.Person{Email: name + "@x", Name: name}, meta)
		require.NoError(t, err)
	}
	all, err := s.FindAll(ctx, meta)
	require.NoError(t, err)
	got := []string{}
	for _, e := range all {
		got = append(got, e.(*storagetest.Person).Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestExplicitIdentifierAdvancesSequence(t *testing.T) {
	s := New()
	meta := storagetest.PersonMetadata(t)
	ctx := context.Background()

	_, err := s.Save(ctx, storagetest.Person{ID: 10, Email: "a@x"}, meta)
	require.NoError(t, err)
	saved, err := s.Save(ctx, storagetest.Person{Email: "b@x"}, meta)
	require.NoError(t, err)
	assert.Equal(t, int64(11), saved.(*storagetest.Person).ID)
}

func TestReturnedEntitiesAreCopies(t *testing.T) {
	s := New()
	meta := storagetest.PersonMetadata(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, storagetest.Person{Email: "a@x", Name: "A"}, meta)
	require.NoError(t, err)
	saved.(*storagetest.Person).Name = "mutated"

	found, err := s.FindByID(ctx, saved.(*storagetest.Person).ID, meta)
	require.NoError(t, err)
	assert.Equal(t, "A", found.(*storagetest.Person).Name)
}

func TestTruncate(t *testing.T) {
	s := New()
	meta := storagetest.PersonMetadata(t)
	ctx := context.Background()

	_, err := s.Save(ctx, storagetest.Person{Email: "a@x"}, meta)
	require.NoError(t, err)
	s.Truncate(meta)

	all, err := s.FindAll(ctx, meta)
	require.NoError(t, err)
	assert.Empty(t, all)
}
