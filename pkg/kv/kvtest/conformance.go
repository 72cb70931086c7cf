// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/repokit/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"SetGet", testSetGet},
		{"GetNonExistent", testGetNonExistent},
		{"DelExists", testDelExists},
		{"IncrBy", testIncrBy},
		{"HashOperations", testHashOperations},
		{"HashMissingKey", testHashMissingKey},
		{"HashDelLastField", testHashDelLastField},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func testSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "test:string", []byte("hello world")))

	got, err := store.Get(ctx, "test:string")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got)

	require.NoError(t, store.Set(ctx, "test:string", []byte("replaced")))
	got, err = store.Get(ctx, "test:string")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), got)
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	_, err := store.Get(context.Background(), "test:missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func testDelExists(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "test:a", []byte("1")))
	require.NoError(t, store.HSet(ctx, "test:b", "f", []byte("2")))

	n, err := store.Exists(ctx, "test:a", "test:b", "test:c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.Del(ctx, "test:a", "test:b", "test:c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.Exists(ctx, "test:a", "test:b")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testIncrBy(t *testing.T, store kv.Store) {
	ctx := context.Background()
	n, err := store.IncrBy(ctx, "test:counter", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.IncrBy(ctx, "test:counter", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	n, err = store.IncrBy(ctx, "test:counter", -2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	raw, err := store.Get(ctx, "test:counter")
	require.NoError(t, err)
	assert.Equal(t, "4", string(raw))
}

func testHashOperations(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:hash"
	require.NoError(t, store.HSet(ctx, key, "one", []byte("1")))
	require.NoError(t, store.HSet(ctx, key, "two", []byte("2")))
	require.NoError(t, store.HSet(ctx, key, "two", []byte("22")))

	got, err := store.HGet(ctx, key, "two")
	require.NoError(t, err)
	assert.Equal(t, []byte("22"), got)

	_, err = store.HGet(ctx, key, "three")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	n, err := store.HLen(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := store.HGetAll(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"one": []byte("1"), "two": []byte("22")}, all)

	n, err = store.HDel(ctx, key, "one", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testHashMissingKey(t *testing.T, store kv.Store) {
	ctx := context.Background()
	all, err := store.HGetAll(ctx, "test:nohash")
	require.NoError(t, err)
	assert.Empty(t, all)

	n, err := store.HLen(ctx, "test:nohash")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.HDel(ctx, "test:nohash", "f")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testHashDelLastField(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.HSet(ctx, "test:single", "f", []byte("v")))
	_, err := store.HDel(ctx, "test:single", "f")
	require.NoError(t, err)

	n, err := store.Exists(ctx, "test:single")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testPing(t *testing.T, store kv.Store) {
	assert.NoError(t, store.Ping(context.Background()))
}
