package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/repokit/pkg/kv"
	"github.com/leafsii/repokit/pkg/kv/kvtest"
)

func TestRedisStoreMiniredis(t *testing.T) {
	kvtest.RunConformanceTests(t, func(t *testing.T) kv.Store {
		mr := miniredis.RunT(t)
		store, err := New(mr.Addr())
		require.NoError(t, err)
		return store
	})
}

func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping Redis tests")
	}

	kvtest.RunConformanceTests(t, func(t *testing.T) kv.Store {
		store, err := New(redisURL)
		require.NoError(t, err)
		_, err = store.Del(context.Background(),
			"test:string", "test:missing", "test:a", "test:b", "test:c", "test:counter",
			"test:hash", "test:nohash", "test:single")
		require.NoError(t, err)
		return store
	})
}

func TestRegisteredBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendRedis, RedisURL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &Store{}, store)

	_, err = kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendRedis})
	assert.Error(t, err)
}

func TestUnreachableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(addr)
	require.Error(t, err)
	assert.ErrorIs(t, err, kv.ErrBackendUnavailable)
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, IsConnectionError(nil))
	assert.False(t, IsConnectionError(context.Canceled))
	assert.True(t, IsConnectionError(errors.New("dial tcp: connection refused")))
	assert.False(t, IsConnectionError(errors.New("WRONGTYPE Operation against a key")))
}
