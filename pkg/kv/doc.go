// Package kv provides a Redis-like key-value store abstraction with in-memory
// and Redis-backed implementations.
//
// Backends register themselves with RegisterBackend from their package init,
// so a program imports the ones it wants:
//
//	import (
//		_ "github.com/leafsii/repokit/pkg/kv/memory"
//		_ "github.com/leafsii/repokit/pkg/kv/redis"
//	)
//
//	store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendRedis, RedisURL: url})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
// The in-memory implementation gives tests and development the same
// semantics as Redis without a server.
package kv
