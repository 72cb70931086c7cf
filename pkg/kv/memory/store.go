// Package memory implements kv.Store in process memory.
package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/leafsii/repokit/pkg/kv"
)

var errWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// Store is an in-memory implementation of the kv.Store interface
type Store struct {
	mu      sync.RWMutex
	strings map[string][]byte
	hashes  map[string]map[string][]byte
}

// New creates an empty store.
func New() *Store {
	return &Store{
		strings: make(map[string][]byte),
		hashes:  make(map[string]map[string][]byte),
	}
}

// deleteKeyUnsafe removes a key from all data structures (must hold write lock)
func (s *Store) deleteKeyUnsafe(key string) {
	delete(s.strings, key)
	delete(s.hashes, key)
}

func (s *Store) existsUnsafe(key string) bool {
	if _, ok := s.strings[key]; ok {
		return true
	}
	_, ok := s.hashes[key]
	return ok
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// String operations

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteKeyUnsafe(key)
	s.strings[key] = clone(value)
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.strings[key]
	if !exists {
		return nil, kv.ErrNotFound
	}
	return clone(value), nil
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, key := range keys {
		if s.existsUnsafe(key) {
			deleted++
		}
		s.deleteKeyUnsafe(key)
	}
	return deleted, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int64
	for _, key := range keys {
		if s.existsUnsafe(key) {
			exists++
		}
	}
	return exists, nil
}

// Counter operations

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if value, exists := s.strings[key]; exists {
		parsed, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			return 0, err
		}
		current = parsed
	} else if _, isHash := s.hashes[key]; isHash {
		return 0, errWrongType
	}

	newValue := current + n
	s.strings[key] = []byte(strconv.FormatInt(newValue, 10))
	return newValue, nil
}

// Hash operations

func (s *Store) HSet(ctx context.Context, key string, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hashes[key] == nil {
		s.deleteKeyUnsafe(key) // Clear other data types
		s.hashes[key] = make(map[string][]byte)
	}
	s.hashes[key][field] = clone(value)
	return nil
}

func (s *Store) HGet(ctx context.Context, key string, field string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.hashes[key][field]
	if !exists {
		return nil, kv.ErrNotFound
	}
	return clone(value), nil
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, exists := s.hashes[key]
	if !exists {
		return 0, nil
	}
	var deleted int64
	for _, field := range fields {
		if _, ok := hash[field]; ok {
			delete(hash, field)
			deleted++
		}
	}
	// Redis drops a hash once its last field is gone.
	if len(hash) == 0 {
		delete(s.hashes, key)
	}
	return deleted, nil
}

// HGetAll returns an empty map for a missing key.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash := s.hashes[key]
	out := make(map[string][]byte, len(hash))
	for field, value := range hash {
		out[field] = clone(value)
	}
	return out, nil
}

func (s *Store) HLen(ctx context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.hashes[key])), nil
}

// Ping always returns nil for the in-memory store (always available)
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close drops all data.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.strings = make(map[string][]byte)
	s.hashes = make(map[string]map[string][]byte)
	return nil
}

var _ kv.Store = (*Store)(nil)
