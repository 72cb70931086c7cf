// Package memory is an in-process storage backend. It is the default for
// development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/query"
	"github.com/leafsii/repokit/pkg/storage"
)

// table holds the rows of one entity in insertion order.
type table struct {
	rows  map[string]storage.Record // id key -> record
	order []string
	seq   int64
}

func newTable() *table {
	return &table{rows: make(map[string]storage.Record)}
}

func (t *table) remove(key string) {
	delete(t.rows, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// Store implements storage.Accessor in memory.
type Store struct {
	mu      sync.RWMutex
	tables  map[string]*table // tableName -> rows
	matcher storage.Matcher
}

// New creates an empty store.
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

// table returns the named table, creating it. Caller holds the write lock.
func (s *Store) table(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = newTable()
		s.tables[name] = t
	}
	return t
}

// FindAll returns every row in insertion order.
func (s *Store) FindAll(ctx context.Context, meta *metadata.EntityMetadata) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[meta.TableName]
	if !ok {
		return []interface{}{}, nil
	}
	return decodeAll(meta, t, t.order)
}

// FindByID retrieves a single row by its identifier.
func (s *Store) FindByID(ctx context.Context, id interface{}, meta *metadata.EntityMetadata) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	col, err := storage.IdentifierColumn(meta)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[meta.TableName]
	if !ok {
		return nil, nil
	}
	record, ok := t.rows[storage.IDKey(id, col)]
	if !ok {
		return nil, nil
	}
	return meta.FromRecord(storage.CopyRecord(record))
}

// Save inserts the entity, or replaces the row with the same identifier.
func (s *Store) Save(ctx context.Context, entity interface{}, meta *metadata.EntityMetadata) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	col, err := storage.IdentifierColumn(meta)
	if err != nil {
		return nil, err
	}
	record, err := meta.ToRecord(entity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(meta.TableName)
	assigned, err := storage.AssignIdentifier(record, col, func() (int64, error) {
		t.seq++
		return t.seq, nil
	})
	if err != nil {
		return nil, &storage.StorageError{Op: "save", Table: meta.TableName, Err: err}
	}
	key := storage.IDKey(record[col.Name], col)
	_, exists := t.rows[key]
	if assigned || !exists {
		storage.ApplyDefaults(record, meta)
	}
	if err := storage.CheckUnique(record, meta, t.rows, key); err != nil {
		return nil, &storage.StorageError{Op: "save", Table: meta.TableName, Err: err}
	}
	bumpSequence(t, record[col.Name])

	if !exists {
		t.order = append(t.order, key)
	}
	t.rows[key] = record
	return meta.FromRecord(storage.CopyRecord(record))
}

// DeleteByID removes a row, reporting whether it existed.
func (s *Store) DeleteByID(ctx context.Context, id interface{}, meta *metadata.EntityMetadata) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	col, err := storage.IdentifierColumn(meta)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[meta.TableName]
	if !ok {
		return false, nil
	}
	key := storage.IDKey(id, col)
	if _, ok := t.rows[key]; !ok {
		return false, nil
	}
	t.remove(key)
	return true, nil
}

// ExecuteQuery evaluates a compiled method against the table.
func (s *Store) ExecuteQuery(ctx context.Context, method *query.ParsedMethod, args []interface{}, meta *metadata.EntityMetadata) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plan, err := storage.Compile(method, args, meta)
	if err != nil {
		return nil, err
	}

	if !plan.Action.Mutates() {
		s.mu.RLock()
		defer s.mu.RUnlock()
		t, ok := s.tables[meta.TableName]
		if !ok {
			return []interface{}{}, nil
		}
		return decodeAll(meta, t, s.matching(t, plan.Where))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[meta.TableName]
	if !ok {
		return []interface{}{}, nil
	}
	keys := s.matching(t, plan.Where)

	switch plan.Action {
	case query.ActionDelete:
		out, err := decodeAll(meta, t, keys)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			t.remove(k)
		}
		return out, nil
	default:
		// Rows updated earlier in the batch are checked with their new values.
		others := make(map[string]storage.Record, len(t.rows))
		for k, rec := range t.rows {
			others[k] = rec
		}
		updated := make(map[string]storage.Record, len(keys))
		for _, k := range keys {
			rec := storage.CopyRecord(t.rows[k])
			for c, v := range plan.Changes {
				rec[c] = v
			}
			if err := storage.CheckUnique(rec, meta, others, k); err != nil {
				return nil, &storage.StorageError{Op: "update", Table: meta.TableName, Err: err}
			}
			others[k] = rec
			updated[k] = rec
		}
		for k, rec := range updated {
			t.rows[k] = rec
		}
		return decodeAll(meta, t, keys)
	}
}

// Truncate drops every row of the entity's table.
func (s *Store) Truncate(meta *metadata.EntityMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, meta.TableName)
}

func (s *Store) matching(t *table, where *storage.Filters) []string {
	var keys []string
	for _, k := range t.order {
		if s.matcher.Matches(t.rows[k], where) {
			keys = append(keys, k)
		}
	}
	return keys
}

func decodeAll(meta *metadata.EntityMetadata, t *table, keys []string) ([]interface{}, error) {
	out := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		e, err := meta.FromRecord(storage.CopyRecord(t.rows[k]))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// bumpSequence keeps generated integer identifiers above explicit ones.
func bumpSequence(t *table, id interface{}) {
	if n, ok := storage.AsInt64(id); ok && n > t.seq {
		t.seq = n
	}
}

var _ storage.Accessor = (*Store)(nil)
