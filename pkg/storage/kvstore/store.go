// Package kvstore is a storage backend over a kv.Store. Each table is one
// hash of JSON rows keyed by identifier, with a counter for generated
// integer identifiers. Queries are evaluated in process with
// storage.Matcher.
package kvstore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/leafsii/repokit/pkg/kv"
	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/query"
	"github.com/leafsii/repokit/pkg/storage"
)

// DefaultPrefix namespaces the keys written by a Store.
const DefaultPrefix = "repokit:"

// Store implements storage.Accessor on a kv.Store.
type Store struct {
	kv     kv.Store
	prefix string

	// mu serialises writes issued through this Store. Writers in other
	// processes are not coordinated.
	mu      sync.Mutex
	matcher storage.Matcher
}

// New wraps store. An empty prefix selects DefaultPrefix.
func New(store kv.Store, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{kv: store, prefix: prefix}
}

func (s *Store) rowsKey(meta *metadata.EntityMetadata) string {
	return s.prefix + meta.TableName + ":rows"
}

func (s *Store) seqKey(meta *metadata.EntityMetadata) string {
	return s.prefix + meta.TableName + ":seq"
}

type row struct {
	key    string
	record storage.Record
}

// load reads every row of the table ordered by identifier.
func (s *Store) load(ctx context.Context, meta *metadata.EntityMetadata) ([]row, error) {
	raw, err := s.kv.HGetAll(ctx, s.rowsKey(meta))
	if err != nil {
		return nil, &storage.StorageError{Op: "load", Table: meta.TableName, Err: err}
	}
	rows := make([]row, 0, len(raw))
	for key, data := range raw {
		record, err := decodeRecord(data, meta)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row{key: key, record: record})
	}

	id, hasID := meta.ID()
	sort.Slice(rows, func(i, j int) bool {
		if hasID {
			if c, ok := storage.Compare(rows[i].record[id.Name], rows[j].record[id.Name]); ok {
				return c < 0
			}
		}
		return rows[i].key < rows[j].key
	})
	return rows, nil
}

func decode(meta *metadata.EntityMetadata, rows []row) ([]interface{}, error) {
	out := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		e, err := meta.FromRecord(r.record)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// FindAll returns every row ordered by identifier.
func (s *Store) FindAll(ctx context.Context, meta *metadata.EntityMetadata) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.load(ctx, meta)
	if err != nil {
		return nil, err
	}
	return decode(meta, rows)
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
	data, err := s.kv.HGet(ctx, s.rowsKey(meta), storage.IDKey(id, col))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &storage.StorageError{Op: "find", Table: meta.TableName, Err: err}
	}
	record, err := decodeRecord(data, meta)
	if err != nil {
		return nil, err
	}
	return meta.FromRecord(record)
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

	assigned, err := storage.AssignIdentifier(record, col, func() (int64, error) {
		return s.kv.IncrBy(ctx, s.seqKey(meta), 1)
	})
	if err != nil {
		return nil, &storage.StorageError{Op: "save", Table: meta.TableName, Err: err}
	}

	rows, err := s.load(ctx, meta)
	if err != nil {
		return nil, err
	}
	key := storage.IDKey(record[col.Name], col)
	others := make(map[string]storage.Record, len(rows))
	exists := false
	for _, r := range rows {
		others[r.key] = r.record
		exists = exists || r.key == key
	}
	if assigned || !exists {
		storage.ApplyDefaults(record, meta)
	}
	if err := storage.CheckUnique(record, meta, others, key); err != nil {
		return nil, &storage.StorageError{Op: "save", Table: meta.TableName, Err: err}
	}
	if !assigned {
		if err := s.bumpSequence(ctx, meta, record[col.Name]); err != nil {
			return nil, &storage.StorageError{Op: "save", Table: meta.TableName, Err: err}
		}
	}

	if err := s.put(ctx, meta, key, record); err != nil {
		return nil, err
	}
	return meta.FromRecord(record)
}

func (s *Store) put(ctx context.Context, meta *metadata.EntityMetadata, key string, record storage.Record) error {
	data, err := encodeRecord(record)
	if err != nil {
		return &storage.StorageError{Op: "save", Table: meta.TableName, Err: err}
	}
	if err := s.kv.HSet(ctx, s.rowsKey(meta), key, data); err != nil {
		return &storage.StorageError{Op: "save", Table: meta.TableName, Err: err}
	}
	return nil
}

// bumpSequence keeps generated integer identifiers above explicit ones.
func (s *Store) bumpSequence(ctx context.Context, meta *metadata.EntityMetadata, id interface{}) error {
	n, ok := storage.AsInt64(id)
	if !ok {
		return nil
	}
	var current int64
	raw, err := s.kv.Get(ctx, s.seqKey(meta))
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return err
	default:
		if current, err = strconv.ParseInt(string(raw), 10, 64); err != nil {
			return err
		}
	}
	if n > current {
		_, err = s.kv.IncrBy(ctx, s.seqKey(meta), n-current)
	}
	return err
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

	n, err := s.kv.HDel(ctx, s.rowsKey(meta), storage.IDKey(id, col))
	if err != nil {
		return false, &storage.StorageError{Op: "delete", Table: meta.TableName, Err: err}
	}
	return n > 0, nil
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

	if plan.Action.Mutates() {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	rows, err := s.load(ctx, meta)
	if err != nil {
		return nil, err
	}
	var matched []row
	for _, r := range rows {
		if s.matcher.Matches(r.record, plan.Where) {
			matched = append(matched, r)
		}
	}

	switch plan.Action {
	case query.ActionDelete:
		if len(matched) > 0 {
			keys := make([]string, len(matched))
			for i, r := range matched {
				keys[i] = r.key
			}
			if _, err := s.kv.HDel(ctx, s.rowsKey(meta), keys...); err != nil {
				return nil, &storage.StorageError{Op: "delete", Table: meta.TableName, Err: err}
			}
		}
	case query.ActionUpdate:
		others := make(map[string]storage.Record, len(rows))
		for _, r := range rows {
			others[r.key] = r.record
		}
		for i := range matched {
			rec := storage.CopyRecord(matched[i].record)
			for c, v := range plan.Changes {
				rec[c] = v
			}
			if err := storage.CheckUnique(rec, meta, others, matched[i].key); err != nil {
				return nil, &storage.StorageError{Op: "update", Table: meta.TableName, Err: err}
			}
			others[matched[i].key] = rec
			matched[i].record = rec
		}
		for _, r := range matched {
			if err := s.put(ctx, meta, r.key, r.record); err != nil {
				return nil, err
			}
		}
	}
	return decode(meta, matched)
}

var _ storage.Accessor = (*Store)(nil)
