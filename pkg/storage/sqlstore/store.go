// Package sqlstore is a storage backend over database/sql. It speaks the
// PostgreSQL dialect (through pgx) and the SQLite dialect (through
// go-sqlite3); callers open the *sql.DB with the driver of their choice.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/query"
	"github.com/leafsii/repokit/pkg/storage"
)

// Store implements storage.Accessor on a SQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	log     *zap.SugaredLogger
}

// New wraps db. A nil logger disables statement logging.
func New(db *sql.DB, dialect Dialect, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: db, dialect: dialect, log: logger}
}

// Dialect returns the dialect statements are rendered in.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// CreateTable creates the entity's table when it does not exist.
func (s *Store) CreateTable(ctx context.Context, meta *metadata.EntityMetadata) error {
	stmt := s.dialect.CreateTableSQL(meta)
	s.log.Debugw("create table", "table", meta.TableName)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return convertError("create", meta.TableName, err)
	}
	return nil
}

// FindAll returns every row ordered by identifier.
func (s *Store) FindAll(ctx context.Context, meta *metadata.EntityMetadata) ([]interface{}, error) {
	stmt, err := newBuilder(s.dialect, meta).selectWhere(nil)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "find", meta, stmt)
}

// FindByID retrieves a single row by its identifier.
func (s *Store) FindByID(ctx context.Context, id interface{}, meta *metadata.EntityMetadata) (interface{}, error) {
	col, err := storage.IdentifierColumn(meta)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, "find", meta, newBuilder(s.dialect, meta).selectByID(col, id))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Save inserts the entity, or replaces the row with the same identifier.
// Zero integer identifiers are left to the database, zero string and UUID
// identifiers are generated before the insert.
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

	omitID := false
	assigned, err := storage.AssignIdentifier(record, col, func() (int64, error) {
		omitID = true
		return 0, nil
	})
	if err != nil {
		return nil, &storage.StorageError{Op: "save", Table: meta.TableName, Err: err}
	}
	if assigned {
		storage.ApplyDefaults(record, meta)
	}

	rows, err := s.query(ctx, "save", meta, newBuilder(s.dialect, meta).upsert(record, col, omitID))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		// ON CONFLICT DO NOTHING returns no row for an unchanged entity.
		return s.FindByID(ctx, record[col.Name], meta)
	}
	return rows[0], nil
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
	stmt := newBuilder(s.dialect, meta).deleteByID(col, id)
	s.log.Debugw("exec", "sql", stmt.sql, "args", len(stmt.args))
	res, err := s.db.ExecContext(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return false, convertError("delete", meta.TableName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, convertError("delete", meta.TableName, err)
	}
	return n > 0, nil
}

// ExecuteQuery renders a compiled method as one statement.
func (s *Store) ExecuteQuery(ctx context.Context, method *query.ParsedMethod, args []interface{}, meta *metadata.EntityMetadata) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plan, err := storage.Compile(method, args, meta)
	if err != nil {
		return nil, err
	}

	b := newBuilder(s.dialect, meta)
	var stmt statement
	switch plan.Action {
	case query.ActionDelete:
		stmt, err = b.deleteWhere(plan.Where)
	case query.ActionUpdate:
		stmt, err = b.updateWhere(plan.Changes, plan.Where)
	default:
		stmt, err = b.selectWhere(plan.Where)
	}
	if err != nil {
		return nil, err
	}
	return s.query(ctx, plan.Action.String(), meta, stmt)
}

func (s *Store) query(ctx context.Context, op string, meta *metadata.EntityMetadata, stmt statement) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.log.Debugw("query", "op", op, "sql", stmt.sql, "args", len(stmt.args))

	rows, err := s.db.QueryContext(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, convertError(op, meta.TableName, err)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, convertError(op, meta.TableName, err)
	}
	out := make([]interface{}, 0, len(records))
	for _, r := range records {
		e, err := meta.FromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: decode %s: %w", meta.TableName, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			record[col] = values[i]
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

var _ storage.Accessor = (*Store)(nil)
