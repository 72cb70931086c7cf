package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/leafsii/repokit/pkg/storage"
)

const pgUniqueViolation = "23505"

// convertError maps driver errors onto the storage error taxonomy and
// attaches the operation.
func convertError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		err = fmt.Errorf("%w: %s", storage.ErrUniqueConstraint, pgErr.Detail)
	} else if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		// go-sqlite3 reports constraint failures through its message only.
		err = fmt.Errorf("%w: %s", storage.ErrUniqueConstraint, err.Error())
	}
	return &storage.StorageError{Op: op, Table: table, Err: err}
}
