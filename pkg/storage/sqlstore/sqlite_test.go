package sqlstore

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/repokit/pkg/storage"
	"github.com/leafsii/repokit/pkg/storage/storagetest"
)

func TestSQLiteConformance(t *testing.T) {
	storagetest.RunConformanceTests(t, func(t *testing.T) storage.Accessor {
		db, err := sql.Open("sqlite3", ":memory:")
		require.NoError(t, err)
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		t.Cleanup(func() { db.Close() })

		store := New(db, SQLite, nil)
		ctx := context.Background()
		require.NoError(t, store.CreateTable(ctx, storagetest.PersonMetadata(t)))
		require.NoError(t, store.CreateTable(ctx, storagetest.TagMetadata(t)))
		return store
	})
}
