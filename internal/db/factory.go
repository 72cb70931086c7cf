// Package db opens the storage backend selected by configuration and
// hands it to repository contexts.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/leafsii/repokit/pkg/kv"
	_ "github.com/leafsii/repokit/pkg/kv/memory"
	_ "github.com/leafsii/repokit/pkg/kv/redis"
	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/storage"
	"github.com/leafsii/repokit/pkg/storage/kvstore"
	"github.com/leafsii/repokit/pkg/storage/memory"
	"github.com/leafsii/repokit/pkg/storage/sqlstore"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendKV       = "kv"
)

// Config holds database configuration
type Config struct {
	Type         string // memory, postgres, sqlite, redis, kv
	DSN          string // Postgres DSN, SQLite path or Redis URL
	KeyPrefix    string // key prefix for redis and kv
	MaxOpenConns int    // SQL backends only
	MaxIdleConns int    // SQL backends only
}

// Database is an opened storage backend.
type Database struct {
	Backend  string
	Accessor storage.Accessor

	sql *sql.DB
	sqs *sqlstore.Store
	kv  kv.Store
	log *zap.SugaredLogger
}

// Open connects to the backend named by cfg.Type. An empty type opens the
// in-memory store.
func Open(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (*Database, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Type == "" {
		cfg.Type = BackendMemory
	}
	d := &Database{Backend: cfg.Type, log: logger}

	switch cfg.Type {
	case BackendMemory:
		d.Accessor = memory.New()
	case BackendPostgres, BackendSQLite:
		dialect, err := sqlstore.DialectByName(cfg.Type)
		if err != nil {
			return nil, err
		}
		driver, dsn := "pgx", cfg.DSN
		if dialect == sqlstore.SQLite {
			driver = "sqlite3"
		}
		if dsn == "" {
			return nil, fmt.Errorf("db: %s backend needs a DSN", cfg.Type)
		}
		conn, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db: open %s: %w", cfg.Type, err)
		}
		configurePool(conn, dialect, dsn, cfg)
		if err := conn.PingContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("db: connect %s: %w", cfg.Type, err)
		}
		d.sql = conn
		d.sqs = sqlstore.New(conn, dialect, logger)
		d.Accessor = d.sqs
	case BackendRedis, BackendKV:
		kcfg := kv.Config{Backend: kv.BackendMemory}
		if cfg.Type == BackendRedis {
			kcfg = kv.Config{Backend: kv.BackendRedis, RedisURL: cfg.DSN}
		}
		store, err := kv.NewStoreFromConfig(kcfg)
		if err != nil {
			return nil, fmt.Errorf("db: open %s: %w", cfg.Type, err)
		}
		d.kv = store
		d.Accessor = kvstore.New(store, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("db: unsupported database type: %s", cfg.Type)
	}

	logger.Infow("storage backend selected", "backend", cfg.Type)
	return d, nil
}

func configurePool(conn *sql.DB, dialect sqlstore.Dialect, dsn string, cfg Config) {
	if dialect == sqlstore.SQLite && (dsn == ":memory:" || dsn == "file::memory:") {
		// Each connection to an in-memory SQLite database is a new database.
		conn.SetMaxOpenConns(1)
		return
	}
	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
}

// Accessors returns the provider handed to repository.NewContext.
func (d *Database) Accessors() storage.AccessorProvider {
	return storage.Static(d.Accessor)
}

// Migrate creates the tables of entities on SQL backends. Other backends
// need no schema.
func (d *Database) Migrate(ctx context.Context, entities ...*metadata.EntityMetadata) error {
	if d.sqs == nil {
		return nil
	}
	for _, meta := range entities {
		if err := d.sqs.CreateTable(ctx, meta); err != nil {
			return fmt.Errorf("db: migrate %s: %w", meta.TableName, err)
		}
		d.log.Debugw("table ready", "table", meta.TableName)
	}
	return nil
}

// Ping checks that the backend is reachable.
func (d *Database) Ping(ctx context.Context) error {
	switch {
	case d.sql != nil:
		return d.sql.PingContext(ctx)
	case d.kv != nil:
		return d.kv.Ping(ctx)
	}
	return nil
}

func (d *Database) Close() error {
	var errs []error
	if d.sql != nil {
		errs = append(errs, d.sql.Close())
	}
	if d.kv != nil {
		errs = append(errs, d.kv.Close())
	}
	return errors.Join(errs...)
}
