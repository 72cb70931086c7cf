// Package storage defines the contract repositories use to reach a
// backing store, plus the filter model and record matcher shared by the
// bundled backends.
package storage

import (
	"context"
	"errors"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/query"
)

// Accessor executes repository operations against one store. Entities are
// returned as pointers to the entity type.
type Accessor interface {
	FindAll(ctx context.Context, meta *metadata.EntityMetadata) ([]interface{}, error)
	// FindByID returns nil, nil when no entity has the identifier.
	FindByID(ctx context.Context, id interface{}, meta *metadata.EntityMetadata) (interface{}, error)
	Save(ctx context.Context, entity interface{}, meta *metadata.EntityMetadata) (interface{}, error)
	DeleteByID(ctx context.Context, id interface{}, meta *metadata.EntityMetadata) (bool, error)
	// ExecuteQuery runs a compiled method. FIND, COUNT and EXISTS return the
	// matching entities, DELETE the removed ones and UPDATE the rows after
	// the change.
	ExecuteQuery(ctx context.Context, method *query.ParsedMethod, args []interface{}, meta *metadata.EntityMetadata) ([]interface{}, error)
}

// AccessorProvider returns the accessor serving an entity.
type AccessorProvider func(meta *metadata.EntityMetadata) (Accessor, error)

// Static serves every entity from the same accessor.
func Static(a Accessor) AccessorProvider {
	return func(*metadata.EntityMetadata) (Accessor, error) { return a, nil }
}

var (
	ErrUnknownField     = errors.New("storage: unknown field")
	ErrInvalidArgument  = errors.New("storage: invalid argument")
	ErrNoIdentifier     = errors.New("storage: entity has no identifier column")
	ErrUniqueConstraint = errors.New("storage: unique constraint violation")
)

// StorageError wraps a backend failure with the operation that caused it.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return e.Op + " " + e.Table + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
