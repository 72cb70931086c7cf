package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/storage"
)

// CrudDelegate implements the base methods on a storage.Accessor.
type CrudDelegate struct {
	accessor storage.Accessor
	entity   *metadata.EntityMetadata
	log      *zap.SugaredLogger
}

// NewCrudDelegate binds accessor to one entity.
func NewCrudDelegate(accessor storage.Accessor, entity *metadata.EntityMetadata, logger *zap.SugaredLogger) *CrudDelegate {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CrudDelegate{accessor: accessor, entity: entity, log: logger}
}

// FindAll returns every entity, never a nil slice.
func (c *CrudDelegate) FindAll(ctx context.Context) ([]interface{}, error) {
	rows, err := c.accessor.FindAll(ctx, c.entity)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []interface{}{}
	}
	return rows, nil
}

// FindByID returns nil without error when the entity does not exist.
func (c *CrudDelegate) FindByID(ctx context.Context, id interface{}) (interface{}, error) {
	return c.accessor.FindByID(ctx, id, c.entity)
}

func (c *CrudDelegate) Save(ctx context.Context, entity interface{}) (interface{}, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: save of nil %s", storage.ErrInvalidArgument, c.entity.EntityType)
	}
	return c.accessor.Save(ctx, entity, c.entity)
}

// Delete resolves the entity's identifier and deletes by it. An entity
// without an identifier value fails with *metadata.IdentifierError.
func (c *CrudDelegate) Delete(ctx context.Context, entity interface{}) (bool, error) {
	id, err := c.entity.IDValue(entity)
	if err != nil {
		return false, err
	}
	return c.DeleteByID(ctx, id)
}

// DeleteByID reports whether a row was removed. Storage failures are
// logged and reported as false, never returned.
func (c *CrudDelegate) DeleteByID(ctx context.Context, id interface{}) (bool, error) {
	ok, err := c.accessor.DeleteByID(ctx, id, c.entity)
	if err != nil {
		c.log.Warnw("delete failed", "table", c.entity.TableName, "id", id, "error", err)
		return false, nil
	}
	return ok, nil
}
