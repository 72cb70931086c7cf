package repository

import (
	"context"
	"fmt"
	"reflect"
)

// Base method names. Every repository answers them without parsing.
const (
	MethodFindAll    = "findAll"
	MethodFindByID   = "findById"
	MethodSave       = "save"
	MethodDelete     = "delete"
	MethodDeleteByID = "deleteById"
)

// Identity method names, answered by the dispatcher itself.
const (
	MethodString   = "String"
	MethodEqual    = "Equal"
	MethodMetadata = "Metadata"
)

// Crud is the base capability of a repository. Embed it by value in a
// repository struct to declare the entity type E and identifier type ID:
//
//	type UserRepository struct {
//		repository.Crud[User, int64]
//
//		FindByEmail          func(ctx context.Context, email string) (*User, error)
//		FindByAgeGreaterThan func(ctx context.Context, age int) ([]*User, error)
//		CountByActive        func(ctx context.Context, active bool) (int, error)
//	}
//
// Every method forwards to the Dispatcher the repository was bound to.
type Crud[E any, ID comparable] struct {
	d *Dispatcher
}

// base is implemented by every Crud instantiation.
type base interface {
	bind(d *Dispatcher)
	dispatcher() *Dispatcher
	typeArgs() (entity, id reflect.Type)
}

var (
	baseType    = reflect.TypeOf((*base)(nil)).Elem()
	crudPkgPath = reflect.TypeOf(Crud[struct{}, int]{}).PkgPath()
)

func (c *Crud[E, ID]) bind(d *Dispatcher) { c.d = d }

func (c *Crud[E, ID]) dispatcher() *Dispatcher { return c.d }

func (*Crud[E, ID]) typeArgs() (reflect.Type, reflect.Type) {
	return reflect.TypeOf((*E)(nil)).Elem(), reflect.TypeOf((*ID)(nil)).Elem()
}

func (c *Crud[E, ID]) invoke(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	if c.d == nil {
		return nil, ErrNotBound
	}
	return c.d.Invoke(ctx, method, args...)
}

// FindAll returns every entity; an empty slice when there are none.
func (c *Crud[E, ID]) FindAll(ctx context.Context) ([]*E, error) {
	v, err := c.invoke(ctx, MethodFindAll)
	if err != nil {
		return nil, err
	}
	return entitySlice[E](v)
}

// FindByID returns the entity with the identifier, or nil when absent.
func (c *Crud[E, ID]) FindByID(ctx context.Context, id ID) (*E, error) {
	v, err := c.invoke(ctx, MethodFindByID, id)
	if err != nil || v == nil {
		return nil, err
	}
	return entityPointer[E](v)
}

// Save persists entity and returns the stored copy, with a generated
// identifier when the store assigned one.
func (c *Crud[E, ID]) Save(ctx context.Context, entity *E) (*E, error) {
	v, err := c.invoke(ctx, MethodSave, entity)
	if err != nil {
		return nil, err
	}
	return entityPointer[E](v)
}

// Delete removes entity by its identifier.
func (c *Crud[E, ID]) Delete(ctx context.Context, entity *E) (bool, error) {
	v, err := c.invoke(ctx, MethodDelete, entity)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// DeleteByID removes the entity with the identifier. Storage failures are
// reported as false.
func (c *Crud[E, ID]) DeleteByID(ctx context.Context, id ID) (bool, error) {
	v, err := c.invoke(ctx, MethodDeleteByID, id)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (c *Crud[E, ID]) String() string {
	if c.d == nil {
		var zero E
		return fmt.Sprintf("unbound repository of %T", zero)
	}
	return c.d.String()
}

// Equal reports whether other is the same repository instance.
func (c *Crud[E, ID]) Equal(other interface{}) bool {
	return c.d != nil && c.d.Equal(other)
}

// RepositoryMetadata returns the metadata the repository was built from.
func (c *Crud[E, ID]) RepositoryMetadata() *Metadata {
	if c.d == nil {
		return nil
	}
	return c.d.Metadata()
}

func entityPointer[E any](v interface{}) (*E, error) {
	switch e := v.(type) {
	case *E:
		return e, nil
	case E:
		return &e, nil
	}
	return nil, fmt.Errorf("repository: storage returned %T, want %T", v, (*E)(nil))
}

func entitySlice[E any](v interface{}) ([]*E, error) {
	rows, _ := v.([]interface{})
	out := make([]*E, 0, len(rows))
	for _, r := range rows {
		e, err := entityPointer[E](r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// DispatcherOf returns the dispatcher behind a repository created by a
// Context, for calling methods by name.
func DispatcherOf(repo interface{}) (*Dispatcher, bool) {
	b, ok := repo.(base)
	if !ok || b.dispatcher() == nil {
		return nil, false
	}
	return b.dispatcher(), true
}
