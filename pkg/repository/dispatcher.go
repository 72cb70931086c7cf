package repository

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/leafsii/repokit/pkg/query"
	"github.com/leafsii/repokit/pkg/storage"
)

type routeKind int

const (
	routeNone routeKind = iota
	routeIdentity
	routeBase
	routeQuery
)

func (k routeKind) String() string {
	switch k {
	case routeIdentity:
		return RouteIdentity
	case routeBase:
		return RouteBase
	case routeQuery:
		return RouteQuery
	default:
		return RouteNone
	}
}

type route struct {
	kind   routeKind
	name   string
	parsed *query.ParsedMethod
}

// Result is the outcome of an asynchronous call.
type Result struct {
	Value interface{}
	Err   error
}

// Dispatcher is the single entry point for calls on a repository. The
// routing table is computed once from Metadata.
type Dispatcher struct {
	meta     *Metadata
	delegate *CrudDelegate
	accessor storage.Accessor
	observer Observer
	log      *zap.SugaredLogger
	routes   map[string]route

	// instance is the repository struct the dispatcher is bound to.
	instance interface{}
}

// NewDispatcher builds the routing table for meta.
func NewDispatcher(meta *Metadata, accessor storage.Accessor, delegate *CrudDelegate, observer Observer, logger *zap.SugaredLogger) *Dispatcher {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	d := &Dispatcher{
		meta:     meta,
		delegate: delegate,
		accessor: accessor,
		observer: observer,
		log:      logger,
		routes:   make(map[string]route),
	}
	for _, name := range []string{MethodString, MethodEqual, MethodMetadata} {
		d.routes[name] = route{kind: routeIdentity, name: name}
	}
	for name := range meta.BaseMethodNames {
		d.routes[name] = route{kind: routeBase, name: name}
	}
	for alias, name := range baseAliases {
		d.routes[alias] = route{kind: routeBase, name: name}
	}
	for _, m := range meta.Methods {
		if !m.Routable || meta.IsBase(m.Name) {
			continue
		}
		d.routes[m.Name] = route{kind: routeQuery, name: m.Name, parsed: meta.ParsedMethods[m.Name]}
	}
	return d
}

// Invoke calls method by name. Identity methods are answered locally,
// base methods go to the CrudDelegate and parsed methods to the accessor's
// ExecuteQuery. Any other name fails with *UnsupportedOperationError.
//
// Base methods return []interface{} (findAll), the entity or nil
// (findById, save) or bool (delete, deleteById). Parsed methods return
// the []interface{} produced by the accessor.
func (d *Dispatcher) Invoke(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r, ok := d.routes[method]
	if !ok {
		r, ok = d.routes[query.LowerFirst(method)]
	}
	if !ok {
		r = route{kind: routeNone, name: method}
	}

	start := time.Now()
	v, err := d.call(ctx, r, args)
	d.observer.ObserveCall(d.meta.Name(), r.name, r.kind.String(), time.Since(start), err)
	return v, err
}

// InvokeAsync runs Invoke on its own goroutine. The channel receives
// exactly one Result and is then closed; a panic in the call is
// delivered as an error.
func (d *Dispatcher) InvokeAsync(ctx context.Context, method string, args ...interface{}) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		var res Result
		defer func() {
			if p := recover(); p != nil {
				res = Result{Err: fmt.Errorf("repository: %s.%s panicked: %v", d.meta.Name(), method, p)}
			}
			ch <- res
		}()
		v, err := d.Invoke(ctx, method, args...)
		res = Result{Value: v, Err: err}
	}()
	return ch
}

func (d *Dispatcher) call(ctx context.Context, r route, args []interface{}) (interface{}, error) {
	switch r.kind {
	case routeIdentity:
		return d.identity(r.name, args)
	case routeBase:
		return d.base(ctx, r.name, args)
	case routeQuery:
		return d.accessor.ExecuteQuery(ctx, r.parsed, args, d.meta.Entity)
	}
	return nil, &UnsupportedOperationError{Repository: d.meta.Name(), Method: r.name}
}

func (d *Dispatcher) identity(name string, args []interface{}) (interface{}, error) {
	switch name {
	case MethodString:
		return d.String(), nil
	case MethodEqual:
		if len(args) != 1 {
			return nil, arityError(name, 1, len(args))
		}
		return d.Equal(args[0]), nil
	default:
		return d.meta, nil
	}
}

func (d *Dispatcher) base(ctx context.Context, name string, args []interface{}) (interface{}, error) {
	want := 1
	if name == MethodFindAll {
		want = 0
	}
	if len(args) != want {
		return nil, arityError(name, want, len(args))
	}

	switch name {
	case MethodFindAll:
		return d.delegate.FindAll(ctx)
	case MethodFindByID:
		return d.delegate.FindByID(ctx, args[0])
	case MethodSave:
		return d.delegate.Save(ctx, args[0])
	case MethodDelete:
		return d.delegate.Delete(ctx, args[0])
	default:
		return d.delegate.DeleteByID(ctx, args[0])
	}
}

func arityError(method string, want, got int) error {
	return fmt.Errorf("%w: %s expects %d arguments, got %d", storage.ErrInvalidArgument, method, want, got)
}

// Metadata returns the metadata the routing table was built from.
func (d *Dispatcher) Metadata() *Metadata {
	return d.meta
}

func (d *Dispatcher) String() string {
	return fmt.Sprintf("%s[%s]", d.meta.Name(), d.meta.EntityType.Name())
}

// Equal reports whether other is this dispatcher or the repository it is
// bound to.
func (d *Dispatcher) Equal(other interface{}) bool {
	if o, ok := other.(*Dispatcher); ok {
		return o == d
	}
	if d.instance == nil || other == nil {
		return false
	}
	a, b := reflect.ValueOf(d.instance), reflect.ValueOf(other)
	return b.Kind() == reflect.Pointer && a.Type() == b.Type() && a.Pointer() == b.Pointer()
}
