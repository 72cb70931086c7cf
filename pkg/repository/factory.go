package repository

import (
	"context"
	"fmt"
	"reflect"
	"unsafe"
)

// Factory creates the repository instance for meta.
type Factory interface {
	Create(meta *Metadata, rc *Context) (interface{}, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(meta *Metadata, rc *Context) (interface{}, error)

func (f FactoryFunc) Create(meta *Metadata, rc *Context) (interface{}, error) {
	return f(meta, rc)
}

// ProxyFactory allocates the repository struct, binds its embedded Crud
// to a new Dispatcher and fills every func field with a proxy that calls
// Dispatcher.Invoke and converts the result to the field's return type.
type ProxyFactory struct{}

func (ProxyFactory) Create(meta *Metadata, rc *Context) (interface{}, error) {
	accessor, err := rc.accessor(meta)
	if err != nil {
		return nil, err
	}
	delegate := NewCrudDelegate(accessor, meta.Entity, rc.log)
	d := NewDispatcher(meta, accessor, delegate, rc.cfg.Observer, rc.log)

	ptr := reflect.New(meta.RepositoryType)
	bindCrud(ptr.Elem(), meta.crudIndex, d)
	for _, m := range meta.Methods {
		ptr.Elem().FieldByIndex(m.index).Set(d.proxy(m))
	}
	d.instance = ptr.Interface()
	return d.instance, nil
}

// bindCrud binds the embedded Crud at index. The path may pass through
// unexported embedded structs, whose fields reflect refuses to hand out,
// so the Crud is addressed directly.
func bindCrud(repo reflect.Value, index []int, d *Dispatcher) {
	field := repo.FieldByIndex(index)
	crud := reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr()))
	crud.Interface().(base).bind(d)
}

func (d *Dispatcher) proxy(m Method) reflect.Value {
	return reflect.MakeFunc(m.Type, func(in []reflect.Value) []reflect.Value {
		ctx, _ := in[0].Interface().(context.Context)
		args := make([]interface{}, len(in)-1)
		for i, v := range in[1:] {
			args[i] = v.Interface()
		}
		v, err := d.Invoke(ctx, m.Name, args...)
		return adaptResult(m, v, err)
	})
}

// adaptResult converts a dispatcher result into the proxy's return values.
func adaptResult(m Method, v interface{}, err error) []reflect.Value {
	ft := m.Type
	if ft.NumOut() == 1 {
		return []reflect.Value{errorValue(err)}
	}
	rt := ft.Out(0)
	if err != nil {
		return []reflect.Value{reflect.Zero(rt), errorValue(err)}
	}

	out, err := convertResult(m.result, rt, v)
	if err != nil {
		return []reflect.Value{reflect.Zero(rt), errorValue(fmt.Errorf("repository: %s: %w", m.Name, err))}
	}
	return []reflect.Value{out, errorValue(nil)}
}

func convertResult(kind resultKind, rt reflect.Type, v interface{}) (reflect.Value, error) {
	if b, ok := v.(bool); ok {
		switch kind {
		case resultBool:
			return reflect.ValueOf(b).Convert(rt), nil
		case resultCount:
			n := 0
			if b {
				n = 1
			}
			return reflect.ValueOf(n).Convert(rt), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot return bool as %s", rt)
	}

	rows := asRows(v)
	switch kind {
	case resultSlice:
		out := reflect.MakeSlice(rt, 0, len(rows))
		for _, r := range rows {
			e, err := entityValue(r, rt.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, e)
		}
		return out, nil
	case resultSingle:
		if len(rows) == 0 {
			return reflect.Zero(rt), nil
		}
		return entityValue(rows[0], rt)
	case resultBool:
		return reflect.ValueOf(len(rows) > 0).Convert(rt), nil
	case resultCount:
		return reflect.ValueOf(len(rows)).Convert(rt), nil
	}
	return reflect.Zero(rt), nil
}

// asRows normalises the result of a call into a list of entities.
func asRows(v interface{}) []interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return x
	}
	return []interface{}{v}
}

// entityValue returns row as target, which is the entity type or a
// pointer to it.
func entityValue(row interface{}, target reflect.Type) (reflect.Value, error) {
	v := reflect.ValueOf(row)
	if !v.IsValid() {
		return reflect.Zero(target), nil
	}
	switch {
	case v.Type() == target:
		return v, nil
	case v.Kind() == reflect.Pointer && v.Type().Elem() == target:
		return v.Elem(), nil
	case target.Kind() == reflect.Pointer && v.Type() == target.Elem():
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		return p, nil
	}
	return reflect.Value{}, fmt.Errorf("storage returned %s, want %s", v.Type(), target)
}

func errorValue(err error) reflect.Value {
	if err == nil {
		return reflect.Zero(errorType)
	}
	return reflect.ValueOf(&err).Elem()
}
