package repository

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/query"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	changesType = reflect.TypeOf(map[string]interface{}(nil))
)

// conventionPrefixes mark the declared methods that are compiled into
// queries.
var conventionPrefixes = []string{"findBy", "deleteBy", "existsBy", "existBy", "countBy", "updateBy"}

// baseAliases maps the Go spelling of base method names onto the
// canonical ones.
var baseAliases = map[string]string{
	"findByID":   MethodFindByID,
	"deleteByID": MethodDeleteByID,
}

// BaseMethodNames is the fixed set of generic operations.
func BaseMethodNames() map[string]struct{} {
	return map[string]struct{}{
		MethodFindAll:    {},
		MethodFindByID:   {},
		MethodSave:       {},
		MethodDelete:     {},
		MethodDeleteByID: {},
	}
}

type resultKind int

const (
	resultNone resultKind = iota
	resultSlice
	resultSingle
	resultBool
	resultCount
)

// Method is one func-typed field of a repository struct.
type Method struct {
	// Name is the field name with its first letter lower-cased.
	Name  string
	Field string
	Type  reflect.Type
	// Routable is false for methods that follow no naming convention;
	// calling them fails with *UnsupportedOperationError.
	Routable bool

	index  []int
	result resultKind
}

// Metadata describes one repository type. It is built once by
// BuildMetadata and never modified afterwards.
type Metadata struct {
	RepositoryType  reflect.Type
	EntityType      reflect.Type
	IDType          reflect.Type
	Methods         []Method
	BaseMethodNames map[string]struct{}
	ParsedMethods   map[string]*query.ParsedMethod
	Entity          *metadata.EntityMetadata

	crudIndex []int
}

// Name is the repository type name.
func (m *Metadata) Name() string {
	return m.RepositoryType.Name()
}

// IsBase reports whether name is a base method, accepting the ID
// spellings of findById and deleteById.
func (m *Metadata) IsBase(name string) bool {
	_, ok := m.BaseMethodNames[canonicalBase(name)]
	return ok
}

// ParameterTypes lists the argument types of the named method, without
// the leading context. Base methods take the entity or the identifier;
// declared methods take their func field's parameters. Identity and
// unknown names report false.
func (m *Metadata) ParameterTypes(name string) ([]reflect.Type, bool) {
	switch canonicalBase(query.LowerFirst(name)) {
	case MethodFindAll:
		return []reflect.Type{}, true
	case MethodFindByID, MethodDeleteByID:
		return []reflect.Type{m.IDType}, true
	case MethodSave, MethodDelete:
		return []reflect.Type{m.EntityType}, true
	}
	for _, method := range m.Methods {
		if method.Name != query.LowerFirst(name) {
			continue
		}
		types := make([]reflect.Type, 0, method.Type.NumIn()-1)
		for i := 1; i < method.Type.NumIn(); i++ {
			types = append(types, method.Type.In(i))
		}
		return types, true
	}
	return nil, false
}

func canonicalBase(name string) string {
	if alias, ok := baseAliases[name]; ok {
		return alias
	}
	return name
}

func hasConventionPrefix(name string) bool {
	for _, p := range conventionPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// repositoryStruct accepts R or *R and returns R.
func repositoryStruct(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, &metadata.MetadataError{Reason: "nil repository type"}
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, &metadata.MetadataError{Type: t, Reason: "repository must be a struct"}
	}
	return t, nil
}

// BuildMetadata inspects a repository struct type. The entity and
// identifier types come from the embedded Crud; every exported func field
// is a declared method and is parsed here, so malformed names fail the
// build rather than the first call.
func BuildMetadata(repoType reflect.Type, extractor *metadata.Extractor) (*Metadata, error) {
	t, err := repositoryStruct(repoType)
	if err != nil {
		return nil, err
	}

	crudIndex, entityType, idType, err := findCrud(t)
	if err != nil {
		return nil, err
	}
	entity, err := extractor.Extract(entityType)
	if err != nil {
		return nil, err
	}

	m := &Metadata{
		RepositoryType:  t,
		EntityType:      entityType,
		IDType:          idType,
		BaseMethodNames: BaseMethodNames(),
		ParsedMethods:   make(map[string]*query.ParsedMethod),
		Entity:          entity,
		crudIndex:       crudIndex,
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous || !f.IsExported() || f.Type.Kind() != reflect.Func {
			continue
		}
		method, err := m.declare(f)
		if err != nil {
			return nil, err
		}
		m.Methods = append(m.Methods, method)
	}
	return m, nil
}

func (m *Metadata) declare(f reflect.StructField) (Method, error) {
	name := query.LowerFirst(f.Name)
	method := Method{Name: name, Field: f.Name, Type: f.Type, index: f.Index}
	fail := func(format string, args ...interface{}) (Method, error) {
		return Method{}, &metadata.MetadataError{
			Type:   m.RepositoryType,
			Reason: fmt.Sprintf("method %s: ", f.Name) + fmt.Sprintf(format, args...),
		}
	}

	ft := f.Type
	if ft.IsVariadic() {
		return fail("variadic methods are not supported")
	}
	if ft.NumIn() == 0 || ft.In(0) != contextType {
		return fail("first parameter must be context.Context")
	}
	if ft.NumOut() == 0 || ft.NumOut() > 2 || ft.Out(ft.NumOut()-1) != errorType {
		return fail("must return error or (T, error)")
	}
	result, err := classifyResult(ft, m.EntityType)
	if err != nil {
		return fail("%v", err)
	}
	method.result = result

	if m.IsBase(name) {
		// Base methods route to the delegate; the parsed form is kept for
		// introspection. save has none.
		if parsed, err := query.Parse(name); err == nil {
			m.ParsedMethods[name] = parsed
		}
		method.Routable = true
		return method, nil
	}

	parsed, err := query.Parse(name)
	if err != nil {
		return Method{}, err
	}
	m.ParsedMethods[name] = parsed
	if !hasConventionPrefix(name) {
		return method, nil
	}

	want := parsed.Arity()
	if parsed.Action == query.ActionUpdate {
		want++
		if ft.NumIn() < 2 || ft.In(ft.NumIn()-1) != changesType {
			return fail("update methods take a trailing map[string]interface{} of changes")
		}
	}
	if got := ft.NumIn() - 1; got != want {
		return fail("%s binds %d arguments, declared %d", parsed, want, got)
	}
	for _, cond := range parsed.Conditions {
		if _, ok := m.Entity.Column(cond.Field); !ok {
			return fail("unknown field %q on %s", cond.Field, m.EntityType)
		}
	}
	method.Routable = true
	return method, nil
}

// findCrud locates the embedded Crud, searching embedded structs
// breadth first.
func findCrud(t reflect.Type) ([]int, reflect.Type, reflect.Type, error) {
	type node struct {
		t     reflect.Type
		index []int
	}
	queue := []node{{t: t}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for i := 0; i < n.t.NumField(); i++ {
			f := n.t.Field(i)
			if !f.Anonymous || f.Type.Kind() != reflect.Struct {
				continue
			}
			index := append(append([]int(nil), n.index...), i)
			if isCrud(f.Type) {
				entity, id := reflect.New(f.Type).Interface().(base).typeArgs()
				if entity.Kind() == reflect.Interface || id.Kind() == reflect.Interface {
					return nil, nil, nil, &metadata.MetadataError{Type: t, Reason: fmt.Sprintf("%s does not resolve to concrete entity and identifier types", f.Type)}
				}
				return index, entity, id, nil
			}
			queue = append(queue, node{t: f.Type, index: index})
		}
	}
	return nil, nil, nil, &metadata.MetadataError{Type: t, Reason: "does not embed repository.Crud"}
}

// isCrud reports whether t is an instantiation of Crud itself. Structs
// embedding Crud also satisfy base through promotion and are descended
// into instead.
func isCrud(t reflect.Type) bool {
	return t.PkgPath() == crudPkgPath &&
		strings.HasPrefix(t.Name(), "Crud[") &&
		reflect.PointerTo(t).Implements(baseType)
}

func classifyResult(ft reflect.Type, entity reflect.Type) (resultKind, error) {
	if ft.NumOut() == 1 {
		return resultNone, nil
	}
	r := ft.Out(0)
	isEntity := func(t reflect.Type) bool {
		return t == entity || (t.Kind() == reflect.Pointer && t.Elem() == entity)
	}
	switch {
	case r.Kind() == reflect.Slice && isEntity(r.Elem()):
		return resultSlice, nil
	case isEntity(r):
		return resultSingle, nil
	case r.Kind() == reflect.Bool:
		return resultBool, nil
	}
	switch r.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return resultCount, nil
	}
	return resultNone, fmt.Errorf("unsupported result type %s", r)
}
