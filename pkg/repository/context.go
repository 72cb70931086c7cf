package repository

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/storage"
)

// Context owns the factories, repository instances and their metadata.
// Repositories are created lazily on first lookup; concurrent first
// lookups of one type share a single registration. After Close every
// lookup fails with ErrContextClosed.
type Context struct {
	cfg       Config
	accessors storage.AccessorProvider
	extractor *metadata.Extractor
	log       *zap.SugaredLogger
	group     singleflight.Group

	mu            sync.RWMutex
	factories     []Factory
	typeFactories map[reflect.Type]Factory
	instances     map[reflect.Type]interface{}
	metadata      map[reflect.Type]*Metadata
	initialized   bool
	closed        bool
}

// NewContext creates a context whose repositories reach storage through
// accessors.
func NewContext(cfg Config, accessors storage.AccessorProvider) *Context {
	cfg = cfg.withDefaults()
	return &Context{
		cfg:           cfg,
		accessors:     accessors,
		extractor:     metadata.NewExtractor(cfg.NamingStrategy),
		log:           cfg.Logger,
		typeFactories: make(map[reflect.Type]Factory),
		instances:     make(map[reflect.Type]interface{}),
		metadata:      make(map[reflect.Type]*Metadata),
	}
}

// Extractor returns the entity metadata extractor, for registering
// descriptors of entities that carry no struct tags.
func (rc *Context) Extractor() *metadata.Extractor {
	return rc.extractor
}

// Logger returns the context's logger.
func (rc *Context) Logger() *zap.SugaredLogger {
	return rc.log
}

func (rc *Context) accessor(meta *Metadata) (storage.Accessor, error) {
	if rc.accessors == nil {
		return nil, fmt.Errorf("repository: no storage accessor configured for %s", meta.Name())
	}
	a, err := rc.accessors(meta.Entity)
	if err != nil {
		return nil, fmt.Errorf("repository: accessor for %s: %w", meta.Entity.TableName, err)
	}
	return a, nil
}

// Initialize marks the context ready. Further calls are no-ops.
func (rc *Context) Initialize() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return ErrContextClosed
	}
	if rc.initialized {
		return nil
	}
	rc.initialized = true
	rc.log.Infow("repository context initialized", "strict", rc.cfg.StrictRegistration)
	return nil
}

// Close drops every repository, metadata entry and factory. Further calls
// are no-ops.
func (rc *Context) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	rc.closed = true
	n := len(rc.instances)
	rc.instances = make(map[reflect.Type]interface{})
	rc.metadata = make(map[reflect.Type]*Metadata)
	rc.typeFactories = make(map[reflect.Type]Factory)
	rc.factories = nil
	rc.log.Infow("repository context closed", "repositories", n)
}

// Closed reports whether Close was called.
func (rc *Context) Closed() bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.closed
}

// AddFactory appends a factory. Without a Config.DefaultFactory the first
// added factory creates repositories that have no per-type factory.
func (rc *Context) AddFactory(f Factory) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	rc.factories = append(rc.factories, f)
}

// RemoveFactory removes a factory added with AddFactory.
func (rc *Context) RemoveFactory(f Factory) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for i, existing := range rc.factories {
		if sameFactory(existing, f) {
			rc.factories = append(rc.factories[:i], rc.factories[i+1:]...)
			return
		}
	}
}

// SetFactory selects the factory for one repository type.
func (rc *Context) SetFactory(repoType reflect.Type, f Factory) error {
	t, err := repositoryStruct(repoType)
	if err != nil {
		return err
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return ErrContextClosed
	}
	rc.typeFactories[t] = f
	return nil
}

func sameFactory(a, b Factory) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func || va.Kind() == reflect.Pointer {
		return va.Pointer() == vb.Pointer()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}

// factoryFor picks explicit, then per-type, then default, then the first
// added factory. Caller holds the lock.
func (rc *Context) factoryFor(t reflect.Type, explicit Factory) (Factory, error) {
	switch {
	case explicit != nil:
		return explicit, nil
	case rc.typeFactories[t] != nil:
		return rc.typeFactories[t], nil
	case rc.cfg.DefaultFactory != nil:
		return rc.cfg.DefaultFactory, nil
	case len(rc.factories) > 0:
		return rc.factories[0], nil
	}
	return nil, fmt.Errorf("%w for %s", ErrNoFactory, t)
}

// Register builds the metadata of a repository type and creates its
// instance with f, or with the context's factory when f is nil. A
// repeated registration is logged and ignored, or rejected with
// *RegistrationError under StrictRegistration.
func (rc *Context) Register(repoType reflect.Type, f Factory) error {
	t, err := repositoryStruct(repoType)
	if err != nil {
		return err
	}

	rc.mu.RLock()
	closed := rc.closed
	_, exists := rc.instances[t]
	rc.mu.RUnlock()
	if closed {
		return ErrContextClosed
	}
	if exists {
		return rc.duplicate(t)
	}

	created := false
	_, err, _ = rc.group.Do(flightKey(t), func() (interface{}, error) {
		inst, fresh, err := rc.register(t, f)
		created = fresh
		return inst, err
	})
	if err != nil {
		return err
	}
	if !created {
		// A concurrent caller registered the type first.
		return rc.duplicate(t)
	}
	return nil
}

func (rc *Context) duplicate(t reflect.Type) error {
	if rc.cfg.StrictRegistration {
		return &RegistrationError{Type: t, Reason: "already registered"}
	}
	rc.log.Infow("repository already registered, skipping", "repository", t.Name())
	return nil
}

// Repository returns the instance of a repository type, registering it
// on first use.
func (rc *Context) Repository(repoType reflect.Type) (interface{}, error) {
	t, err := repositoryStruct(repoType)
	if err != nil {
		return nil, err
	}

	rc.mu.RLock()
	closed := rc.closed
	inst, ok := rc.instances[t]
	rc.mu.RUnlock()
	if closed {
		return nil, ErrContextClosed
	}
	if ok {
		return inst, nil
	}

	v, err, _ := rc.group.Do(flightKey(t), func() (interface{}, error) {
		inst, _, err := rc.register(t, nil)
		return inst, err
	})
	return v, err
}

// register runs once per type at a time. It re-checks the maps, builds
// metadata and the instance outside the lock, then publishes both unless
// the context was closed meanwhile. created is false when the type was
// already registered.
func (rc *Context) register(t reflect.Type, explicit Factory) (inst interface{}, created bool, err error) {
	rc.mu.RLock()
	if rc.closed {
		rc.mu.RUnlock()
		return nil, false, ErrContextClosed
	}
	if existing, ok := rc.instances[t]; ok {
		rc.mu.RUnlock()
		return existing, false, nil
	}
	factory, err := rc.factoryFor(t, explicit)
	rc.mu.RUnlock()
	if err != nil {
		return nil, false, err
	}

	meta, err := BuildMetadata(t, rc.extractor)
	if err != nil {
		return nil, false, err
	}
	inst, err = factory.Create(meta, rc)
	if err != nil {
		return nil, false, fmt.Errorf("repository: create %s: %w", t.Name(), err)
	}

	rc.mu.Lock()
	if rc.closed {
		rc.mu.Unlock()
		return nil, false, ErrContextClosed
	}
	rc.instances[t] = inst
	rc.metadata[t] = meta
	rc.mu.Unlock()

	rc.log.Infow("registered repository",
		"repository", meta.Name(),
		"entity", meta.EntityType.Name(),
		"table", meta.Entity.TableName,
		"methods", len(meta.Methods),
	)
	rc.cfg.Observer.ObserveRegistration(meta.Name(), meta.EntityType.Name())
	return inst, true, nil
}

func flightKey(t reflect.Type) string {
	return t.PkgPath() + "." + t.String()
}

// Metadata returns the metadata of a registered repository type.
func (rc *Context) Metadata(repoType reflect.Type) (*Metadata, bool) {
	t, err := repositoryStruct(repoType)
	if err != nil {
		return nil, false
	}
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	m, ok := rc.metadata[t]
	return m, ok
}

// Registered returns the metadata of every registered repository ordered
// by name.
func (rc *Context) Registered() []*Metadata {
	rc.mu.RLock()
	out := make([]*Metadata, 0, len(rc.metadata))
	for _, m := range rc.metadata {
		out = append(out, m)
	}
	rc.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Get returns the repository of type R, creating it on first use.
func Get[R any](rc *Context) (*R, error) {
	inst, err := rc.Repository(reflect.TypeOf((*R)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	r, ok := inst.(*R)
	if !ok {
		return nil, fmt.Errorf("repository: factory returned %T, want %T", inst, (*R)(nil))
	}
	return r, nil
}

// MustGet is like Get but panics on error.
func MustGet[R any](rc *Context) *R {
	r, err := Get[R](rc)
	if err != nil {
		panic(err)
	}
	return r
}

// Register registers repository type R with an optional factory.
func Register[R any](rc *Context, f Factory) error {
	return rc.Register(reflect.TypeOf((*R)(nil)).Elem(), f)
}
