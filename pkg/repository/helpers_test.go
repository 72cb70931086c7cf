package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/query"
	"github.com/leafsii/repokit/pkg/storage"
	"github.com/leafsii/repokit/pkg/storage/memory"
)

type user struct {
	ID     int64  `repo:"id"`
	Email  string `repo:"unique,length=320"`
	Name   string
	Age    int
	Active bool
	City   *string `repo:"nullable"`
}

func (user) TableName() string { return "users" }

type userRepository struct {
	Crud[user, int64]

	FindByEmail                 func(ctx context.Context, email string) (*user, error)
	FindByAgeGreaterThan        func(ctx context.Context, age int) ([]*user, error)
	FindByNameOrCityIsNull      func(ctx context.Context, name string) ([]user, error)
	CountByActive               func(ctx context.Context, active bool) (int, error)
	ExistsByEmail               func(ctx context.Context, email string) (bool, error)
	DeleteByAgeLessThan         func(ctx context.Context, age int) (int64, error)
	UpdateByEmail               func(ctx context.Context, email string, changes map[string]interface{}) ([]*user, error)
	FindByAgeBetweenAndNameLike func(ctx context.Context, ages []int, pattern string) ([]*user, error)
	CountAll                    func(ctx context.Context) (int, error)
	FindByID                    func(ctx context.Context, id int64) (*user, error)
}

func strptr(s string) *string { return &s }

// recordingObserver captures observer callbacks.
type recordingObserver struct {
	mu            sync.Mutex
	calls         []string
	errors        int
	registrations []string
}

func (o *recordingObserver) ObserveCall(repo, method, route string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, repo+"."+method+":"+route)
	if err != nil {
		o.errors++
	}
}

func (o *recordingObserver) ObserveRegistration(repo, entity string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.registrations = append(o.registrations, repo+"/"+entity)
}

// stubAccessor lets a test replace individual accessor operations.
type stubAccessor struct {
	storage.Accessor
	deleteByID   func(ctx context.Context, id interface{}) (bool, error)
	executeQuery func(ctx context.Context, m *query.ParsedMethod, args []interface{}) ([]interface{}, error)
}

func (s *stubAccessor) DeleteByID(ctx context.Context, id interface{}, meta *metadata.EntityMetadata) (bool, error) {
	if s.deleteByID != nil {
		return s.deleteByID(ctx, id)
	}
	return s.Accessor.DeleteByID(ctx, id, meta)
}

func (s *stubAccessor) ExecuteQuery(ctx context.Context, m *query.ParsedMethod, args []interface{}, meta *metadata.EntityMetadata) ([]interface{}, error) {
	if s.executeQuery != nil {
		return s.executeQuery(ctx, m, args)
	}
	return s.Accessor.ExecuteQuery(ctx, m, args, meta)
}

func newTestContext(t *testing.T, cfg Config, accessor storage.Accessor) *Context {
	t.Helper()
	if accessor == nil {
		accessor = memory.New()
	}
	if cfg.DefaultFactory == nil {
		cfg.DefaultFactory = ProxyFactory{}
	}
	rc := NewContext(cfg, storage.Static(accessor))
	t.Cleanup(rc.Close)
	return rc
}

func newUsers(t *testing.T) *userRepository {
	t.Helper()
	repo, err := Get[userRepository](newTestContext(t, Config{}, nil))
	require.NoError(t, err)
	return repo
}

func seedUsers(t *testing.T, repo *userRepository) []*user {
	t.Helper()
	ctx := context.Background()
	in := []user{
		{Email: "ada@example.com", Name: "Ada", Age: 36, Active: true, City: strptr("London")},
		{Email: "alan@example.com", Name: "Alan", Age: 41, Active: false, City: strptr("Wilmslow")},
		{Email: "grace@navy.mil", Name: "Grace", Age: 85, Active: true},
	}
	out := make([]*user, 0, len(in))
	for i := range in {
		saved, err := repo.Save(ctx, &in[i])
		require.NoError(t, err)
		out = append(out, saved)
	}
	return out
}
