package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/repokit/pkg/query"
	"github.com/leafsii/repokit/pkg/storage"
	"github.com/leafsii/repokit/pkg/storage/memory"
)

func dispatcherFor(t *testing.T, cfg Config, accessor storage.Accessor) (*userRepository, *Dispatcher) {
	t.Helper()
	repo := MustGet[userRepository](newTestContext(t, cfg, accessor))
	d, ok := DispatcherOf(repo)
	require.True(t, ok)
	return repo, d
}

func TestInvokeRoutes(t *testing.T) {
	obs := &recordingObserver{}
	repo, d := dispatcherFor(t, Config{Observer: obs}, nil)
	seedUsers(t, repo)
	ctx := context.Background()
	obs.calls = nil

	v, err := d.Invoke(ctx, "findAll")
	require.NoError(t, err)
	assert.Len(t, v, 3)

	// Exported spellings resolve to the same method.
	v, err = d.Invoke(ctx, "FindByEmail", "grace@navy.mil")
	require.NoError(t, err)
	rows := v.([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "Grace", rows[0].(*user).Name)

	v, err = d.Invoke(ctx, "findByID", int64(1))
	require.NoError(t, err)
	assert.Equal(t, "Ada", v.(*user).Name)

	v, err = d.Invoke(ctx, MethodString)
	require.NoError(t, err)
	assert.Equal(t, "userRepository[user]", v)

	v, err = d.Invoke(ctx, MethodEqual, repo)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = d.Invoke(ctx, MethodMetadata)
	require.NoError(t, err)
	assert.Same(t, d.Metadata(), v)

	_, err = d.Invoke(ctx, "purgeEverything")
	var ue *UnsupportedOperationError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "userRepository", ue.Repository)

	assert.Equal(t, []string{
		"userRepository.findAll:base",
		"userRepository.findByEmail:query",
		"userRepository.findById:base",
		"userRepository.String:identity",
		"userRepository.Equal:identity",
		"userRepository.Metadata:identity",
		"userRepository.purgeEverything:unsupported",
	}, obs.calls)
	assert.Equal(t, 1, obs.errors)
}

func TestInvokeArity(t *testing.T) {
	_, d := dispatcherFor(t, Config{}, nil)
	ctx := context.Background()

	_, err := d.Invoke(ctx, "findById")
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)

	_, err = d.Invoke(ctx, "findAll", 1)
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)

	_, err = d.Invoke(ctx, MethodEqual)
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)

	_, err = d.Invoke(ctx, "findByEmail")
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestInvokeCanceledContext(t *testing.T) {
	_, d := dispatcherFor(t, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Invoke(ctx, "findAll")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = d.Invoke(ctx, "findByEmail", "ada@example.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvokeAsync(t *testing.T) {
	repo, d := dispatcherFor(t, Config{}, nil)
	seedUsers(t, repo)

	ch := d.InvokeAsync(context.Background(), "findByAgeGreaterThan", 40)
	res, ok := <-ch
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Len(t, res.Value, 2)

	_, ok = <-ch
	assert.False(t, ok, "channel delivers exactly one result")
}

func TestInvokeAsyncRecoversPanic(t *testing.T) {
	stub := &stubAccessor{
		Accessor: memory.New(),
		executeQuery: func(context.Context, *query.ParsedMethod, []interface{}) ([]interface{}, error) {
			panic("driver exploded")
		},
	}
	_, d := dispatcherFor(t, Config{}, stub)

	res := <-d.InvokeAsync(context.Background(), "findByEmail", "ada@example.com")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "driver exploded")
	assert.Nil(t, res.Value)
}

func TestInvokeAsyncError(t *testing.T) {
	boom := errors.New("boom")
	stub := &stubAccessor{
		Accessor: memory.New(),
		executeQuery: func(context.Context, *query.ParsedMethod, []interface{}) ([]interface{}, error) {
			return nil, boom
		},
	}
	repo, d := dispatcherFor(t, Config{}, stub)

	res := <-d.InvokeAsync(context.Background(), "countByActive", true)
	assert.ErrorIs(t, res.Err, boom)

	n, err := repo.CountByActive(context.Background(), true)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}

func TestQueryReceivesParsedMethod(t *testing.T) {
	var got *query.ParsedMethod
	var gotArgs []interface{}
	stub := &stubAccessor{
		Accessor: memory.New(),
		executeQuery: func(_ context.Context, m *query.ParsedMethod, args []interface{}) ([]interface{}, error) {
			got, gotArgs = m, args
			return []interface{}{}, nil
		},
	}
	repo, _ := dispatcherFor(t, Config{}, stub)

	people, err := repo.FindByNameOrCityIsNull(context.Background(), "Ada")
	require.NoError(t, err)
	assert.NotNil(t, people)
	assert.Empty(t, people)

	require.NotNil(t, got)
	assert.Equal(t, "FIND WHERE name EQ $0 OR city IS_NULL", got.String())
	assert.Equal(t, []interface{}{"Ada"}, gotArgs)
}
