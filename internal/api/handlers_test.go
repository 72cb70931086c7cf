package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/repokit/internal/db/entities"
	"github.com/leafsii/repokit/internal/metrics"
	"github.com/leafsii/repokit/pkg/repository"
	"github.com/leafsii/repokit/pkg/storage"
	"github.com/leafsii/repokit/pkg/storage/memory"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, pinger Pinger) (*httptest.Server, *repository.Context) {
	t.Helper()
	m, metricsHandler, err := metrics.Setup("repokit-api-test")
	require.NoError(t, err)

	cfg := repository.DefaultConfig()
	cfg.Observer = m
	rc := repository.NewContext(cfg, storage.Static(memory.New()))
	t.Cleanup(rc.Close)
	entities.Register(rc)

	users := repository.MustGet[entities.UserRepository](rc)
	repository.MustGet[entities.ProductRepository](rc)
	age := 41
	_, err = users.Save(context.Background(), &entities.User{Email: "ada@example.com", Name: "Ada", Age: &age, Active: true})
	require.NoError(t, err)

	h := NewHandler(rc, pinger, nil)
	router := h.Routes(NewMiddleware(nil, m), RouteOptions{
		CORSOrigins: []string{"http://localhost:3000"},
		Metrics:     metricsHandler,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, rc
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func invoke(t *testing.T, srv *httptest.Server, repo string, req InvokeRequest) (*http.Response, map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/repositories/"+repo+"/invoke", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealthAndReadiness(t *testing.T) {
	down := false
	srv, rc := newTestServer(t, pingFunc(func(context.Context) error {
		if down {
			return errors.New("connection refused")
		}
		return nil
	}))

	resp := getJSON(t, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp = getJSON(t, srv.URL+"/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down = true
	var e ErrorResponse
	resp = getJSON(t, srv.URL+"/readyz", &e)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "storage_unavailable", e.Code)

	down = false
	rc.Close()
	resp = getJSON(t, srv.URL+"/readyz", &e)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "context_closed", e.Code)
}

func TestParseMethod(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var parsed []ParsedMethodDTO
	resp := getJSON(t, srv.URL+"/parse?method=findByAgeBetweenAndNameLike&method=countByActive", &parsed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, parsed, 2)

	assert.Equal(t, "FIND", parsed[0].Action)
	assert.Equal(t, 2, parsed[0].Arity)
	require.Len(t, parsed[0].Conditions, 2)
	assert.Equal(t, "age", parsed[0].Conditions[0].Field)
	assert.Equal(t, "BETWEEN", parsed[0].Conditions[0].Operator)
	assert.Equal(t, "AND", parsed[0].Conditions[1].Logical)
	assert.Equal(t, "COUNT", parsed[1].Action)

	var e ErrorResponse
	resp = getJSON(t, srv.URL+"/parse?method=listUsers", &e)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "parse_error", e.Code)

	resp = getJSON(t, srv.URL+"/parse", &e)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "missing_method", e.Code)
}

func TestListRepositories(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var repos []RepositoryDTO
	resp := getJSON(t, srv.URL+"/repositories", &repos)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, repos, 2)
	assert.Equal(t, "ProductRepository", repos[0].Name)
	assert.Equal(t, "products", repos[0].Table)
	assert.Equal(t, "UserRepository", repos[1].Name)

	var user RepositoryDTO
	resp = getJSON(t, srv.URL+"/repositories/userrepository", &user)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "users", user.Table)
	assert.Equal(t, "int64", user.IDType)

	var found bool
	for _, m := range user.Methods {
		if m.Name == "findByEmail" {
			found = true
			assert.True(t, m.Routable)
			require.NotNil(t, m.Parsed)
			assert.Equal(t, "FIND WHERE email EQ $0", m.Parsed.Rendered)
		}
	}
	assert.True(t, found)

	var e ErrorResponse
	resp = getJSON(t, srv.URL+"/repositories/OrderRepository", &e)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvokeMethod(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, out := invoke(t, srv, "UserRepository", InvokeRequest{Method: "findByEmail", Args: []interface{}{"ada@example.com"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := out["result"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0].(map[string]interface{})["Name"])

	resp, out = invoke(t, srv, "UserRepository", InvokeRequest{Method: "findById", Args: []interface{}{1}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada@example.com", out["result"].(map[string]interface{})["Email"])

	resp, out = invoke(t, srv, "UserRepository", InvokeRequest{Method: "countByRole", Args: []interface{}{"member"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out["result"], 1)

	resp, out = invoke(t, srv, "UserRepository", InvokeRequest{Method: "String"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "UserRepository[User]", out["result"])

	resp, out = invoke(t, srv, "UserRepository", InvokeRequest{Method: "truncate"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "invocation_failed", out["code"])

	resp, _ = invoke(t, srv, "UserRepository", InvokeRequest{Method: "findByEmail"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvokeCoercesArguments(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, out := invoke(t, srv, "UserRepository", InvokeRequest{
		Method: "save",
		Args:   []interface{}{map[string]interface{}{"email": "bob@example.com", "name": "Bob", "age": 35}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	saved := out["result"].(map[string]interface{})
	assert.Equal(t, "Bob", saved["Name"])
	assert.Equal(t, "member", saved["Role"])
	assert.EqualValues(t, 2, saved["ID"])

	resp, out = invoke(t, srv, "UserRepository", InvokeRequest{Method: "findByAgeGreaterThanEqual", Args: []interface{}{35}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := out["result"].([]interface{})
	assert.Len(t, rows, 2)

	resp, out = invoke(t, srv, "UserRepository", InvokeRequest{Method: "delete", Args: []interface{}{saved}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["result"])

	resp, out = invoke(t, srv, "ProductRepository", InvokeRequest{Method: "findByPriceLessThan", Args: []interface{}{"60"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, out["result"])

	resp, out = invoke(t, srv, "UserRepository", InvokeRequest{Method: "findById", Args: []interface{}{"not-a-number"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_arguments", out["code"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	invoke(t, srv, "UserRepository", InvokeRequest{Method: "findAll"})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "repokit_calls_total")
	assert.Contains(t, string(body), "repokit_http_requests_total")
}
