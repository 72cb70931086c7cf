package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverExportsCounters(t *testing.T) {
	m, handler, err := Setup("repokit-test")
	require.NoError(t, err)

	m.ObserveRegistration("UserRepository", "User")
	m.ObserveCall("UserRepository", "findByEmail", "query", 3*time.Millisecond, nil)
	m.ObserveCall("UserRepository", "purge", "unsupported", time.Millisecond, errors.New("unsupported"))
	m.RecordHTTPRequest(context.Background(), "GET", "/healthz", 200)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, "repokit_calls_total")
	assert.Contains(t, out, "repokit_call_errors_total")
	assert.Contains(t, out, "repokit_call_duration_seconds")
	assert.Contains(t, out, "repokit_registrations_total")
	assert.Contains(t, out, "repokit_http_requests_total")
	assert.Contains(t, out, `method="findByEmail"`)
	assert.Contains(t, out, `entity="User"`)
}

func TestSetupTwice(t *testing.T) {
	_, _, err := Setup("a")
	require.NoError(t, err)
	_, _, err = Setup("b")
	assert.NoError(t, err)
}
