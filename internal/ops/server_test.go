package ops

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XaviFortes/tesla-tracker/internal/store"
	"github.com/XaviFortes/tesla-tracker/pkg/logger"
)

// pingStore overrides Ping on an otherwise unused Store.
type pingStore struct {
	store.Store
	err error
}

func (p *pingStore) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	return NewServer(fs, WithLogger(logger.Quiet()))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestServer(t).Handler(), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestServer(t).Handler(), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ReadyzUnavailable(t *testing.T) {
	t.Parallel()

	srv := NewServer(
		&pingStore{err: errors.New("connection refused")},
		WithLogger(logger.Quiet()),
	)

	rec := get(t, srv.Handler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unavailable")
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestServer(t).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tesla_tracker_")
}

func TestServer_RequestIDPropagated(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
