package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/handlers"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/repository"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/service"
	"github.com/tenderflow-systems/tenderflow-ingest/pkg/tokens"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	tg := tokens.NewTokenGenerator("test-secret", "tenderflow-ingest", time.Hour)
	svc := service.NewIngestService(repository.NewInMemoryRepository(), nil, 100, 30*time.Second, nil)
	return NewRouter(handlers.NewIngestionHandler(svc, tg, nil, nil))
}

func TestRouter_RoutesRegistered(t *testing.T) {
	router := newTestRouter(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/ingestion/tenders"},
		{http.MethodGet, "/api/ingestion/status/some-id"},
		{http.MethodGet, "/api/ingestion/metrics"},
		{http.MethodGet, "/api/ingestion/health"},
		{http.MethodGet, "/healthz"},
		{http.MethodGet, "/readyz"},
		{http.MethodGet, "/metrics"},
	}

	for _, r := range routes {
		req := httptest.NewRequest(r.method, r.path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		// Routed endpoints may reject the request, but never with 404 from
		// the mux itself.
		assert.NotEqual(t, http.StatusNotFound, rr.Code, "%s %s not registered", r.method, r.path)
	}
}

func TestRouter_SetsRequestID(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
