package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/repository"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/service"
	"github.com/tenderflow-systems/tenderflow-ingest/pkg/checksum"
	"github.com/tenderflow-systems/tenderflow-ingest/pkg/tokens"
)

const testSecret = "test-secret"

func newTestHandler(t *testing.T, repo repository.Repository) (*IngestionHandler, *tokens.TokenGenerator) {
	t.Helper()

	tg := tokens.NewTokenGenerator(testSecret, "tenderflow-ingest", time.Hour)
	svc := service.NewIngestService(repo, nil, 100, 30*time.Second, nil)
	return NewIngestionHandler(svc, tg, nil, nil), tg
}

func scraperToken(t *testing.T, tg *tokens.TokenGenerator, tenantID string) string {
	t.Helper()
	token, err := tg.GenerateScraperToken(tenantID, "scraper-1")
	require.NoError(t, err)
	return token
}

func ingestBody(t *testing.T, batchID string, records []models.TenderRecord) []byte {
	t.Helper()

	raw, err := checksum.Serialize(records)
	require.NoError(t, err)

	body, err := json.Marshal(models.IngestRequest{
		Tenders: raw,
		Metadata: models.BatchMetadata{
			ScraperID: "scraper-1",
			BatchID:   batchID,
			ScrapedAt: time.Now().UTC(),
			Checksum:  checksum.Sum(raw),
		},
	})
	require.NoError(t, err)
	return body
}

func sampleRecords() []models.TenderRecord {
	return []models.TenderRecord{
		{ExternalID: "T-1", SourcePortal: "goszakup", Title: "Road works", Status: "open"},
		{ExternalID: "T-2", SourcePortal: "goszakup", Title: "Medical supplies", Status: "open"},
	}
}

func postIngest(handler *IngestionHandler, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ingestion/tenders", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.HandleIngest(rr, req)
	return rr
}

func TestHandleIngest_Success(t *testing.T) {
	handler, tg := newTestHandler(t, repository.NewInMemoryRepository())
	token := scraperToken(t, tg, "t1")

	rr := postIngest(handler, token, ingestBody(t, uuid.NewString(), sampleRecords()))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result models.BatchResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
	assert.Equal(t, models.BatchCompleted, result.Status)
	assert.Equal(t, 2, result.Processed)
	assert.NotEmpty(t, result.UploadID)
}

func TestHandleIngest_RequiresAuth(t *testing.T) {
	handler, tg := newTestHandler(t, repository.NewInMemoryRepository())
	body := ingestBody(t, uuid.NewString(), sampleRecords())

	// No Authorization header.
	rr := postIngest(handler, "", body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Garbage token.
	rr = postIngest(handler, "not-a-token", body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Token signed with the wrong secret.
	other := tokens.NewTokenGenerator("other-secret", "tenderflow-ingest", time.Hour)
	wrongSecret, err := other.GenerateScraperToken("t1", "scraper-1")
	require.NoError(t, err)
	rr = postIngest(handler, wrongSecret, body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Valid user token but not a scraper token.
	userToken, err := tg.GenerateUserToken("t1", "alice")
	require.NoError(t, err)
	rr = postIngest(handler, userToken, body)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandleIngest_MethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t, repository.NewInMemoryRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/ingestion/tenders", nil)
	rr := httptest.NewRecorder()
	handler.HandleIngest(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleIngest_ChecksumMismatch(t *testing.T) {
	handler, tg := newTestHandler(t, repository.NewInMemoryRepository())
	token := scraperToken(t, tg, "t1")

	var req models.IngestRequest
	require.NoError(t, json.Unmarshal(ingestBody(t, uuid.NewString(), sampleRecords()), &req))
	req.Metadata.Checksum = "deadbeef"
	body, err := json.Marshal(req)
	require.NoError(t, err)

	rr := postIngest(handler, token, body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Checksum verification failed", resp["error"])
}

func TestHandleIngest_SchemaError(t *testing.T) {
	handler, tg := newTestHandler(t, repository.NewInMemoryRepository())
	token := scraperToken(t, tg, "t1")

	records := sampleRecords()
	records[0].Title = ""
	rr := postIngest(handler, token, ingestBody(t, uuid.NewString(), records))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleIngest_InvalidBody(t *testing.T) {
	handler, tg := newTestHandler(t, repository.NewInMemoryRepository())
	token := scraperToken(t, tg, "t1")

	rr := postIngest(handler, token, []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleIngest_InFlightConflict(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	handler, tg := newTestHandler(t, repo)
	token := scraperToken(t, tg, "t1")

	batchID := uuid.NewString()
	_, err := repo.ClaimBatch(context.Background(), &models.IngestionLogEntry{
		ID: "other-upload", TenantID: "t1", BatchID: batchID,
		ScraperID: "scraper-2", StartedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	rr := postIngest(handler, token, ingestBody(t, batchID, sampleRecords()))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

// denyingLimiter rejects everything with a fixed retry hint.
type denyingLimiter struct{}

func (denyingLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return false, 42 * time.Second, nil
}

func (denyingLimiter) Close() error { return nil }

func TestHandleIngest_RateLimited(t *testing.T) {
	tg := tokens.NewTokenGenerator(testSecret, "tenderflow-ingest", time.Hour)
	svc := service.NewIngestService(repository.NewInMemoryRepository(), nil, 100, 30*time.Second, nil)
	handler := NewIngestionHandler(svc, tg, denyingLimiter{}, nil)

	rr := postIngest(handler, scraperToken(t, tg, "t1"), ingestBody(t, uuid.NewString(), sampleRecords()))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "42", rr.Header().Get("Retry-After"))

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, float64(42), resp["retryAfter"])
}

func TestHandleStatus(t *testing.T) {
	handler, tg := newTestHandler(t, repository.NewInMemoryRepository())
	token := scraperToken(t, tg, "t1")

	rr := postIngest(handler, token, ingestBody(t, uuid.NewString(), sampleRecords()))
	require.Equal(t, http.StatusOK, rr.Code)

	var result models.BatchResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))

	req := httptest.NewRequest(http.MethodGet, "/api/ingestion/status/"+result.UploadID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.HandleStatus(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var status models.UploadStatus
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.Equal(t, models.BatchCompleted, status.Status)
	assert.Equal(t, 2, status.Total)
}

func TestHandleStatus_NotFound(t *testing.T) {
	handler, tg := newTestHandler(t, repository.NewInMemoryRepository())
	token := scraperToken(t, tg, "t1")

	req := httptest.NewRequest(http.MethodGet, "/api/ingestion/status/no-such-upload", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.HandleStatus(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Upload not found", resp["error"])
}

func TestHandleStatus_OtherTenantGets404(t *testing.T) {
	handler, tg := newTestHandler(t, repository.NewInMemoryRepository())

	rr := postIngest(handler, scraperToken(t, tg, "t1"), ingestBody(t, uuid.NewString(), sampleRecords()))
	require.Equal(t, http.StatusOK, rr.Code)

	var result models.BatchResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))

	req := httptest.NewRequest(http.MethodGet, "/api/ingestion/status/"+result.UploadID, nil)
	req.Header.Set("Authorization", "Bearer "+scraperToken(t, tg, "t2"))
	rr = httptest.NewRecorder()
	handler.HandleStatus(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code, "cross-tenant lookups must be indistinguishable from missing uploads")
}

func TestHandleMetrics(t *testing.T) {
	handler, tg := newTestHandler(t, repository.NewInMemoryRepository())
	token := scraperToken(t, tg, "t1")

	rr := postIngest(handler, token, ingestBody(t, uuid.NewString(), sampleRecords()))
	require.Equal(t, http.StatusOK, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/ingestion/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.HandleMetrics(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		ScraperID string                `json:"scraperId"`
		Metrics   models.ScraperMetrics `json:"metrics"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "scraper-1", resp.ScraperID)
	assert.Equal(t, int64(2), resp.Metrics.TotalIngested)
}

func TestHandleHealth_NoAuthRequired(t *testing.T) {
	handler, _ := newTestHandler(t, repository.NewInMemoryRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/ingestion/health", nil)
	rr := httptest.NewRecorder()
	handler.HandleHealth(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var health models.HealthStatus
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
}
