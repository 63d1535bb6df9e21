package uploader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
	"github.com/tenderflow-systems/tenderflow-ingest/pkg/checksum"
)

func testRecords() []models.TenderRecord {
	return []models.TenderRecord{
		{ExternalID: "T-1", SourcePortal: "goszakup", Title: "Road works", Status: "open"},
	}
}

func TestUpload_Success(t *testing.T) {
	var received models.IngestRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ingestion/tenders", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(models.BatchResult{
			UploadID: "upload-1", Status: models.BatchCompleted, Processed: 1,
		})
	}))
	defer server.Close()

	client := New(server.URL, "test-token")
	result, err := client.Upload(context.Background(), "scraper-1", testRecords())
	require.NoError(t, err)
	assert.Equal(t, "upload-1", result.UploadID)
	assert.Equal(t, models.BatchCompleted, result.Status)

	// The checksum must match the tenders bytes as sent.
	assert.Equal(t, checksum.Sum(received.Tenders), received.Metadata.Checksum)
	assert.Equal(t, "scraper-1", received.Metadata.ScraperID)
	assert.NotEmpty(t, received.Metadata.BatchID)
}

func TestUpload_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	var batchIDs []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.IngestRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		batchIDs = append(batchIDs, req.Metadata.BatchID)

		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(models.BatchResult{UploadID: "upload-1", Status: models.BatchCompleted})
	}))
	defer server.Close()

	client := New(server.URL, "tok", WithBaseBackoff(time.Millisecond))
	result, err := client.Upload(context.Background(), "scraper-1", testRecords())
	require.NoError(t, err)
	assert.Equal(t, "upload-1", result.UploadID)
	assert.Equal(t, int32(3), calls.Load())

	// Retries replay the same batch ID so the server can deduplicate.
	require.Len(t, batchIDs, 3)
	assert.Equal(t, batchIDs[0], batchIDs[1])
	assert.Equal(t, batchIDs[0], batchIDs[2])
}

func TestUpload_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	var secondCallAt time.Time
	start := time.Now()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		secondCallAt = time.Now()
		json.NewEncoder(w).Encode(models.BatchResult{UploadID: "upload-1", Status: models.BatchCompleted})
	}))
	defer server.Close()

	client := New(server.URL, "tok", WithBaseBackoff(time.Millisecond))
	_, err := client.Upload(context.Background(), "scraper-1", testRecords())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, secondCallAt.Sub(start), time.Second)
}

func TestUpload_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "Checksum verification failed"})
	}))
	defer server.Close()

	client := New(server.URL, "tok", WithBaseBackoff(time.Millisecond))
	_, err := client.Upload(context.Background(), "scraper-1", testRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load(), "4xx responses must not be retried")
}

func TestUpload_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "tok", WithMaxRetries(2), WithBaseBackoff(time.Millisecond))
	_, err := client.Upload(context.Background(), "scraper-1", testRecords())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUpload_CircuitBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "tok", WithMaxRetries(5), WithBaseBackoff(time.Millisecond))
	_, err := client.Upload(context.Background(), "scraper-1", testRecords())
	require.Error(t, err)

	// Five failures opened the breaker; the next upload is rejected without
	// touching the network.
	_, err = client.Upload(context.Background(), "scraper-1", testRecords())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ingestion/status/upload-1", r.URL.Path)
		json.NewEncoder(w).Encode(models.UploadStatus{
			UploadID: "upload-1", Status: models.BatchCompleted, Processed: 5, Total: 5,
		})
	}))
	defer server.Close()

	client := New(server.URL, "tok")
	status, err := client.Status(context.Background(), "upload-1")
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, status.Status)
	assert.Equal(t, 5, status.Processed)
}

func TestStatus_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "tok")
	_, err := client.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrUploadNotFound)
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	current := time.Now()
	cb := NewCircuitBreaker(3, time.Minute)
	cb.now = func() time.Time { return current }

	require.NoError(t, cb.Allow())

	// Below the threshold the breaker stays closed.
	cb.RecordFailure()
	cb.RecordFailure()
	require.NoError(t, cb.Allow())

	// Threshold reached: open.
	cb.RecordFailure()
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	// After the recovery timeout one probe is admitted.
	current = current.Add(time.Minute + time.Second)
	require.NoError(t, cb.Allow())

	// A failed probe reopens immediately.
	cb.RecordFailure()
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	// A successful probe closes and resets the count.
	current = current.Add(time.Minute + time.Second)
	require.NoError(t, cb.Allow())
	cb.RecordSuccess()
	require.NoError(t, cb.Allow())
	cb.RecordFailure()
	require.NoError(t, cb.Allow(), "one failure after reset must not reopen")
}
