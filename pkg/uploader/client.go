// Package uploader is the client half of the ingestion protocol: it batches
// tender records, attaches the content checksum, and submits them with retry
// and circuit-breaker protection.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
	"github.com/tenderflow-systems/tenderflow-ingest/pkg/checksum"
)

const (
	defaultMaxRetries  = 3
	defaultBaseBackoff = 2 * time.Second
	defaultTimeout     = 30 * time.Second
	maxBackoff         = 5 * time.Minute
)

// Client submits tender batches to the ingestion service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *CircuitBreaker

	maxRetries  int
	baseBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets the number of retry attempts per upload.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBaseBackoff sets the first retry delay; later delays double it.
func WithBaseBackoff(d time.Duration) Option {
	return func(c *Client) { c.baseBackoff = d }
}

// New returns a Client for the given service URL and scraper token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		token:       token,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		breaker:     NewCircuitBreaker(5, 60*time.Second),
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload submits one batch of records. The batch ID is generated here so
// every retry of the same call replays the same idempotency key; the
// checksum is computed over the exact bytes that go on the wire.
func (c *Client) Upload(ctx context.Context, scraperID string, records []models.TenderRecord) (*models.BatchResult, error) {
	raw, err := checksum.Serialize(records)
	if err != nil {
		return nil, fmt.Errorf("serializing records: %w", err)
	}

	req := models.IngestRequest{
		Tenders: raw,
		Metadata: models.BatchMetadata{
			ScraperID: scraperID,
			BatchID:   uuid.New().String(),
			ScrapedAt: time.Now().UTC(),
			Checksum:  checksum.Sum(raw),
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt, lastErr)):
			}
		}

		if err := c.breaker.Allow(); err != nil {
			return nil, err
		}

		result, retryable, err := c.post(ctx, body)
		if err == nil {
			c.breaker.RecordSuccess()
			return result, nil
		}

		lastErr = err
		if !retryable {
			// Client-side errors (bad payload, auth) are the caller's to fix
			// and do not count against the server's health.
			return nil, err
		}
		c.breaker.RecordFailure()
	}

	return nil, fmt.Errorf("upload failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// retryAfterError carries the server's retry hint from a 429.
type retryAfterError struct {
	after time.Duration
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.after)
}

func (c *Client) post(ctx context.Context, body []byte) (result *models.BatchResult, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/ingestion/tenders", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var br models.BatchResult
		if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
			return nil, false, fmt.Errorf("decoding response: %w", err)
		}
		return &br, false, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		after := c.baseBackoff
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				after = time.Duration(secs) * time.Second
			}
		}
		return nil, true, &retryAfterError{after: after}

	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status %d", resp.StatusCode)

	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, false, fmt.Errorf("upload rejected: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
}

// backoff returns the wait before the given attempt: the server's
// Retry-After when rate limited, otherwise exponential with jitter.
func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	if rl, ok := lastErr.(*retryAfterError); ok {
		return rl.after
	}
	d := c.baseBackoff << (attempt - 1)
	if d > maxBackoff {
		d = maxBackoff
	}
	if d < 2*time.Millisecond {
		return d
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d + jitter
}

// Status polls the state of a prior upload.
func (c *Client) Status(ctx context.Context, uploadID string) (*models.UploadStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/ingestion/status/"+uploadID, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var status models.UploadStatus
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return &status, nil
	case http.StatusNotFound:
		return nil, models.ErrUploadNotFound
	default:
		return nil, fmt.Errorf("status check failed: status %d", resp.StatusCode)
	}
}

// Health checks the service's public health endpoint.
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/ingestion/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health models.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &health, nil
}
