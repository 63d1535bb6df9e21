// Package dlq preserves failed batch payloads for operator replay.
package dlq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
)

// FailedBatch is the dead-letter record for one failed ingestion attempt.
type FailedBatch struct {
	Timestamp time.Time            `json:"timestamp"`
	TenantID  string               `json:"tenantId"`
	UploadID  string               `json:"uploadId"`
	Metadata  models.BatchMetadata `json:"metadata"`
	Tenders   json.RawMessage      `json:"tenders"`
	Error     string               `json:"error"`
	Reason    string               `json:"reason"`
}

// Writer records failed batches. Implementations must be safe for
// concurrent use.
type Writer interface {
	Write(ctx context.Context, batch *FailedBatch) error
	Close() error
}

// NoOpWriter discards failed batches (DLQ disabled).
type NoOpWriter struct{}

func (NoOpWriter) Write(ctx context.Context, batch *FailedBatch) error {
	return nil
}

func (NoOpWriter) Close() error {
	return nil
}
