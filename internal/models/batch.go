package models

import (
	"encoding/json"
	"time"
)

// BatchStatus is the state of one batch-processing attempt.
// Transitions: pending -> completed | duplicate | failed. Nothing else.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchCompleted BatchStatus = "completed"
	BatchDuplicate BatchStatus = "duplicate"
	BatchFailed    BatchStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchDuplicate || s == BatchFailed
}

// BatchMetadata is the envelope accompanying a record set.
type BatchMetadata struct {
	ScraperID  string    `json:"scraperId"`
	BatchID    string    `json:"batchId"`
	ScrapedAt  time.Time `json:"scrapedAt"`
	Checksum   string    `json:"checksum"`
	PageNumber *int      `json:"pageNumber,omitempty"`
	TotalPages *int      `json:"totalPages,omitempty"`
}

// IngestionLogEntry is the audit record of one batch attempt.
// Immutable once finalized; its ID doubles as the public upload ID.
type IngestionLogEntry struct {
	ID             string
	TenantID       string
	BatchID        string
	ScraperID      string
	Status         BatchStatus
	TotalCount     int
	ProcessedCount int
	SkippedCount   int
	InsertedCount  int
	UpdatedCount   int
	ErrorDetails   string
	StartedAt      time.Time
	CompletedAt    *time.Time
}

// IngestRequest is the wire format of the ingestion endpoint. Tenders is kept
// as raw bytes so the integrity check runs over the payload exactly as
// received.
type IngestRequest struct {
	Tenders  json.RawMessage `json:"tenders"`
	Metadata BatchMetadata   `json:"metadata"`
}

// BatchResult summarizes one processed (or replayed) batch.
type BatchResult struct {
	UploadID  string      `json:"uploadId"`
	Status    BatchStatus `json:"status"`
	Processed int         `json:"processed"`
	Skipped   int         `json:"skipped"`
}

// UploadStatus is the status-polling response.
type UploadStatus struct {
	UploadID  string      `json:"uploadId"`
	Status    BatchStatus `json:"status"`
	Processed int         `json:"processed"`
	Total     int         `json:"total"`
}

// ScraperMetrics aggregates a scraper's history from the audit log.
type ScraperMetrics struct {
	TotalIngested   int64      `json:"totalIngested"`
	TotalErrors     int64      `json:"totalErrors"`
	LastIngestionAt *time.Time `json:"lastIngestionAt"`
}

// HealthStatus is the public health-check response.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}
