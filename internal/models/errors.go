package models

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy for the ingestion pipeline. Handlers map these onto HTTP
// statuses; the taxonomy name is what clients see, never storage internals.

var (
	// ErrUploadNotFound is returned by status lookups for unknown upload IDs.
	ErrUploadNotFound = errors.New("upload not found")

	// ErrBatchInProgress is returned when a batch ID is claimed by another
	// in-flight submission that has not reached a terminal status yet.
	ErrBatchInProgress = errors.New("batch is already being processed")
)

// IntegrityError reports a checksum mismatch between the claimed and the
// computed content hash of the record array.
type IntegrityError struct {
	Claimed  string
	Computed string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch: claimed %s, computed %s", e.Claimed, e.Computed)
}

// SchemaError reports a malformed batch: unparseable records, missing
// metadata fields, or a batch above the size bound.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "invalid batch: " + e.Reason
}

// RateLimitError reports an admission-control denial with retry guidance.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", int(e.RetryAfter.Seconds()))
}

// ReconciliationError wraps a storage-layer failure during batch upsert.
// The batch is rolled back and the audit entry finalized as failed; a retry
// with the same batch ID is safe.
type ReconciliationError struct {
	Err error
}

func (e *ReconciliationError) Error() string {
	return "reconciliation failed: " + e.Err.Error()
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
