// Package service orchestrates the ingestion pipeline: validation,
// integrity, idempotency, sanitization, and reconciliation, in that order.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/dlq"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/idempotency"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/integrity"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/logging"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/metrics"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/reconcile"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/repository"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/sanitize"
)

// IngestService runs batches through the pipeline and answers status and
// metrics queries from the audit log.
type IngestService struct {
	repo         repository.Repository
	validator    *integrity.Validator
	guard        *idempotency.Guard
	sanitizer    *sanitize.Sanitizer
	engine       *reconcile.Engine
	deadLetters  dlq.Writer
	maxBatchSize int
	batchTimeout time.Duration
	logger       *slog.Logger
}

func NewIngestService(repo repository.Repository, deadLetters dlq.Writer,
	maxBatchSize int, batchTimeout time.Duration, logger *slog.Logger) *IngestService {
	if deadLetters == nil {
		deadLetters = dlq.NoOpWriter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		repo:         repo,
		validator:    integrity.New(),
		guard:        idempotency.New(repo),
		sanitizer:    sanitize.New(),
		engine:       reconcile.New(repo),
		deadLetters:  deadLetters,
		maxBatchSize: maxBatchSize,
		batchTimeout: batchTimeout,
		logger:       logger,
	}
}

// ProcessBatch runs one submission through the full pipeline. Stage order is
// fixed: schema and integrity checks are pure and run before the idempotency
// claim, so a corrupt payload never consumes a batch ID. Duplicate
// submissions replay the stored result without touching tender storage.
func (s *IngestService) ProcessBatch(ctx context.Context, tenantID string, req *models.IngestRequest) (*models.BatchResult, error) {
	records, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(req.Tenders, req.Metadata.Checksum); err != nil {
		metrics.ChecksumFailures.Inc()
		s.logger.WarnContext(ctx, "Integrity check failed",
			logging.TenantID(tenantID),
			logging.BatchID(req.Metadata.BatchID),
		)
		return nil, err
	}

	claim, err := s.guard.CheckOrClaim(ctx, tenantID, req.Metadata.BatchID, req.Metadata.ScraperID, len(records))
	if err != nil {
		return nil, fmt.Errorf("claiming batch: %w", err)
	}

	switch claim.Outcome {
	case repository.ClaimInFlight:
		return nil, models.ErrBatchInProgress
	case repository.ClaimDuplicate:
		prior := claim.Entry
		s.logger.InfoContext(ctx, "Duplicate batch replayed",
			logging.TenantID(tenantID),
			logging.BatchID(prior.BatchID),
			logging.UploadID(prior.ID),
		)
		metrics.BatchesTotal.WithLabelValues(string(models.BatchDuplicate)).Inc()
		return &models.BatchResult{
			UploadID:  prior.ID,
			Status:    models.BatchDuplicate,
			Processed: prior.ProcessedCount,
			Skipped:   prior.SkippedCount,
		}, nil
	}

	return s.processClaimed(ctx, tenantID, req, records, claim.Entry)
}

// processClaimed runs the mutation stages of a freshly claimed batch. Every
// exit path finalizes the audit entry to a terminal status.
func (s *IngestService) processClaimed(ctx context.Context, tenantID string,
	req *models.IngestRequest, records []models.TenderRecord,
	entry *models.IngestionLogEntry) (*models.BatchResult, error) {

	start := time.Now()
	metrics.BatchBytesTotal.Add(float64(len(req.Tenders)))

	for i := range records {
		records[i] = s.sanitizer.Clean(records[i])
	}

	rctx, cancel := context.WithTimeout(ctx, s.batchTimeout)
	defer cancel()

	result, err := s.engine.Reconcile(rctx, tenantID, records)
	if err != nil {
		metrics.StorageErrors.Inc()
		metrics.BatchesTotal.WithLabelValues(string(models.BatchFailed)).Inc()
		s.failBatch(ctx, tenantID, req, entry, err)
		return nil, err
	}

	if err := s.repo.FinalizeBatch(ctx, entry.ID, models.BatchCompleted,
		result.Processed(), result.Skipped(),
		len(result.InsertedIDs), len(result.UpdatedIDs), ""); err != nil {
		metrics.StorageErrors.Inc()
		return nil, fmt.Errorf("finalizing batch %s: %w", entry.ID, err)
	}

	metrics.BatchesTotal.WithLabelValues(string(models.BatchCompleted)).Inc()
	metrics.RecordsTotal.WithLabelValues("inserted").Add(float64(len(result.InsertedIDs)))
	metrics.RecordsTotal.WithLabelValues("updated").Add(float64(len(result.UpdatedIDs)))
	metrics.RecordsTotal.WithLabelValues("skipped").Add(float64(len(result.SkippedIDs)))
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())

	s.logger.InfoContext(ctx, "Batch completed",
		logging.TenantID(tenantID),
		logging.ScraperID(entry.ScraperID),
		logging.BatchID(entry.BatchID),
		logging.UploadID(entry.ID),
		slog.Int("inserted", len(result.InsertedIDs)),
		slog.Int("updated", len(result.UpdatedIDs)),
		slog.Int("skipped", len(result.SkippedIDs)),
		logging.Duration(time.Since(start).Milliseconds()),
	)

	return &models.BatchResult{
		UploadID:  entry.ID,
		Status:    models.BatchCompleted,
		Processed: result.Processed(),
		Skipped:   result.Skipped(),
	}, nil
}

// failBatch finalizes the audit entry as failed and preserves the payload on
// the dead-letter queue. Neither step may mask the original error.
func (s *IngestService) failBatch(ctx context.Context, tenantID string,
	req *models.IngestRequest, entry *models.IngestionLogEntry, cause error) {

	if err := s.guard.Release(ctx, entry.ID, cause.Error()); err != nil {
		s.logger.ErrorContext(ctx, "Failed to finalize failed batch",
			logging.UploadID(entry.ID),
			logging.Err(err),
		)
	}

	failed := &dlq.FailedBatch{
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
		UploadID:  entry.ID,
		Metadata:  req.Metadata,
		Tenders:   req.Tenders,
		Error:     cause.Error(),
		Reason:    "reconciliation_failure",
	}
	if err := s.deadLetters.Write(ctx, failed); err != nil {
		s.logger.ErrorContext(ctx, "Failed to write batch to dead letter queue",
			logging.UploadID(entry.ID),
			logging.Err(err),
		)
	}

	s.logger.ErrorContext(ctx, "Batch failed",
		logging.TenantID(tenantID),
		logging.BatchID(entry.BatchID),
		logging.UploadID(entry.ID),
		logging.Err(cause),
	)
}

// validateRequest enforces the wire contract: parseable record array,
// required metadata, and the batch size bound.
func (s *IngestService) validateRequest(req *models.IngestRequest) ([]models.TenderRecord, error) {
	if req.Metadata.ScraperID == "" {
		return nil, &models.SchemaError{Reason: "metadata.scraperId is required"}
	}
	if req.Metadata.BatchID == "" {
		return nil, &models.SchemaError{Reason: "metadata.batchId is required"}
	}
	// The audit log stores batch_id as a UUID; reject malformed IDs here so
	// they surface as a client error instead of a storage failure.
	if _, err := uuid.Parse(req.Metadata.BatchID); err != nil {
		return nil, &models.SchemaError{Reason: "metadata.batchId must be a UUID"}
	}
	if req.Metadata.Checksum == "" {
		return nil, &models.SchemaError{Reason: "metadata.checksum is required"}
	}
	if len(req.Tenders) == 0 {
		return nil, &models.SchemaError{Reason: "tenders array is required"}
	}

	var records []models.TenderRecord
	if err := json.Unmarshal(req.Tenders, &records); err != nil {
		return nil, &models.SchemaError{Reason: "tenders is not a valid record array"}
	}
	if len(records) > s.maxBatchSize {
		return nil, &models.SchemaError{
			Reason: fmt.Sprintf("batch size %d exceeds maximum %d", len(records), s.maxBatchSize),
		}
	}
	for i, rec := range records {
		if rec.ExternalID == "" {
			return nil, &models.SchemaError{Reason: fmt.Sprintf("record %d: externalId is required", i)}
		}
		if rec.SourcePortal == "" {
			return nil, &models.SchemaError{Reason: fmt.Sprintf("record %d: sourcePortal is required", i)}
		}
		if rec.Title == "" {
			return nil, &models.SchemaError{Reason: fmt.Sprintf("record %d: title is required", i)}
		}
	}
	return records, nil
}

// Status reports the state of one upload by its public upload ID. Lookups
// are tenant-scoped so one tenant can never observe another's uploads.
func (s *IngestService) Status(ctx context.Context, tenantID, uploadID string) (*models.UploadStatus, error) {
	// Upload IDs are minted as UUIDs; anything else cannot exist.
	if _, err := uuid.Parse(uploadID); err != nil {
		return nil, models.ErrUploadNotFound
	}
	entry, err := s.repo.GetBatchByID(ctx, uploadID)
	if err != nil {
		if errors.Is(err, repository.ErrBatchNotFound) {
			return nil, models.ErrUploadNotFound
		}
		return nil, fmt.Errorf("looking up upload %s: %w", uploadID, err)
	}
	if entry.TenantID != tenantID {
		return nil, models.ErrUploadNotFound
	}
	return &models.UploadStatus{
		UploadID:  entry.ID,
		Status:    entry.Status,
		Processed: entry.ProcessedCount,
		Total:     entry.TotalCount,
	}, nil
}

// Metrics aggregates a scraper's history from the audit log.
func (s *IngestService) Metrics(ctx context.Context, tenantID, scraperID string) (*models.ScraperMetrics, error) {
	m, err := s.repo.ScraperMetrics(ctx, tenantID, scraperID)
	if err != nil {
		return nil, fmt.Errorf("aggregating scraper metrics: %w", err)
	}
	return m, nil
}

// Health reports dependency reachability.
func (s *IngestService) Health(ctx context.Context) *models.HealthStatus {
	services := map[string]bool{
		"database": s.repo.Ping(ctx) == nil,
		"api":      true,
	}
	status := "healthy"
	for _, ok := range services {
		if !ok {
			status = "degraded"
		}
	}
	return &models.HealthStatus{Status: status, Services: services}
}
