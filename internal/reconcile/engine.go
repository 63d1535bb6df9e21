// Package reconcile applies a batch of sanitized tender records against the
// store with insert-or-update-or-skip semantics.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/normalizer"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/repository"
	"github.com/tenderflow-systems/tenderflow-ingest/pkg/checksum"
)

// TxRunner is the slice of the repository the engine needs: a transactional
// tender store.
type TxRunner interface {
	InTx(ctx context.Context, fn func(repository.TenderStore) error) error
}

// Result reports the outcome of one batch reconciliation.
// Processed = inserts + updates; Skipped = unchanged no-ops.
type Result struct {
	InsertedIDs []string
	UpdatedIDs  []string
	SkippedIDs  []string
}

func (r Result) Processed() int {
	return len(r.InsertedIDs) + len(r.UpdatedIDs)
}

func (r Result) Skipped() int {
	return len(r.SkippedIDs)
}

// Engine reconciles incoming records against stored tenders by natural key.
type Engine struct {
	store TxRunner
	now   func() time.Time
}

func New(store TxRunner) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Reconcile upserts records in array order inside a single transaction.
// Queries and writes are always scoped by tenantID; a record with a
// duplicate external ID later in the batch wins over an earlier one. Any
// storage failure aborts the whole batch and surfaces a ReconciliationError.
func (e *Engine) Reconcile(ctx context.Context, tenantID string, records []models.TenderRecord) (Result, error) {
	var result Result

	err := e.store.InTx(ctx, func(store repository.TenderStore) error {
		for _, rec := range records {
			outcome, err := e.reconcileOne(ctx, store, tenantID, rec)
			if err != nil {
				return err
			}
			switch outcome {
			case outcomeInserted:
				result.InsertedIDs = append(result.InsertedIDs, rec.ExternalID)
			case outcomeUpdated:
				result.UpdatedIDs = append(result.UpdatedIDs, rec.ExternalID)
			case outcomeSkipped:
				result.SkippedIDs = append(result.SkippedIDs, rec.ExternalID)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, &models.ReconciliationError{Err: err}
	}
	return result, nil
}

type outcome int

const (
	outcomeInserted outcome = iota
	outcomeUpdated
	outcomeSkipped
)

func (e *Engine) reconcileOne(ctx context.Context, store repository.TenderStore, tenantID string, rec models.TenderRecord) (outcome, error) {
	incoming := e.toStored(tenantID, rec)

	existing, err := store.GetTender(ctx, tenantID, rec.SourcePortal, rec.ExternalID)
	if err != nil {
		if !errors.Is(err, repository.ErrTenderNotFound) {
			return 0, err
		}
		incoming.ID = uuid.New().String()
		incoming.CreatedAt = e.now().UTC()
		incoming.UpdatedAt = incoming.CreatedAt
		// Upsert, not insert: a concurrent batch may have created the row
		// since the lookup, and losing that race must not fail the batch.
		if err := store.UpsertTender(ctx, incoming); err != nil {
			return 0, err
		}
		return outcomeInserted, nil
	}

	if existing.ContentHash == incoming.ContentHash {
		return outcomeSkipped, nil
	}

	incoming.ID = existing.ID
	incoming.CreatedAt = existing.CreatedAt
	incoming.UpdatedAt = e.now().UTC()
	if err := store.UpdateTender(ctx, incoming); err != nil {
		return 0, err
	}
	return outcomeUpdated, nil
}

// toStored maps a sanitized record to its persisted form, applying the
// normalizer and computing the change-detection hash.
func (e *Engine) toStored(tenantID string, rec models.TenderRecord) *models.StoredTender {
	t := &models.StoredTender{
		TenantID:        tenantID,
		SourcePortal:    rec.SourcePortal,
		ExternalID:      rec.ExternalID,
		Title:           rec.Title,
		RawStatus:       rec.Status,
		Status:          normalizer.Status(rec.Status),
		Description:     rec.Description,
		BuyerName:       rec.BuyerName,
		Location:        rec.Location,
		Category:        rec.Category,
		EstimatedValue:  rec.EstimatedValue,
		ValueNumeric:    normalizer.Value(rec.EstimatedValue),
		Currency:        normalizer.Currency(rec.Currency),
		Deadline:        rec.Deadline,
		PublicationDate: rec.PublicationDate,
		SourceURL:       rec.SourceURL,
	}
	t.ContentHash = ContentHash(t)
	return t
}

// ContentHash derives the change-detection hash over the comparable fields
// of a tender. Timestamps and system fields are excluded.
func ContentHash(t *models.StoredTender) string {
	var deadline, published string
	if t.Deadline != nil {
		deadline = t.Deadline.UTC().Format(time.RFC3339)
	}
	if t.PublicationDate != nil {
		published = t.PublicationDate.UTC().Format(time.RFC3339)
	}
	fields := strings.Join([]string{
		t.Title, t.RawStatus, t.Description, t.BuyerName, t.Location,
		t.Category, t.EstimatedValue, t.Currency, deadline, published,
		t.SourceURL,
	}, "\x1f")
	return checksum.Sum([]byte(fields))
}
