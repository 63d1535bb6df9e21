// Package idempotency makes retried batch submissions safe. The claim step
// is the pipeline's sole concurrency safeguard: at most one submission per
// (tenant, batch id) ever reaches reconciliation.
package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/repository"
)

// Guard claims batch IDs through the audit log's unique constraint.
type Guard struct {
	repo repository.Repository
}

func New(repo repository.Repository) *Guard {
	return &Guard{repo: repo}
}

// CheckOrClaim claims (tenantID, batchID) by inserting a pending audit entry,
// or reports the prior attempt. The claim is a single conditional insert, not
// a read-then-write, so concurrent duplicates cannot both win.
func (g *Guard) CheckOrClaim(ctx context.Context, tenantID, batchID, scraperID string, totalCount int) (*repository.ClaimResult, error) {
	entry := &models.IngestionLogEntry{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		BatchID:    batchID,
		ScraperID:  scraperID,
		TotalCount: totalCount,
		StartedAt:  time.Now().UTC(),
	}
	return g.repo.ClaimBatch(ctx, entry)
}

// Release finalizes a claimed batch as failed so a later retry can take the
// claim over. Used when processing aborts after a successful claim.
func (g *Guard) Release(ctx context.Context, uploadID, reason string) error {
	return g.repo.FinalizeBatch(ctx, uploadID, models.BatchFailed, 0, 0, 0, 0, reason)
}
