package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
)

var (
	ErrTenderNotFound = errors.New("tender not found")
	ErrBatchNotFound  = errors.New("batch not found")

	// ErrInvalidTransition is returned when finalizing a batch that is not
	// pending; terminal audit entries are immutable.
	ErrInvalidTransition = errors.New("batch is not pending")
)

// ClaimOutcome describes the result of an idempotency claim attempt.
type ClaimOutcome int

const (
	// ClaimFresh means the batch was claimed and may be processed.
	ClaimFresh ClaimOutcome = iota
	// ClaimDuplicate means a prior attempt reached a terminal success state;
	// the stored counts must be replayed unchanged.
	ClaimDuplicate
	// ClaimInFlight means another submission holds the pending claim.
	ClaimInFlight
)

// ClaimResult carries the claim outcome and the audit entry backing it.
// For ClaimFresh the entry is the newly claimed pending row; otherwise it is
// the prior attempt's row.
type ClaimResult struct {
	Outcome ClaimOutcome
	Entry   *models.IngestionLogEntry
}

// TenderStore is the tenant-scoped tender access surface. Within InTx the
// store operates inside a single transaction.
type TenderStore interface {
	GetTender(ctx context.Context, tenantID, sourcePortal, externalID string) (*models.StoredTender, error)

	// UpsertTender inserts the tender or, when the natural key already
	// exists, overwrites its mutable fields keeping the original ID and
	// CreatedAt. Conflicts between concurrent first sightings of the same
	// key serialize at the storage layer instead of failing the batch.
	UpsertTender(ctx context.Context, tender *models.StoredTender) error

	UpdateTender(ctx context.Context, tender *models.StoredTender) error
}

// Repository is the storage collaborator of the ingestion core: tenders
// keyed by (tenant, portal, external id) plus the batch audit log.
type Repository interface {
	TenderStore

	// InTx runs fn inside a single storage transaction. Any error from fn
	// rolls back every write made through the provided store.
	InTx(ctx context.Context, fn func(TenderStore) error) error

	// ClaimBatch atomically claims (tenantID, batchID) for processing by
	// inserting a pending audit entry. A prior failed attempt is taken over;
	// terminal and in-flight attempts are reported via the ClaimResult.
	ClaimBatch(ctx context.Context, entry *models.IngestionLogEntry) (*ClaimResult, error)

	// FinalizeBatch transitions a pending entry to a terminal status and
	// records the final counts. It is the only writer of CompletedAt.
	FinalizeBatch(ctx context.Context, uploadID string, status models.BatchStatus,
		processed, skipped, inserted, updated int, errorDetails string) error

	GetBatchByID(ctx context.Context, uploadID string) (*models.IngestionLogEntry, error)
	GetBatch(ctx context.Context, tenantID, batchID string) (*models.IngestionLogEntry, error)

	// ScraperMetrics aggregates the audit log for one scraper identity.
	ScraperMetrics(ctx context.Context, tenantID, scraperID string) (*models.ScraperMetrics, error)

	// CountStuckPending counts pending entries older than the threshold.
	// Operational signal only; the core never auto-resolves them.
	CountStuckPending(ctx context.Context, olderThan time.Duration) (int64, error)

	Ping(ctx context.Context) error
	Close()
}
