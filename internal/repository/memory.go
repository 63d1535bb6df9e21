package repository

import (
	"context"
	"sync"
	"time"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
)

// InMemoryRepository is a map-backed Repository for development and tests.
// Transactions are simulated by applying fn to a copy of the tender map and
// swapping it in only on success.
type InMemoryRepository struct {
	mu          sync.Mutex
	tenders     map[string]models.StoredTender
	logs        map[string]*models.IngestionLogEntry
	logsByBatch map[string]string // tenant|batch -> upload id
	now         func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		tenders:     make(map[string]models.StoredTender),
		logs:        make(map[string]*models.IngestionLogEntry),
		logsByBatch: make(map[string]string),
		now:         time.Now,
	}
}

func tenderKey(tenantID, sourcePortal, externalID string) string {
	return tenantID + "|" + sourcePortal + "|" + externalID
}

func batchKey(tenantID, batchID string) string {
	return tenantID + "|" + batchID
}

func (r *InMemoryRepository) GetTender(ctx context.Context, tenantID, sourcePortal, externalID string) (*models.StoredTender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return getFromMap(r.tenders, tenantID, sourcePortal, externalID)
}

func (r *InMemoryRepository) UpsertTender(ctx context.Context, tender *models.StoredTender) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	upsertInMap(r.tenders, tender)
	return nil
}

func (r *InMemoryRepository) UpdateTender(ctx context.Context, tender *models.StoredTender) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return updateInMap(r.tenders, tender)
}

func getFromMap(m map[string]models.StoredTender, tenantID, sourcePortal, externalID string) (*models.StoredTender, error) {
	t, ok := m[tenderKey(tenantID, sourcePortal, externalID)]
	if !ok {
		return nil, ErrTenderNotFound
	}
	copied := t
	return &copied, nil
}

// upsertInMap mirrors the SQL upsert: an existing natural key keeps its ID
// and CreatedAt while the mutable fields are overwritten.
func upsertInMap(m map[string]models.StoredTender, tender *models.StoredTender) {
	key := tenderKey(tender.TenantID, tender.SourcePortal, tender.ExternalID)
	stored := *tender
	if existing, ok := m[key]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	}
	m[key] = stored
}

func updateInMap(m map[string]models.StoredTender, tender *models.StoredTender) error {
	key := tenderKey(tender.TenantID, tender.SourcePortal, tender.ExternalID)
	existing, ok := m[key]
	if !ok {
		return ErrTenderNotFound
	}
	updated := *tender
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	m[key] = updated
	return nil
}

// memTxStore operates on the transaction's working copy of the tender map.
type memTxStore struct {
	tenders map[string]models.StoredTender
}

func (s *memTxStore) GetTender(ctx context.Context, tenantID, sourcePortal, externalID string) (*models.StoredTender, error) {
	return getFromMap(s.tenders, tenantID, sourcePortal, externalID)
}

func (s *memTxStore) UpsertTender(ctx context.Context, tender *models.StoredTender) error {
	upsertInMap(s.tenders, tender)
	return nil
}

func (s *memTxStore) UpdateTender(ctx context.Context, tender *models.StoredTender) error {
	return updateInMap(s.tenders, tender)
}

func (r *InMemoryRepository) InTx(ctx context.Context, fn func(TenderStore) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	working := make(map[string]models.StoredTender, len(r.tenders))
	for k, v := range r.tenders {
		working[k] = v
	}

	if err := fn(&memTxStore{tenders: working}); err != nil {
		return err
	}

	r.tenders = working
	return nil
}

func (r *InMemoryRepository) ClaimBatch(ctx context.Context, entry *models.IngestionLogEntry) (*ClaimResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := batchKey(entry.TenantID, entry.BatchID)
	if id, ok := r.logsByBatch[key]; ok {
		existing := r.logs[id]
		switch existing.Status {
		case models.BatchCompleted, models.BatchDuplicate:
			copied := *existing
			return &ClaimResult{Outcome: ClaimDuplicate, Entry: &copied}, nil
		case models.BatchFailed:
			existing.Status = models.BatchPending
			existing.ScraperID = entry.ScraperID
			existing.TotalCount = entry.TotalCount
			existing.StartedAt = entry.StartedAt
			existing.ProcessedCount = 0
			existing.SkippedCount = 0
			existing.InsertedCount = 0
			existing.UpdatedCount = 0
			existing.ErrorDetails = ""
			existing.CompletedAt = nil
			entry.ID = existing.ID
			entry.Status = models.BatchPending
			return &ClaimResult{Outcome: ClaimFresh, Entry: entry}, nil
		default:
			copied := *existing
			return &ClaimResult{Outcome: ClaimInFlight, Entry: &copied}, nil
		}
	}

	claimed := *entry
	claimed.Status = models.BatchPending
	r.logs[claimed.ID] = &claimed
	r.logsByBatch[key] = claimed.ID
	entry.Status = models.BatchPending
	return &ClaimResult{Outcome: ClaimFresh, Entry: entry}, nil
}

func (r *InMemoryRepository) FinalizeBatch(ctx context.Context, uploadID string, status models.BatchStatus,
	processed, skipped, inserted, updated int, errorDetails string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.logs[uploadID]
	if !ok {
		return ErrBatchNotFound
	}
	if entry.Status != models.BatchPending {
		return ErrInvalidTransition
	}

	now := r.now()
	entry.Status = status
	entry.ProcessedCount = processed
	entry.SkippedCount = skipped
	entry.InsertedCount = inserted
	entry.UpdatedCount = updated
	entry.ErrorDetails = errorDetails
	entry.CompletedAt = &now
	return nil
}

func (r *InMemoryRepository) GetBatchByID(ctx context.Context, uploadID string) (*models.IngestionLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.logs[uploadID]
	if !ok {
		return nil, ErrBatchNotFound
	}
	copied := *entry
	return &copied, nil
}

func (r *InMemoryRepository) GetBatch(ctx context.Context, tenantID, batchID string) (*models.IngestionLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.logsByBatch[batchKey(tenantID, batchID)]
	if !ok {
		return nil, ErrBatchNotFound
	}
	copied := *r.logs[id]
	return &copied, nil
}

func (r *InMemoryRepository) ScraperMetrics(ctx context.Context, tenantID, scraperID string) (*models.ScraperMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var m models.ScraperMetrics
	for _, entry := range r.logs {
		if entry.TenantID != tenantID || entry.ScraperID != scraperID {
			continue
		}
		switch entry.Status {
		case models.BatchCompleted:
			m.TotalIngested += int64(entry.ProcessedCount)
			if entry.CompletedAt != nil &&
				(m.LastIngestionAt == nil || entry.CompletedAt.After(*m.LastIngestionAt)) {
				m.LastIngestionAt = entry.CompletedAt
			}
		case models.BatchFailed:
			m.TotalErrors++
		}
	}
	return &m, nil
}

func (r *InMemoryRepository) CountStuckPending(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	var count int64
	for _, entry := range r.logs {
		if entry.Status == models.BatchPending && entry.StartedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *InMemoryRepository) Close() {}
