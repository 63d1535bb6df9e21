package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
)

const queryTimeout = 5 * time.Second

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.pool.Ping(ctx)
}

// querier abstracts pool vs. transaction so the tender queries are shared.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const tenderColumns = `id, tenant_id, source_portal, external_id, title, raw_status, status,
	description, buyer_name, location, category, estimated_value,
	value_numeric, currency, deadline, publication_date, source_url,
	content_hash, created_at, updated_at`

func (r *PostgresRepository) GetTender(ctx context.Context, tenantID, sourcePortal, externalID string) (*models.StoredTender, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return getTender(ctx, r.pool, tenantID, sourcePortal, externalID)
}

func (r *PostgresRepository) UpsertTender(ctx context.Context, tender *models.StoredTender) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return upsertTender(ctx, r.pool, tender)
}

func (r *PostgresRepository) UpdateTender(ctx context.Context, tender *models.StoredTender) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return updateTender(ctx, r.pool, tender)
}

// txTenderStore exposes the tender queries bound to one transaction.
type txTenderStore struct {
	tx pgx.Tx
}

func (s *txTenderStore) GetTender(ctx context.Context, tenantID, sourcePortal, externalID string) (*models.StoredTender, error) {
	return getTender(ctx, s.tx, tenantID, sourcePortal, externalID)
}

func (s *txTenderStore) UpsertTender(ctx context.Context, tender *models.StoredTender) error {
	return upsertTender(ctx, s.tx, tender)
}

func (s *txTenderStore) UpdateTender(ctx context.Context, tender *models.StoredTender) error {
	return updateTender(ctx, s.tx, tender)
}

// InTx runs fn inside a single transaction so a mid-batch failure rolls the
// whole batch back instead of applying it partially.
func (r *PostgresRepository) InTx(ctx context.Context, fn func(TenderStore) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txTenderStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func getTender(ctx context.Context, q querier, tenantID, sourcePortal, externalID string) (*models.StoredTender, error) {
	query := `SELECT ` + tenderColumns + `
		FROM tenders
		WHERE tenant_id = $1 AND source_portal = $2 AND external_id = $3`

	var t models.StoredTender
	err := q.QueryRow(ctx, query, tenantID, sourcePortal, externalID).Scan(
		&t.ID, &t.TenantID, &t.SourcePortal, &t.ExternalID, &t.Title,
		&t.RawStatus, &t.Status, &t.Description, &t.BuyerName, &t.Location,
		&t.Category, &t.EstimatedValue, &t.ValueNumeric, &t.Currency,
		&t.Deadline, &t.PublicationDate, &t.SourceURL, &t.ContentHash,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenderNotFound
		}
		return nil, fmt.Errorf("failed to get tender: %w", err)
	}
	return &t, nil
}

// upsertTender resolves concurrent first sightings of the same natural key
// at the storage layer: the loser's insert becomes an update of the winner's
// row, keeping its id and created_at.
func upsertTender(ctx context.Context, q querier, tender *models.StoredTender) error {
	query := `
		INSERT INTO tenders (` + tenderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (tenant_id, source_portal, external_id) DO UPDATE
		SET title = EXCLUDED.title, raw_status = EXCLUDED.raw_status,
		    status = EXCLUDED.status, description = EXCLUDED.description,
		    buyer_name = EXCLUDED.buyer_name, location = EXCLUDED.location,
		    category = EXCLUDED.category,
		    estimated_value = EXCLUDED.estimated_value,
		    value_numeric = EXCLUDED.value_numeric,
		    currency = EXCLUDED.currency, deadline = EXCLUDED.deadline,
		    publication_date = EXCLUDED.publication_date,
		    source_url = EXCLUDED.source_url,
		    content_hash = EXCLUDED.content_hash,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := q.Exec(ctx, query,
		tender.ID, tender.TenantID, tender.SourcePortal, tender.ExternalID,
		tender.Title, tender.RawStatus, tender.Status, tender.Description,
		tender.BuyerName, tender.Location, tender.Category,
		tender.EstimatedValue, tender.ValueNumeric, tender.Currency,
		tender.Deadline, tender.PublicationDate, tender.SourceURL,
		tender.ContentHash, tender.CreatedAt, tender.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tender: %w", err)
	}
	return nil
}

func updateTender(ctx context.Context, q querier, tender *models.StoredTender) error {
	query := `
		UPDATE tenders
		SET title = $4, raw_status = $5, status = $6, description = $7,
		    buyer_name = $8, location = $9, category = $10,
		    estimated_value = $11, value_numeric = $12, currency = $13,
		    deadline = $14, publication_date = $15, source_url = $16,
		    content_hash = $17, updated_at = $18
		WHERE tenant_id = $1 AND source_portal = $2 AND external_id = $3
	`

	result, err := q.Exec(ctx, query,
		tender.TenantID, tender.SourcePortal, tender.ExternalID,
		tender.Title, tender.RawStatus, tender.Status, tender.Description,
		tender.BuyerName, tender.Location, tender.Category,
		tender.EstimatedValue, tender.ValueNumeric, tender.Currency,
		tender.Deadline, tender.PublicationDate, tender.SourceURL,
		tender.ContentHash, tender.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update tender: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTenderNotFound
	}
	return nil
}

const logColumns = `id, tenant_id, batch_id, scraper_id, status, total_count,
	processed_count, skipped_count, inserted_count, updated_count,
	error_details, started_at, completed_at`

// ClaimBatch performs a single conditional insert so two concurrent
// submissions of the same batch ID cannot both proceed to reconciliation.
func (r *PostgresRepository) ClaimBatch(ctx context.Context, entry *models.IngestionLogEntry) (*ClaimResult, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	insert := `
		INSERT INTO ingestion_logs (id, tenant_id, batch_id, scraper_id, status, total_count, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, batch_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, insert,
		entry.ID, entry.TenantID, entry.BatchID, entry.ScraperID,
		models.BatchPending, entry.TotalCount, entry.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch: %w", err)
	}
	if tag.RowsAffected() == 1 {
		entry.Status = models.BatchPending
		return &ClaimResult{Outcome: ClaimFresh, Entry: entry}, nil
	}

	// Lost the insert race or the batch was seen before; inspect the
	// existing row.
	existing, err := r.GetBatch(ctx, entry.TenantID, entry.BatchID)
	if err != nil {
		return nil, err
	}

	switch existing.Status {
	case models.BatchCompleted, models.BatchDuplicate:
		return &ClaimResult{Outcome: ClaimDuplicate, Entry: existing}, nil
	case models.BatchFailed:
		// A failed attempt may be retried; take the claim over atomically.
		takeover := `
			UPDATE ingestion_logs
			SET status = $3, scraper_id = $4, total_count = $5, started_at = $6,
			    processed_count = 0, skipped_count = 0, inserted_count = 0,
			    updated_count = 0, error_details = '', completed_at = NULL
			WHERE tenant_id = $1 AND batch_id = $2 AND status = $7
		`
		tag, err := r.pool.Exec(ctx, takeover,
			entry.TenantID, entry.BatchID, models.BatchPending,
			entry.ScraperID, entry.TotalCount, entry.StartedAt,
			models.BatchFailed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to reclaim batch: %w", err)
		}
		if tag.RowsAffected() == 1 {
			entry.ID = existing.ID
			entry.Status = models.BatchPending
			return &ClaimResult{Outcome: ClaimFresh, Entry: entry}, nil
		}
		// Raced with another retry; re-fetch and report what won.
		existing, err = r.GetBatch(ctx, entry.TenantID, entry.BatchID)
		if err != nil {
			return nil, err
		}
		if existing.Status.Terminal() {
			return &ClaimResult{Outcome: ClaimDuplicate, Entry: existing}, nil
		}
		return &ClaimResult{Outcome: ClaimInFlight, Entry: existing}, nil
	default:
		return &ClaimResult{Outcome: ClaimInFlight, Entry: existing}, nil
	}
}

func (r *PostgresRepository) FinalizeBatch(ctx context.Context, uploadID string, status models.BatchStatus,
	processed, skipped, inserted, updated int, errorDetails string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE ingestion_logs
		SET status = $2, processed_count = $3, skipped_count = $4,
		    inserted_count = $5, updated_count = $6, error_details = $7,
		    completed_at = NOW()
		WHERE id = $1 AND status = $8
	`

	tag, err := r.pool.Exec(ctx, query, uploadID, status,
		processed, skipped, inserted, updated, errorDetails, models.BatchPending)
	if err != nil {
		return fmt.Errorf("failed to finalize batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *PostgresRepository) GetBatchByID(ctx context.Context, uploadID string) (*models.IngestionLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + logColumns + ` FROM ingestion_logs WHERE id = $1`
	return r.scanLogEntry(r.pool.QueryRow(ctx, query, uploadID))
}

func (r *PostgresRepository) GetBatch(ctx context.Context, tenantID, batchID string) (*models.IngestionLogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM ingestion_logs WHERE tenant_id = $1 AND batch_id = $2`
	return r.scanLogEntry(r.pool.QueryRow(ctx, query, tenantID, batchID))
}

func (r *PostgresRepository) scanLogEntry(row pgx.Row) (*models.IngestionLogEntry, error) {
	var e models.IngestionLogEntry
	err := row.Scan(
		&e.ID, &e.TenantID, &e.BatchID, &e.ScraperID, &e.Status,
		&e.TotalCount, &e.ProcessedCount, &e.SkippedCount,
		&e.InsertedCount, &e.UpdatedCount, &e.ErrorDetails,
		&e.StartedAt, &e.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return &e, nil
}

func (r *PostgresRepository) ScraperMetrics(ctx context.Context, tenantID, scraperID string) (*models.ScraperMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT COALESCE(SUM(processed_count) FILTER (WHERE status = 'completed'), 0),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       MAX(completed_at) FILTER (WHERE status = 'completed')
		FROM ingestion_logs
		WHERE tenant_id = $1 AND scraper_id = $2
	`

	var m models.ScraperMetrics
	err := r.pool.QueryRow(ctx, query, tenantID, scraperID).Scan(
		&m.TotalIngested, &m.TotalErrors, &m.LastIngestionAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate scraper metrics: %w", err)
	}
	return &m, nil
}

func (r *PostgresRepository) CountStuckPending(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM ingestion_logs
		WHERE status = $1 AND started_at < NOW() - $2::interval
	`

	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))
	var count int64
	if err := r.pool.QueryRow(ctx, query, models.BatchPending, interval).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count stuck batches: %w", err)
	}
	return count, nil
}
