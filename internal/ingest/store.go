package ingest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"crewlink/ingestion-service/internal/model"
)

// JobStore is the engine's view of the host application's persisted
// postings: an opaque idempotent-insert collaborator keyed by external ID.
// The engine only ever inserts new rows, never mutates existing ones.
type JobStore interface {
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
	Create(ctx context.Context, job model.ExternalJob) error
	Ping(ctx context.Context) error
}

// PostgresStore implements JobStore over the marketplace jobs table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping verifies the store is reachable. The orchestrator calls it before
// persisting so a store-wide outage fails the run instead of producing one
// logged error per record.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ExistsByExternalID reports whether a posting with this external ID has
// already been persisted.
func (s *PostgresStore) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE external_id = $1)`,
		externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists query: %w", err)
	}
	return exists, nil
}

// Create inserts a posting. ON CONFLICT DO NOTHING keeps a concurrent
// duplicate insert a no-op rather than an error — the check-then-insert in
// the orchestrator is a safety net, not a transaction.
func (s *PostgresStore) Create(ctx context.Context, job model.ExternalJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (external_id, external_source, external_url, title, company,
		                   location, description, salary_display, employment_type, posted_at_raw)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (external_id) DO NOTHING`,
		job.ProviderID, job.Source, job.URL, job.Title, job.Company,
		job.Location, job.Description, job.SalaryDisplay, job.EmploymentType, job.PostedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ProviderID, err)
	}
	return nil
}

var _ JobStore = (*PostgresStore)(nil)
