package repository

import (
	"context"
	"fmt"

	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/models"
)

// HealthRepository reports database reachability and ingestion freshness
type HealthRepository struct {
	db *db.DB
}

// NewHealthRepository creates a new HealthRepository
func NewHealthRepository(database *db.DB) *HealthRepository {
	return &HealthRepository{db: database}
}

// Ping checks the database connection
func (r *HealthRepository) Ping(ctx context.Context) error {
	return r.db.Conn().PingContext(ctx)
}

// LastRuns returns the most recent run of every job, ordered by job name
func (r *HealthRepository) LastRuns(ctx context.Context) ([]models.JobStatus, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT r.run_id, r.job, r.started_at, r.finished_at,
			r.records_written, r.records_skipped, r.error
		FROM ingestion_runs r
		JOIN (
			SELECT job, MAX(started_at) AS started_at
			FROM ingestion_runs
			GROUP BY job
		) latest ON latest.job = r.job AND latest.started_at = r.started_at
		ORDER BY r.job, r.run_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingestion runs: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	statuses := make([]models.JobStatus, 0)
	for rows.Next() {
		var (
			s                 models.JobStatus
			started, finished string
		)
		if err := rows.Scan(&s.RunID, &s.Job, &started, &finished,
			&s.RecordsWritten, &s.RecordsSkipped, &s.Error); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion run row: %w", err)
		}
		// two runs of one job can share a start millisecond
		if seen[s.Job] {
			continue
		}
		seen[s.Job] = true
		s.StartedAt = parseRunTime(started)
		s.FinishedAt = parseRunTime(finished)
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingestion run rows: %w", err)
	}
	return statuses, nil
}
