package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunTimeLayout is the fixed-width layout of ingestion_runs timestamps, so
// they sort lexically.
const RunTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// RecordRun appends an ingestion_runs row and returns its run id
func (db *DB) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	var errText *string
	if run.Error != "" {
		errText = &run.Error
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	_, err := db.conn.ExecContext(ctx, db.Rebind(`
		INSERT INTO ingestion_runs (
			run_id, job, started_at, finished_at, records_written, records_skipped, error
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`),
		run.ID, run.Job,
		run.StartedAt.UTC().Format(RunTimeLayout),
		run.FinishedAt.UTC().Format(RunTimeLayout),
		run.Written, run.Skipped, errText,
	)
	if err != nil {
		return "", fmt.Errorf("failed to record run for %s: %w", run.Job, err)
	}
	return run.ID, nil
}

// PruneRuns deletes ingestion_runs rows started before cutoff. The latest
// successful run of each job is kept, since refresh decisions read it.
func (db *DB) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	res, err := db.conn.ExecContext(ctx, db.Rebind(`
		DELETE FROM ingestion_runs
		WHERE started_at < ?
		AND run_id NOT IN (
			SELECT r.run_id FROM ingestion_runs r
			WHERE r.error IS NULL
			AND r.started_at = (
				SELECT MAX(r2.started_at) FROM ingestion_runs r2
				WHERE r2.job = r.job AND r2.error IS NULL
			)
		)
	`),
		cutoff.UTC().Format(RunTimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune ingestion runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// LastSuccessfulRun returns when the latest error-free run of job finished.
// The zero time means the job never succeeded.
func (db *DB) LastSuccessfulRun(ctx context.Context, job string) (time.Time, error) {
	var finished sql.NullString
	err := db.conn.QueryRowContext(ctx, db.Rebind(`
		SELECT MAX(finished_at) FROM ingestion_runs
		WHERE job = ? AND error IS NULL
	`), job).Scan(&finished)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last run of %s: %w", job, err)
	}
	if !finished.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(RunTimeLayout, finished.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid finished_at for %s: %w", job, err)
	}
	return t, nil
}
