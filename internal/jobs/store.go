// Package jobs implements the durable job store, the broker-backed
// priority queue, and the worker loop.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docs-mcp-server/pkg/mcptypes"
)

// ErrNotFound is returned when a job id has no matching row.
var ErrNotFound = errors.New("job not found")

// ErrInvalidTransition is returned when a status update would violate the
// queued -> running -> {completed, failed, cancelled} state machine.
var ErrInvalidTransition = errors.New("invalid job status transition")

// StaleThreshold is the age past which a running job is presumed
// abandoned by a crashed worker.
const StaleThreshold = 30 * time.Minute

// Store is the durable jobs table, backed by a pgx pool.
type Store struct {
	db *pgxpool.Pool
}

// NewStore wraps an open pgx pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Migrate creates the jobs table if it does not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
	id          uuid PRIMARY KEY,
	job_type    text NOT NULL,
	subject     text NOT NULL,
	status      text NOT NULL,
	progress    int,
	error       text,
	payload     jsonb NOT NULL DEFAULT '{}',
	started_at  timestamptz NOT NULL,
	finished_at timestamptz,
	created_at  timestamptz NOT NULL,
	updated_at  timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS jobs_status_idx ON jobs (status);
CREATE INDEX IF NOT EXISTS jobs_job_type_idx ON jobs (job_type);
`)
	if err != nil {
		return fmt.Errorf("migrating jobs table: %w", err)
	}
	return nil
}

// Create inserts a new job in state queued, with started_at = created_at.
func (s *Store) Create(ctx context.Context, jobType, subject string, payload json.RawMessage) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	if payload == nil {
		payload = json.RawMessage("{}")
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO jobs (id, job_type, subject, status, payload, started_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6, $6)
`, id, jobType, subject, mcptypes.JobQueued, payload, now)
	if err != nil {
		return "", fmt.Errorf("inserting job: %w", err)
	}
	return id, nil
}

// UpdateStatus enforces the monotonic state machine, updates updated_at,
// and sets finished_at when transitioning to a terminal state.
func (s *Store) UpdateStatus(ctx context.Context, id string, status mcptypes.JobStatus, progress *int, errText *string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current mcptypes.JobStatus
	row := tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, id)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("reading job status: %w", err)
	}

	if !validTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	now := time.Now().UTC()
	var finishedAt any
	if status.Terminal() {
		finishedAt = now
	}

	_, err = tx.Exec(ctx, `
UPDATE jobs SET status = $2, progress = $3, error = $4, finished_at = $5, updated_at = $6
WHERE id = $1
`, id, status, progress, errText, finishedAt, now)
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}

	return tx.Commit(ctx)
}

func validTransition(from, to mcptypes.JobStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case mcptypes.JobQueued:
		return to == mcptypes.JobRunning || to == mcptypes.JobCancelled
	case mcptypes.JobRunning:
		return to == mcptypes.JobCompleted || to == mcptypes.JobFailed || to == mcptypes.JobCancelled
	default:
		return false
	}
}

// Find returns the job for id.
func (s *Store) Find(ctx context.Context, id string) (mcptypes.Job, error) {
	row := s.db.QueryRow(ctx, `
SELECT id, job_type, subject, status, progress, error, payload, started_at, finished_at, created_at, updated_at
FROM jobs WHERE id = $1
`, id)
	return scanJob(row)
}

// ListFilter narrows List by job type and/or status; empty values mean "any".
type ListFilter struct {
	JobType string
	Status  mcptypes.JobStatus
}

// List returns jobs matching filter, newest first, paginated (page, limit
// clamped to [1,100], default 20).
func (s *Store) List(ctx context.Context, filter ListFilter, page, limit int) ([]mcptypes.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := s.db.Query(ctx, `
SELECT id, job_type, subject, status, progress, error, payload, started_at, finished_at, created_at, updated_at
FROM jobs
WHERE ($1 = '' OR job_type = $1) AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`, filter.JobType, string(filter.Status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []mcptypes.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Counts returns the number of jobs in each status, for the status tool's
// system-wide summary.
func (s *Store) Counts(ctx context.Context) (map[mcptypes.JobStatus]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, count(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[mcptypes.JobStatus]int)
	for rows.Next() {
		var status mcptypes.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CleanupOld removes terminal jobs older than olderThan, returning the
// count removed.
func (s *Store) CleanupOld(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.db.Exec(ctx, `
DELETE FROM jobs
WHERE status IN ($1, $2, $3) AND finished_at < $4
`, mcptypes.JobCompleted, mcptypes.JobFailed, mcptypes.JobCancelled, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up old jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// RecoverStale forces running jobs whose updated_at is older than
// StaleThreshold into failed, appending a recovery note. Runs on every
// startup so no job is left "forever running" after a crash.
func (s *Store) RecoverStale(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-StaleThreshold)
	note := fmt.Sprintf("stale running job recovered at startup: last updated before %s", cutoff.Format(time.RFC3339))

	tag, err := s.db.Exec(ctx, `
UPDATE jobs
SET status = $1, error = concat_ws('; ', NULLIF(error, ''), $2::text), finished_at = now(), updated_at = now()
WHERE status = $3 AND updated_at < $4
`, mcptypes.JobFailed, note, mcptypes.JobRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("recovering stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (mcptypes.Job, error) {
	var job mcptypes.Job
	var progress *int
	var errText *string
	var finishedAt *time.Time

	err := row.Scan(
		&job.ID, &job.JobType, &job.Subject, &job.Status, &progress, &errText,
		&job.Payload, &job.StartedAt, &finishedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mcptypes.Job{}, ErrNotFound
		}
		return mcptypes.Job{}, fmt.Errorf("scanning job row: %w", err)
	}
	job.Progress = progress
	job.Error = errText
	job.FinishedAt = finishedAt
	return job, nil
}
