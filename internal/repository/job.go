package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hray3182/HabitBell/internal/database"
	"github.com/hray3182/HabitBell/internal/models"
)

// JobRepository is the Postgres backing of the durable delayed-job queue.
type JobRepository struct {
	db *database.DB
}

func NewJobRepository(db *database.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id::text, handler, dedupe_key, payload, run_at, status, attempts, locked_until, last_error, created_at`

// Schedule inserts a pending job, or moves the existing pending job with the
// same dedupe key to the new run time.
func (r *JobRepository) Schedule(ctx context.Context, job *models.Job) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO jobs (id, handler, dedupe_key, payload, run_at, status)
		 VALUES ($1::text::uuid, $2, $3, $4, $5, 'pending')
		 ON CONFLICT (dedupe_key) WHERE status = 'pending'
		 DO UPDATE SET handler = EXCLUDED.handler, payload = EXCLUDED.payload, run_at = EXCLUDED.run_at,
		               attempts = 0, last_error = ''`,
		job.ID, job.Handler, job.DedupeKey, []byte(job.Payload), job.RunAt,
	)
	return err
}

// ClaimDue leases up to limit due jobs. Running jobs whose lease expired are
// claimed again, which is what makes delivery at-least-once across crashes.
func (r *JobRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Job, error) {
	rows, err := r.db.Pool.Query(ctx,
		`UPDATE jobs SET status = 'running', locked_until = $2, attempts = attempts + 1
		 WHERE id IN (
		     SELECT id FROM jobs
		     WHERE (status = 'pending' AND run_at <= $1) OR (status = 'running' AND locked_until < $1)
		     ORDER BY run_at
		     LIMIT $3
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
		now, now.Add(lease), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job := &models.Job{}
		var payload []byte
		if err := rows.Scan(&job.ID, &job.Handler, &job.DedupeKey, &payload, &job.RunAt, &job.Status,
			&job.Attempts, &job.LockedUntil, &job.LastError, &job.CreatedAt); err != nil {
			return nil, err
		}
		job.Payload = payload
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Complete removes a finished job.
func (r *JobRepository) Complete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1::text::uuid`, id)
	return err
}

// Retry puts a failed job back in the queue. If a newer pending job with the
// same key exists (the handler re-armed before failing) the failed one is
// dropped instead. A failed update leaves the job running; its lease expiry
// makes it claimable again.
func (r *JobRepository) Retry(ctx context.Context, id string, runAt time.Time, lastError string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE jobs SET status = 'pending', run_at = $2, locked_until = NULL, last_error = $3
		 WHERE id = $1::text::uuid AND NOT EXISTS (
		     SELECT 1 FROM jobs p WHERE p.dedupe_key = jobs.dedupe_key AND p.status = 'pending'
		 )`,
		id, runAt, lastError,
	)
	superseded, err := retrySuperseded(tag.RowsAffected(), err)
	if err != nil {
		return fmt.Errorf("failed to requeue job %s: %w", id, err)
	}
	if superseded {
		return r.Complete(ctx, id)
	}
	return nil
}

// retrySuperseded reports whether a retry update matched no row because a
// newer pending job took over the key. An update error is never treated as
// superseded.
func retrySuperseded(rowsAffected int64, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return rowsAffected == 0, nil
}

func (r *JobRepository) HasPending(ctx context.Context, dedupeKey string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM jobs WHERE dedupe_key = $1 AND status = 'pending')`,
		dedupeKey,
	).Scan(&exists)
	return exists, err
}

func (r *JobRepository) CancelPending(ctx context.Context, dedupeKey string) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM jobs WHERE dedupe_key = $1 AND status = 'pending'`,
		dedupeKey,
	)
	return err
}
