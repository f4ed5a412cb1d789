package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"mapscraper/internal/domain"
)

const jobColumns = `id, keyword, location, status, total_found, error, created_at, started_at, finished_at`

func scanJob(row pgx.Row) (domain.Job, error) {
	var job domain.Job
	var status string
	err := row.Scan(&job.ID, &job.Keyword, &job.Location, &status, &job.TotalFound, &job.Error,
		&job.CreatedAt, &job.StartedAt, &job.FinishedAt)
	job.Status = domain.JobStatus(status)
	return job, err
}

// ClaimNext selects the oldest pending job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job domain.Job, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var id string
	err = tx.QueryRow(ctx, `
        SELECT id FROM jobs
        WHERE status = 'pending'
        ORDER BY created_at, seq
        FOR UPDATE SKIP LOCKED
        LIMIT 1
    `).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	job, err = scanJob(tx.QueryRow(ctx, `
        UPDATE jobs SET status = 'running', started_at = now()
        WHERE id = $1
        RETURNING `+jobColumns, id))
	if err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string, total int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := db.Pool.Exec(ctx, `
        UPDATE jobs SET status = 'completed', total_found = $2, finished_at = now()
        WHERE id = $1 AND status = 'running'
    `, jobID, total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.transitionError(ctx, jobID)
	}
	return nil
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := db.Pool.Exec(ctx, `
        UPDATE jobs SET status = 'failed', error = $2, finished_at = now()
        WHERE id = $1 AND status = 'running'
    `, jobID, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.transitionError(ctx, jobID)
	}
	return nil
}

// transitionError tells a missing job apart from one in the wrong state.
func (db *DB) transitionError(ctx context.Context, jobID string) error {
	if _, err := db.GetJob(ctx, jobID); err != nil {
		return err
	}
	return domain.ErrInvalidTransition
}

// CreateJobs inserts every job as pending in a single transaction.
func (db *DB) CreateJobs(ctx context.Context, jobs []domain.Job) (n int, err error) {
	if len(jobs) == 0 {
		return 0, nil
	}
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	batch := &pgx.Batch{}
	for _, j := range jobs {
		batch.Queue(`INSERT INTO jobs (id, keyword, location, status) VALUES ($1, $2, $3, 'pending')`,
			j.ID, j.Keyword, j.Location)
	}
	br := tx.SendBatch(ctx, batch)
	for range jobs {
		if _, err = br.Exec(); err != nil {
			_ = br.Close()
			return 0, err
		}
		n++
	}
	if err = br.Close(); err != nil {
		return 0, err
	}
	return n, nil
}

func (db *DB) ListJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT `+jobColumns+` FROM jobs
        ORDER BY created_at DESC, seq DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (db *DB) GetJob(ctx context.Context, jobID string) (domain.Job, error) {
	job, err := scanJob(db.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return job, domain.ErrNotFound
	}
	return job, err
}

func (db *DB) CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	rows, err := db.Pool.Query(ctx, `SELECT status, count(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.JobStatus]int, len(domain.Statuses))
	for _, s := range domain.Statuses {
		out[s] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[domain.JobStatus(status)] = n
	}
	return out, rows.Err()
}

// RequeueJob resets a completed or failed job to pending. Result rows are
// left alone; the next run replaces them.
func (db *DB) RequeueJob(ctx context.Context, jobID string) (domain.Job, error) {
	job, err := scanJob(db.Pool.QueryRow(ctx, `
        UPDATE jobs SET status = 'pending', started_at = NULL, finished_at = NULL, error = NULL
        WHERE id = $1 AND status IN ('completed', 'failed')
        RETURNING `+jobColumns, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return job, db.transitionError(ctx, jobID)
	}
	return job, err
}
