package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mapscraper/internal/domain"
)

func (db *DB) DeleteResults(ctx context.Context, jobID string) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM results WHERE job_id = $1`, jobID)
	return err
}

// InsertResults writes listings with positions in encounter order. Either
// all rows land or none do.
func (db *DB) InsertResults(ctx context.Context, jobID string, listings []domain.Listing) (n int, err error) {
	if len(listings) == 0 {
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
	for i, l := range listings {
		batch.Queue(`
            INSERT INTO results
            (id, job_id, position, name, category, address, phone, website, rating, reviews_count, lat, lng)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        `, uuid.NewString(), jobID, i, l.Name, l.Category, l.Address, l.Phone, l.Website,
			l.Rating, l.ReviewsCount, l.Lat, l.Lng)
	}
	br := tx.SendBatch(ctx, batch)
	for range listings {
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

func (db *DB) ListResults(ctx context.Context, jobID string) ([]domain.Result, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, job_id, position, name, category, address, phone, website, rating, reviews_count, lat, lng, created_at
        FROM results WHERE job_id = $1
        ORDER BY position ASC
    `, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Result
	for rows.Next() {
		var r domain.Result
		if err := rows.Scan(&r.ID, &r.JobID, &r.Position, &r.Name, &r.Category, &r.Address, &r.Phone,
			&r.Website, &r.Rating, &r.ReviewsCount, &r.Lat, &r.Lng, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
