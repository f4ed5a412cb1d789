package badger

import (
	"context"
	"errors"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"mapscraper/internal/domain"
)

type resultRecord struct {
	ID           string
	JobID        string `badgerhold:"index"`
	Position     int
	Name         *string
	Category     *string
	Address      *string
	Phone        *string
	Website      *string
	Rating       *float64
	ReviewsCount *int
	Lat          *float64
	Lng          *float64
	CreatedAt    time.Time
}

func (db *DB) DeleteResults(ctx context.Context, jobID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.DeleteMatching(&resultRecord{}, badgerhold.Where("JobID").Eq(jobID))
}

// InsertResults writes listings in one transaction; the owning job must exist.
func (db *DB) InsertResults(ctx context.Context, jobID string, listings []domain.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	n := 0
	err := db.store.Badger().Update(func(tx *badgerdb.Txn) error {
		var job jobRecord
		if err := db.store.TxGet(tx, jobID, &job); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		now := db.now()
		for i, l := range listings {
			rec := resultRecord{
				ID:           uuid.NewString(),
				JobID:        jobID,
				Position:     i,
				Name:         l.Name,
				Category:     l.Category,
				Address:      l.Address,
				Phone:        l.Phone,
				Website:      l.Website,
				Rating:       l.Rating,
				ReviewsCount: l.ReviewsCount,
				Lat:          l.Lat,
				Lng:          l.Lng,
				CreatedAt:    now,
			}
			if err := db.store.TxInsert(tx, rec.ID, rec); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (db *DB) ListResults(ctx context.Context, jobID string) ([]domain.Result, error) {
	var recs []resultRecord
	if err := db.store.Find(&recs, badgerhold.Where("JobID").Eq(jobID).SortBy("Position")); err != nil {
		return nil, err
	}
	out := make([]domain.Result, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.Result{
			ID:       r.ID,
			JobID:    r.JobID,
			Position: r.Position,
			Listing: domain.Listing{
				Name:         r.Name,
				Category:     r.Category,
				Address:      r.Address,
				Phone:        r.Phone,
				Website:      r.Website,
				Rating:       r.Rating,
				ReviewsCount: r.ReviewsCount,
				Lat:          r.Lat,
				Lng:          r.Lng,
			},
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}
