package badger

import (
	"context"
	"errors"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"mapscraper/internal/domain"
)

// jobRecord is the stored form of a job. Seq is a monotonic insertion index
// that orders jobs created within the same clock tick.
type jobRecord struct {
	ID         string
	Seq        int64
	Keyword    string
	Location   string
	Status     string `badgerhold:"index"`
	TotalFound *int
	Error      *string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

func (r jobRecord) toDomain() domain.Job {
	return domain.Job{
		ID:         r.ID,
		Keyword:    r.Keyword,
		Location:   r.Location,
		Status:     domain.JobStatus(r.Status),
		TotalFound: r.TotalFound,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// ClaimNext moves the oldest pending job to running inside one read-write
// transaction. Writers serialize on db.mu, so the read-then-update never
// races another claim and never hits a badger conflict.
func (db *DB) ClaimNext(ctx context.Context) (domain.Job, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Job{}, false, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	var job domain.Job
	found := false
	err := db.store.Badger().Update(func(tx *badgerdb.Txn) error {
		var recs []jobRecord
		query := badgerhold.Where("Status").Eq(string(domain.StatusPending)).SortBy("Seq").Limit(1)
		if err := db.store.TxFind(tx, &recs, query); err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		rec := recs[0]
		now := db.now()
		rec.Status = string(domain.StatusRunning)
		rec.StartedAt = &now
		if err := db.store.TxUpdate(tx, rec.ID, rec); err != nil {
			return err
		}
		job, found = rec.toDomain(), true
		return nil
	})
	if err != nil {
		return domain.Job{}, false, err
	}
	return job, found, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string, total int) error {
	return db.finish(jobID, func(rec *jobRecord) {
		rec.Status = string(domain.StatusCompleted)
		rec.TotalFound = &total
	})
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	return db.finish(jobID, func(rec *jobRecord) {
		rec.Status = string(domain.StatusFailed)
		rec.Error = &reason
	})
}

// finish applies a terminal transition to a running job.
func (db *DB) finish(jobID string, apply func(*jobRecord)) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.store.Badger().Update(func(tx *badgerdb.Txn) error {
		var rec jobRecord
		if err := db.store.TxGet(tx, jobID, &rec); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if rec.Status != string(domain.StatusRunning) {
			return domain.ErrInvalidTransition
		}
		apply(&rec)
		now := db.now()
		rec.FinishedAt = &now
		return db.store.TxUpdate(tx, rec.ID, rec)
	})
}

func (db *DB) CreateJobs(ctx context.Context, jobs []domain.Job) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	n := 0
	err := db.store.Badger().Update(func(tx *badgerdb.Txn) error {
		for _, j := range jobs {
			seq, err := db.seq.Next()
			if err != nil {
				return err
			}
			rec := jobRecord{
				ID:        j.ID,
				Seq:       int64(seq),
				Keyword:   j.Keyword,
				Location:  j.Location,
				Status:    string(domain.StatusPending),
				CreatedAt: db.now(),
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

func (db *DB) ListJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	var recs []jobRecord
	query := badgerhold.Where("ID").Ne("").SortBy("Seq").Reverse().Limit(limit)
	if err := db.store.Find(&recs, query); err != nil {
		return nil, err
	}
	out := make([]domain.Job, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (db *DB) GetJob(ctx context.Context, jobID string) (domain.Job, error) {
	var rec jobRecord
	if err := db.store.Get(jobID, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.Job{}, domain.ErrNotFound
		}
		return domain.Job{}, err
	}
	return rec.toDomain(), nil
}

func (db *DB) CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	out := make(map[domain.JobStatus]int, len(domain.Statuses))
	for _, s := range domain.Statuses {
		n, err := db.store.Count(&jobRecord{}, badgerhold.Where("Status").Eq(string(s)))
		if err != nil {
			return nil, err
		}
		out[s] = int(n)
	}
	return out, nil
}

// RequeueJob resets a completed or failed job to pending, keeping its
// place in creation order.
func (db *DB) RequeueJob(ctx context.Context, jobID string) (domain.Job, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var job domain.Job
	err := db.store.Badger().Update(func(tx *badgerdb.Txn) error {
		var rec jobRecord
		if err := db.store.TxGet(tx, jobID, &rec); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if !domain.JobStatus(rec.Status).Terminal() {
			return domain.ErrInvalidTransition
		}
		rec.Status = string(domain.StatusPending)
		rec.StartedAt, rec.FinishedAt, rec.Error = nil, nil, nil
		if err := db.store.TxUpdate(tx, rec.ID, rec); err != nil {
			return err
		}
		job = rec.toDomain()
		return nil
	})
	return job, err
}
